// Package knowledge ingests uploaded documents and answers per-user
// retrieval queries for the search_document tool.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/metrics"
)

const (
	// TopK is how many chunks a search returns.
	TopK = 3

	// NoDocument is returned by Search when the user has not uploaded anything.
	NoDocument = "No document has been uploaded yet."

	// IngestedMessage is reported to the client after a successful upload.
	IngestedMessage = "Document processed successfully. You can now ask questions about it."
)

var (
	// ErrUnsupportedType is returned for files that are neither text nor PDF.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrUnreadableDocument is returned for PDFs whose text cannot be extracted.
	ErrUnreadableDocument = errors.New("could not read document")

	// ErrEmptyDocument is returned when a file contains no text.
	ErrEmptyDocument = errors.New("document contains no text")
)

// Index stores one chunked document per owner, with optional embeddings.
// SearchDocument ranks by vector when one is given and the document has
// embeddings, by query words otherwise. It returns an empty slice when the
// owner has no document.
type Index interface {
	StoreDocument(ctx context.Context, ownerID int64, name string, chunks []string, vectors [][]float32) error
	SearchDocument(ctx context.Context, ownerID int64, query string, vector []float32, k int) ([]string, error)
}

// Embedder turns text into vectors for semantic retrieval.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Service ingests documents into an Index and hands out per-user lookups.
type Service struct {
	index    Index
	embedder Embedder
	logger   zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEmbedder enables semantic retrieval. Without it, or when an embedding
// call fails, documents are searched by word matches.
func WithEmbedder(e Embedder) Option {
	return func(s *Service) { s.embedder = e }
}

// NewService creates a knowledge service over index.
func NewService(index Index, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		index:  index,
		logger: logger.With().Str("component", "knowledge").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SupportedType reports whether filename has an extension Ingest accepts.
func SupportedType(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".txt", ".md", ".markdown", ".csv", ".json":
		return true
	default:
		return false
	}
}

// Ingest extracts the text of a PDF or text document, splits it, embeds the
// chunks when an embedder is configured and replaces the owner's previous
// document. It returns the number of chunks stored.
func (s *Service) Ingest(ctx context.Context, ownerID int64, filename string, r io.Reader) (int, error) {
	if !SupportedType(filename) {
		metrics.DocumentsIngested.WithLabelValues("unsupported").Inc()
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filename))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		metrics.DocumentsIngested.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("read document: %w", err)
	}

	text, err := documentText(filename, data)
	if err != nil {
		metrics.DocumentsIngested.WithLabelValues("unsupported").Inc()
		return 0, err
	}

	chunks := Split(text, ChunkSize, ChunkOverlap)
	if len(chunks) == 0 {
		metrics.DocumentsIngested.WithLabelValues("error").Inc()
		return 0, ErrEmptyDocument
	}

	var vectors [][]float32
	if s.embedder != nil {
		vectors, err = s.embedder.EmbedDocuments(ctx, chunks)
		if err == nil && len(vectors) != len(chunks) {
			err = fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks))
		}
		if err != nil {
			s.logger.Warn().Err(err).Int64("user_id", ownerID).Msg("embedding failed; document searchable by words only")
			vectors = nil
		}
	}

	if err := s.index.StoreDocument(ctx, ownerID, filepath.Base(filename), chunks, vectors); err != nil {
		metrics.DocumentsIngested.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("store document: %w", err)
	}

	metrics.DocumentsIngested.WithLabelValues("ok").Inc()
	s.logger.Info().
		Int64("user_id", ownerID).
		Str("file", filepath.Base(filename)).
		Int("bytes", len(data)).
		Int("chunks", len(chunks)).
		Bool("embedded", vectors != nil).
		Msg("document ingested")

	return len(chunks), nil
}

// documentText returns the UTF-8 text of a document.
func documentText(filename string, data []byte) (string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return pdfText(data)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8 text", ErrUnsupportedType)
	}
	return string(data), nil
}

// For returns the lookup handle scoped to one user.
func (s *Service) For(ownerID int64) *Lookup {
	return &Lookup{service: s, ownerID: ownerID}
}

// Lookup answers retrieval queries against one user's document.
type Lookup struct {
	service *Service
	ownerID int64
}

// Search returns the most relevant chunks joined by a blank line, or
// NoDocument when the user has not uploaded anything.
func (l *Lookup) Search(ctx context.Context, question string) (string, error) {
	s := l.service

	var vector []float32
	if s.embedder != nil {
		v, err := s.embedder.EmbedQuery(ctx, question)
		if err != nil {
			s.logger.Warn().Err(err).Int64("user_id", l.ownerID).Msg("query embedding failed; searching by words")
		} else {
			vector = v
		}
	}

	chunks, err := s.index.SearchDocument(ctx, l.ownerID, question, vector, TopK)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return NoDocument, nil
	}
	return strings.Join(chunks, "\n\n"), nil
}
