package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, Split("   \n ", ChunkSize, ChunkOverlap))
	})

	t.Run("short text is one chunk", func(t *testing.T) {
		assert.Equal(t, []string{"hello world"}, Split("  hello world\n", ChunkSize, ChunkOverlap))
	})

	t.Run("long text respects size and overlaps", func(t *testing.T) {
		words := make([]string, 600)
		for i := range words {
			words[i] = "word"
		}
		text := strings.Join(words, " ") // 2999 characters

		chunks := Split(text, ChunkSize, ChunkOverlap)
		require.GreaterOrEqual(t, len(chunks), 3)
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), ChunkSize)
			assert.False(t, strings.HasPrefix(c, " "))
		}

		// consecutive chunks share a tail
		tail := chunks[0][len(chunks[0])-20:]
		assert.Contains(t, chunks[1], strings.TrimSpace(tail))
	})

	t.Run("prefers paragraph breaks", func(t *testing.T) {
		text := strings.Repeat("a", 70) + "\n\n" + strings.Repeat("b", 70)
		chunks := Split(text, 100, 10)
		require.Len(t, chunks, 2)
		assert.Equal(t, strings.Repeat("a", 70), chunks[0])
	})

	t.Run("rune safe", func(t *testing.T) {
		text := strings.Repeat("é", 250)
		for _, c := range Split(text, 100, 10) {
			assert.True(t, utf8.ValidString(c))
			assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
		}
	})
}

func TestLookup_NoDocument(t *testing.T) {
	svc := NewService(NewMemoryIndex(), zerolog.Nop())

	got, err := svc.For(1).Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, NoDocument, got)
}

func TestIngestAndSearch(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryIndex(), zerolog.Nop())

	doc := "The warranty covers parts for two years.\n\n" +
		strings.Repeat("Filler paragraph about nothing in particular. ", 40) + "\n\n" +
		"Returns are accepted within thirty days."

	n, err := svc.Ingest(ctx, 1, "manual.txt", strings.NewReader(doc))
	require.NoError(t, err)
	assert.Greater(t, n, 1)

	got, err := svc.For(1).Search(ctx, "warranty years")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "The warranty covers parts for two years."))

	// other users see nothing
	other, err := svc.For(2).Search(ctx, "warranty")
	require.NoError(t, err)
	assert.Equal(t, NoDocument, other)
}

func TestIngest_ReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryIndex(), zerolog.Nop())

	_, err := svc.Ingest(ctx, 1, "a.md", strings.NewReader("bananas are yellow"))
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, 1, "b.md", strings.NewReader("apples are red"))
	require.NoError(t, err)

	got, err := svc.For(1).Search(ctx, "bananas")
	require.NoError(t, err)
	assert.Equal(t, "apples are red", got)
}

func TestIngest_Rejects(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryIndex(), zerolog.Nop())

	_, err := svc.Ingest(ctx, 1, "photo.png", strings.NewReader("\x89PNG"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = svc.Ingest(ctx, 1, "report.pdf", strings.NewReader("%PDF-1.7"))
	assert.ErrorIs(t, err, ErrUnreadableDocument)

	_, err = svc.Ingest(ctx, 1, "blob.txt", strings.NewReader(string([]byte{0xff, 0xfe, 0x00})))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = svc.Ingest(ctx, 1, "empty.txt", strings.NewReader("  \n"))
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestSearch_JoinsTopChunks(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.StoreDocument(ctx, 1, "x.txt", []string{"one", "two", "three", "four"}, nil))

	got, err := (&Service{index: idx}).For(1).Search(ctx, "nothing matches")
	require.NoError(t, err)
	assert.Equal(t, "one\n\ntwo\n\nthree", got)
}

// keywordEmbedder maps text onto one axis per topic, so paraphrases that
// share no words still land close together.
type keywordEmbedder struct {
	topics   [][]string
	docErr   error
	queryErr error
	docCalls int
}

func (e *keywordEmbedder) vector(text string) []float32 {
	text = strings.ToLower(text)
	vec := make([]float32, len(e.topics)+1)
	vec[len(e.topics)] = 0.01
	for i, words := range e.topics {
		for _, w := range words {
			if strings.Contains(text, w) {
				vec[i]++
			}
		}
	}
	return vec
}

func (e *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.docCalls++
	if e.docErr != nil {
		return nil, e.docErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	return e.vector(text), nil
}

func topicDoc() string {
	return "Items may be sent back for a full reimbursement within thirty days.\n\n" +
		strings.Repeat("Filler paragraph about the company history. ", 40) + "\n\n" +
		"Parcels leave the warehouse by courier every morning."
}

func TestSearch_RanksByEmbedding(t *testing.T) {
	ctx := context.Background()
	emb := &keywordEmbedder{topics: [][]string{
		{"refund", "reimbursement", "money back"},
		{"shipping", "courier", "parcel"},
	}}
	svc := NewService(NewMemoryIndex(), zerolog.Nop(), WithEmbedder(emb))

	_, err := svc.Ingest(ctx, 1, "policy.txt", strings.NewReader(topicDoc()))
	require.NoError(t, err)
	assert.Equal(t, 1, emb.docCalls)
	chunks := Split(topicDoc(), ChunkSize, ChunkOverlap)

	// the question shares no words with the matching chunk
	got, err := svc.For(1).Search(ctx, "How do I get my money back?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, chunks[0]), got)

	got, err = svc.For(1).Search(ctx, "When does shipping happen?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, chunks[len(chunks)-1]), got)
}

func TestSearch_FallsBackToWordsWhenEmbeddingFails(t *testing.T) {
	ctx := context.Background()
	topics := [][]string{{"reimbursement"}, {"courier"}}

	t.Run("documents", func(t *testing.T) {
		emb := &keywordEmbedder{topics: topics, docErr: errors.New("quota exceeded")}
		svc := NewService(NewMemoryIndex(), zerolog.Nop(), WithEmbedder(emb))

		_, err := svc.Ingest(ctx, 1, "policy.txt", strings.NewReader(topicDoc()))
		require.NoError(t, err)

		got, err := svc.For(1).Search(ctx, "warehouse courier")
		require.NoError(t, err)
		chunks := Split(topicDoc(), ChunkSize, ChunkOverlap)
		assert.True(t, strings.HasPrefix(got, chunks[len(chunks)-1]), got)
	})

	t.Run("query", func(t *testing.T) {
		emb := &keywordEmbedder{topics: topics, queryErr: errors.New("timeout")}
		svc := NewService(NewMemoryIndex(), zerolog.Nop(), WithEmbedder(emb))

		_, err := svc.Ingest(ctx, 1, "policy.txt", strings.NewReader(topicDoc()))
		require.NoError(t, err)

		got, err := svc.For(1).Search(ctx, "full reimbursement")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got, "Items may be sent back"), got)
	})
}
