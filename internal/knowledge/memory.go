package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/store"
)

type memoryDoc struct {
	name    string
	chunks  []string
	freqs   []map[string]int
	vectors [][]float32
}

// MemoryIndex keeps one document per owner in process memory.
// Used when Redis is not configured.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[int64]memoryDoc
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[int64]memoryDoc)}
}

// StoreDocument replaces the owner's document.
func (m *MemoryIndex) StoreDocument(ctx context.Context, ownerID int64, name string, chunks []string, vectors [][]float32) error {
	if vectors != nil && len(vectors) != len(chunks) {
		return fmt.Errorf("store document: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	doc := memoryDoc{
		name:    name,
		chunks:  append([]string(nil), chunks...),
		freqs:   make([]map[string]int, len(chunks)),
		vectors: vectors,
	}
	for i, c := range chunks {
		doc.freqs[i] = store.Words(c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(chunks) == 0 {
		delete(m.docs, ownerID)
		return nil
	}
	m.docs[ownerID] = doc
	return nil
}

// SearchDocument ranks the owner's chunks by cosine similarity when both a
// query vector and chunk embeddings are present. Otherwise it ranks by
// summed query-word frequency, falling back to document order when nothing
// matches.
func (m *MemoryIndex) SearchDocument(ctx context.Context, ownerID int64, query string, vector []float32, k int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	doc, ok := m.docs[ownerID]
	m.mu.RUnlock()

	if !ok || k <= 0 {
		return []string{}, nil
	}

	if vector != nil && doc.vectors != nil {
		return nearest(doc, vector, k), nil
	}

	words := store.Words(query)
	type scored struct {
		idx   int
		score int
	}
	var hits []scored
	for i, freq := range doc.freqs {
		score := 0
		for w := range words {
			score += freq[w]
		}
		if score > 0 {
			hits = append(hits, scored{i, score})
		}
	}

	if len(hits) == 0 {
		n := min(k, len(doc.chunks))
		return append([]string(nil), doc.chunks[:n]...), nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = doc.chunks[h.idx]
	}
	return out, nil
}

func nearest(doc memoryDoc, vector []float32, k int) []string {
	keys := make([]string, len(doc.vectors))
	byKey := make(map[string][]float32, len(doc.vectors))
	for i, v := range doc.vectors {
		keys[i] = strconv.Itoa(i)
		byKey[keys[i]] = v
	}

	ranked := store.Nearest(vector, keys, byKey, k)
	out := make([]string, len(ranked))
	for i, key := range ranked {
		idx, _ := strconv.Atoi(key)
		out[i] = doc.chunks[idx]
	}
	return out
}
