package store

import (
	"encoding/binary"
	"math"
	"sort"
)

// EncodeVector packs an embedding as little-endian float32s.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector unpacks an EncodeVector result. Trailing partial values are
// dropped.
func DecodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// Cosine returns the cosine similarity of a and b, or 0 when their lengths
// differ or either has zero magnitude.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Nearest returns the keys of the k vectors most similar to query, best
// first. Ties keep the order of keys.
func Nearest(query []float32, keys []string, vectors map[string][]float32, k int) []string {
	type scored struct {
		key   string
		score float64
	}
	hits := make([]scored, 0, len(keys))
	for _, key := range keys {
		vec, ok := vectors[key]
		if !ok {
			continue
		}
		hits = append(hits, scored{key, Cosine(query, vec)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.key
	}
	return out
}
