package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultDocumentTTL is how long an uploaded document stays searchable.
	DefaultDocumentTTL = 24 * time.Hour
	searchTempTTL      = 10 * time.Second
)

// RedisStore handles Redis operations for uploaded documents.
// The underlying client is shared with the rate limiter.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisStoreFromClient(client, ttl), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultDocumentTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Client returns the underlying Redis client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// docChunksKey returns the key for an owner's chunk hash (chunk id -> text).
func docChunksKey(ownerID int64) string {
	return fmt.Sprintf("doc:%d:chunks", ownerID)
}

// docOrderKey returns the key for an owner's chunk ids in document order.
func docOrderKey(ownerID int64) string {
	return fmt.Sprintf("doc:%d:order", ownerID)
}

// docVectorsKey returns the key for an owner's chunk embeddings
// (chunk id -> EncodeVector bytes).
func docVectorsKey(ownerID int64) string {
	return fmt.Sprintf("doc:%d:vectors", ownerID)
}

// docWordsKey returns the key for the set of word index keys of an owner's document.
func docWordsKey(ownerID int64) string {
	return fmt.Sprintf("doc:%d:words", ownerID)
}

// docNameKey returns the key holding the uploaded filename.
func docNameKey(ownerID int64) string {
	return fmt.Sprintf("doc:%d:name", ownerID)
}

// docWordKey returns the key for a word's chunk sorted set.
func docWordKey(ownerID int64, word string) string {
	return fmt.Sprintf("doc:%d:word:%s", ownerID, strings.ToLower(word))
}

// wordRegex matches word characters for search indexing.
var wordRegex = regexp.MustCompile(`\w+`)

// Words tokenizes text into lowercase words of three or more characters
// and returns each word's frequency.
func Words(text string) map[string]int {
	freq := make(map[string]int)
	for _, word := range wordRegex.FindAllString(strings.ToLower(text), -1) {
		if len(word) < 3 {
			continue
		}
		freq[word]++
	}
	return freq
}

// StoreDocument replaces the owner's document with the given chunks.
// vectors, when non-nil, holds one embedding per chunk.
func (s *RedisStore) StoreDocument(ctx context.Context, ownerID int64, name string, chunks []string, vectors [][]float32) error {
	if vectors != nil && len(vectors) != len(chunks) {
		return fmt.Errorf("store document: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if err := s.DeleteDocument(ctx, ownerID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	chunksKey := docChunksKey(ownerID)
	orderKey := docOrderKey(ownerID)
	wordsKey := docWordsKey(ownerID)
	vectorsKey := docVectorsKey(ownerID)

	pipe := s.client.TxPipeline()
	wordKeys := make(map[string]bool)

	for i, chunk := range chunks {
		id := ulid.Make().String()
		pipe.HSet(ctx, chunksKey, id, chunk)
		pipe.RPush(ctx, orderKey, id)
		if vectors != nil {
			pipe.HSet(ctx, vectorsKey, id, EncodeVector(vectors[i]))
		}

		for word, n := range Words(chunk) {
			key := docWordKey(ownerID, word)
			pipe.ZIncrBy(ctx, key, float64(n), id)
			wordKeys[key] = true
		}
	}

	for key := range wordKeys {
		pipe.SAdd(ctx, wordsKey, key)
		pipe.Expire(ctx, key, s.ttl)
	}
	pipe.Set(ctx, docNameKey(ownerID), name, s.ttl)
	pipe.Expire(ctx, chunksKey, s.ttl)
	pipe.Expire(ctx, orderKey, s.ttl)
	pipe.Expire(ctx, wordsKey, s.ttl)
	if vectors != nil {
		pipe.Expire(ctx, vectorsKey, s.ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// DeleteDocument removes the owner's document and its word index.
func (s *RedisStore) DeleteDocument(ctx context.Context, ownerID int64) error {
	wordsKey := docWordsKey(ownerID)

	keys, err := s.client.SMembers(ctx, wordsKey).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	keys = append(keys, wordsKey, docChunksKey(ownerID), docOrderKey(ownerID), docVectorsKey(ownerID), docNameKey(ownerID))
	return s.client.Del(ctx, keys...).Err()
}

// HasDocument reports whether the owner has a searchable document.
func (s *RedisStore) HasDocument(ctx context.Context, ownerID int64) (bool, error) {
	n, err := s.client.Exists(ctx, docChunksKey(ownerID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DocumentName returns the filename of the owner's document, or "" if none.
func (s *RedisStore) DocumentName(ctx context.Context, ownerID int64) (string, error) {
	name, err := s.client.Get(ctx, docNameKey(ownerID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return name, err
}

// SearchDocument returns up to k chunks of the owner's document. With a
// query vector and stored embeddings, chunks are ranked by cosine
// similarity; otherwise by how many query words they contain. When no query
// word matches, the first k chunks are returned in document order. An owner
// with no document gets an empty result.
func (s *RedisStore) SearchDocument(ctx context.Context, ownerID int64, query string, vector []float32, k int) ([]string, error) {
	if k <= 0 {
		return []string{}, nil
	}

	if vector != nil {
		ids, err := s.nearestChunks(ctx, ownerID, vector, k)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return s.chunkTexts(ctx, ownerID, ids)
		}
	}

	var keys []string
	for word := range Words(query) {
		keys = append(keys, docWordKey(ownerID, word))
	}

	var ids []string
	if len(keys) > 0 {
		tempKey := fmt.Sprintf("doc:%d:search:%s", ownerID, ulid.Make().String())

		pipe := s.client.Pipeline()
		pipe.ZUnionStore(ctx, tempKey, &redis.ZStore{
			Keys:      keys,
			Aggregate: "SUM",
		})
		pipe.Expire(ctx, tempKey, searchTempTTL)
		rangeCmd := pipe.ZRevRange(ctx, tempKey, 0, int64(k)-1)
		pipe.Del(ctx, tempKey)

		if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
			return nil, err
		}
		ids = rangeCmd.Val()
	}

	if len(ids) == 0 {
		var err error
		ids, err = s.client.LRange(ctx, docOrderKey(ownerID), 0, int64(k)-1).Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
	}

	if len(ids) == 0 {
		return []string{}, nil
	}
	return s.chunkTexts(ctx, ownerID, ids)
}

// nearestChunks ranks the owner's embedded chunks against vector. It
// returns nothing when the document was stored without embeddings.
func (s *RedisStore) nearestChunks(ctx context.Context, ownerID int64, vector []float32, k int) ([]string, error) {
	pipe := s.client.Pipeline()
	orderCmd := pipe.LRange(ctx, docOrderKey(ownerID), 0, -1)
	vectorsCmd := pipe.HGetAll(ctx, docVectorsKey(ownerID))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	raw := vectorsCmd.Val()
	if len(raw) == 0 {
		return nil, nil
	}
	vectors := make(map[string][]float32, len(raw))
	for id, enc := range raw {
		vectors[id] = DecodeVector([]byte(enc))
	}
	return Nearest(vector, orderCmd.Val(), vectors, k), nil
}

// chunkTexts loads chunk texts by id, skipping expired ones.
func (s *RedisStore) chunkTexts(ctx context.Context, ownerID int64, ids []string) ([]string, error) {
	values, err := s.client.HMGet(ctx, docChunksKey(ownerID), ids...).Result()
	if err != nil {
		return nil, err
	}

	chunks := make([]string, 0, len(values))
	for _, v := range values {
		text, ok := v.(string)
		if !ok {
			continue // Chunk expired
		}
		chunks = append(chunks, text)
	}
	return chunks, nil
}
