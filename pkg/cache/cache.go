// Package cache implements the Redis-backed TTL cache shared across the
// embedding, search, and rerank paths (C11). Every namespace fails open:
// a Redis error is logged and treated as a miss, never surfaced to the caller.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Namespace is one of the three key prefixes the cache multiplexes over.
type Namespace string

const (
	NamespaceEmbedding Namespace = "embed"
	NamespaceSearch    Namespace = "search"
	NamespaceRerank    Namespace = "rerank"
)

// TTLs holds the per-namespace expirations, loaded from config.CacheTTLConfig.
type TTLs struct {
	Embedding time.Duration
	Search    time.Duration
	Rerank    time.Duration
}

// Cache wraps a shared redis.Client with namespace-scoped Get/Set helpers
// and hit/miss counters.
type Cache struct {
	client *redis.Client
	ttls   TTLs
	stats  map[Namespace]*counters
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// New builds a Cache over an already-connected redis.Client.
func New(client *redis.Client, ttls TTLs) *Cache {
	return &Cache{
		client: client,
		ttls:   ttls,
		stats: map[Namespace]*counters{
			NamespaceEmbedding: {},
			NamespaceSearch:    {},
			NamespaceRerank:    {},
		},
	}
}

// EmbeddingKey returns the embedding-cache key for a piece of text: md5(text).
func EmbeddingKey(text string) string {
	return hashHex(text)
}

// SearchKey returns the search-result-cache key for a query shape.
func SearchKey(query string, mode string, filters any, topK int) string {
	payload, _ := json.Marshal(struct {
		Query   string `json:"query"`
		Mode    string `json:"mode"`
		Filters any    `json:"filters"`
		TopK    int    `json:"top_k"`
	}{query, mode, filters, topK})
	return hashHex(string(payload))
}

// RerankKey returns the rerank-score-cache key for a query against a sorted
// document-id set.
func RerankKey(query string, sortedDocIDs []string) string {
	payload, _ := json.Marshal(struct {
		Query string   `json:"query"`
		Docs  []string `json:"docs"`
	}{query, sortedDocIDs})
	return hashHex(string(payload))
}

func hashHex(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec // cache keying, not security-sensitive
	return hex.EncodeToString(sum[:])
}

// GetEmbedding reads a cached embedding vector, returning ok=false on miss or
// any Redis error (logged, not propagated).
func (c *Cache) GetEmbedding(ctx context.Context, text string) (vector []float32, ok bool) {
	var v []float32
	ok = c.getJSON(ctx, NamespaceEmbedding, EmbeddingKey(text), &v)
	return v, ok
}

// SetEmbedding stores a computed embedding vector under the embedding TTL.
func (c *Cache) SetEmbedding(ctx context.Context, text string, vector []float32) {
	c.setJSON(ctx, NamespaceEmbedding, EmbeddingKey(text), vector, c.ttls.Embedding)
}

// GetSearch reads a cached search response for the given key. dest must be a
// pointer; the returned bool reports whether the key was found and decoded.
func (c *Cache) GetSearch(ctx context.Context, key string, dest any) bool {
	return c.getJSON(ctx, NamespaceSearch, key, dest)
}

// SetSearch stores a computed search response under the search TTL.
func (c *Cache) SetSearch(ctx context.Context, key string, value any) {
	c.setJSON(ctx, NamespaceSearch, key, value, c.ttls.Search)
}

// GetRerank reads cached doc_id->score rerank results.
func (c *Cache) GetRerank(ctx context.Context, key string) (scores map[string]float64, ok bool) {
	var m map[string]float64
	ok = c.getJSON(ctx, NamespaceRerank, key, &m)
	return m, ok
}

// SetRerank stores computed doc_id->score rerank results under the rerank TTL.
func (c *Cache) SetRerank(ctx context.Context, key string, scores map[string]float64) {
	c.setJSON(ctx, NamespaceRerank, key, scores, c.ttls.Rerank)
}

func (c *Cache) getJSON(ctx context.Context, ns Namespace, key string, dest any) bool {
	raw, err := c.client.Get(ctx, nsKey(ns, key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache get failed, treating as miss", "namespace", ns, "error", err)
		}
		c.stats[ns].misses.Add(1)
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		slog.Warn("cache value decode failed, treating as miss", "namespace", ns, "error", err)
		c.stats[ns].misses.Add(1)
		return false
	}
	c.stats[ns].hits.Add(1)
	return true
}

func (c *Cache) setJSON(ctx context.Context, ns Namespace, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache value encode failed, skipping write", "namespace", ns, "error", err)
		return
	}
	if err := c.client.Set(ctx, nsKey(ns, key), raw, ttl).Err(); err != nil {
		slog.Warn("cache set failed", "namespace", ns, "error", err)
	}
}

func nsKey(ns Namespace, key string) string {
	return string(ns) + ":" + key
}

// NamespaceStats reports hit/miss counters for one namespace.
type NamespaceStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Stats returns hit/miss counters for every namespace, per get_stats().
func (c *Cache) Stats() map[Namespace]NamespaceStats {
	out := make(map[Namespace]NamespaceStats, len(c.stats))
	for ns, ctr := range c.stats {
		out[ns] = NamespaceStats{Hits: ctr.hits.Load(), Misses: ctr.misses.Load()}
	}
	return out
}
