package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/MikeSquared-Agency/Pulse/internal/metrics"
)

const cacheKeyPrefix = "pulse:emb:"

// ErrCacheMiss is returned by a KV when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// KV is the byte store backing CachedEmbedder.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder caches vectors by sha256(model, text). Cache errors are
// logged and bypassed; they never fail an Embed call.
type CachedEmbedder struct {
	inner  Embedder
	kv     KV
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedEmbedder(inner Embedder, kv KV, model string, ttl time.Duration, logger *slog.Logger) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, kv: kv, model: model, ttl: ttl, logger: logger}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vec, ok := c.get(ctx, key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return vec, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) > 0 {
		if err := c.kv.Set(ctx, key, vectorToBytes(vec), c.ttl); err != nil {
			c.logger.Warn("failed to cache embedding", "key", key, "error", err)
		}
	}
	return vec, nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbedder) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("failed to read cached embedding", "key", key, "error", err)
		}
		return nil, false
	}
	vec, err := bytesToVector(data)
	if err != nil || len(vec) == 0 {
		c.logger.Warn("discarding unreadable cached embedding", "key", key, "error", err)
		return nil, false
	}
	return vec, true
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid cached embedding: len=%d is not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
