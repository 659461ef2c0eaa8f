package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	err   error
	delay time.Duration
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.vec, f.err
}

func (f *fakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type mapKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet bool
	failSet bool
}

func newMapKV() *mapKV {
	return &mapKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mapKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("redis down")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *mapKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("redis down")
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func TestGatewayEmbed(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	g := NewGateway(inner, 3, time.Second, discardLogger())

	vec, err := g.Embed(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, g.Dimensions())
}

func TestGatewayFailures(t *testing.T) {
	cases := map[string]struct {
		inner Embedder
		text  string
	}{
		"empty input":       {inner: &fakeEmbedder{vec: []float32{1}}, text: "   "},
		"provider error":    {inner: &fakeEmbedder{err: errors.New("503 from upstream")}, text: "eth"},
		"empty vector":      {inner: &fakeEmbedder{vec: []float32{}}, text: "eth"},
		"wrong dimensions":  {inner: &fakeEmbedder{vec: []float32{1, 2}}, text: "eth"},
		"no provider":       {inner: nil, text: "eth"},
		"provider too slow": {inner: &fakeEmbedder{vec: []float32{1, 2, 3}, delay: time.Second}, text: "eth"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			g := NewGateway(tc.inner, 3, 20*time.Millisecond, discardLogger())
			_, err := g.Embed(context.Background(), tc.text)
			assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		})
	}
}

func TestGatewayEmptyInputSkipsProvider(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{1}}
	g := NewGateway(inner, 0, 0, discardLogger())
	_, err := g.Embed(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, 0, inner.Calls())
}

func TestCachedEmbedderHitAndMiss(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{0.5, -0.25, 1}}
	kv := newMapKV()
	c := NewCachedEmbedder(inner, kv, "text-embedding-3-small", time.Hour, discardLogger())

	first, err := c.Embed(context.Background(), "solana outage")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "solana outage")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.Calls())
	for _, ttl := range kv.ttls {
		assert.Equal(t, time.Hour, ttl)
	}
}

func TestCachedEmbedderKeysIncludeModel(t *testing.T) {
	a := NewCachedEmbedder(nil, nil, "model-a", 0, discardLogger())
	b := NewCachedEmbedder(nil, nil, "model-b", 0, discardLogger())
	assert.NotEqual(t, a.cacheKey("x"), b.cacheKey("x"))
	assert.Equal(t, a.cacheKey("x"), a.cacheKey("x"))
	assert.Contains(t, a.cacheKey("x"), cacheKeyPrefix)
}

func TestCachedEmbedderBypassesBrokenCache(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{1, 2}}
	kv := newMapKV()
	kv.failGet, kv.failSet = true, true
	c := NewCachedEmbedder(inner, kv, "m", time.Hour, discardLogger())

	vec, err := c.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
}

func TestCachedEmbedderIgnoresCorruptEntry(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{1, 2}}
	kv := newMapKV()
	c := NewCachedEmbedder(inner, kv, "m", time.Hour, discardLogger())
	kv.data[c.cacheKey("q")] = []byte{1, 2, 3}

	vec, err := c.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	assert.Equal(t, 1, inner.Calls())
}

func TestCachedEmbedderDoesNotCacheErrors(t *testing.T) {
	inner := &fakeEmbedder{err: errors.New("boom")}
	kv := newMapKV()
	c := NewCachedEmbedder(inner, kv, "m", time.Hour, discardLogger())

	_, err := c.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.Empty(t, kv.data)
}

func TestVectorBytesRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	out, err := bytesToVector(vectorToBytes(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = bytesToVector([]byte{1})
	assert.Error(t, err)
}

func embeddingServer(t *testing.T, status int, vec []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 3, req.Dimensions)

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "test-model",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
			"usage":  map[string]int{"prompt_tokens": 4, "total_tokens": 4},
		})
	}))
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := embeddingServer(t, http.StatusOK, []float32{0.1, 0.2, 0.3})
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model", Dimensions: 3, Logger: discardLogger()})
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "test-model", e.Model())
}

func TestOpenAIEmbedderAPIErrorThroughGateway(t *testing.T) {
	srv := embeddingServer(t, http.StatusTooManyRequests, nil)
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model", Dimensions: 3, Logger: discardLogger()})
	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	g := NewGateway(e, 3, time.Second, discardLogger())
	_, err = g.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
