package services_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/MegaGrindStone/llamachat/internal/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockGenerator) Model() string { return "mock" }

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

type mapCache struct {
	entries map[string]string
	getErr  error
	puts    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]string{}}
}

func (m *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mapCache) Put(_ context.Context, key, response string) error {
	m.puts++
	m.entries[key] = response
	return nil
}

func (m *mapCache) Close() error { return nil }

func TestFetchResponse(t *testing.T) {
	gen := &mockGenerator{reply: "Hello"}
	inf := services.NewInference(gen, zerolog.Nop())

	assert.Equal(t, "Hello", inf.FetchResponse(context.Background(), "Hi"))
	assert.Equal(t, []string{"Hi"}, gen.prompts)
}

func TestFetchResponseFallback(t *testing.T) {
	gen := &mockGenerator{err: errors.New("connection refused")}

	inf := services.NewInference(gen, zerolog.Nop())
	assert.Equal(t, services.DefaultFallbackMessage, inf.FetchResponse(context.Background(), "Hi"))
	assert.Equal(t, services.DefaultFallbackMessage, inf.FallbackMessage())

	custom := services.NewInference(gen, zerolog.Nop(), services.WithFallbackMessage("Oops"))
	assert.Equal(t, "Oops", custom.FetchResponse(context.Background(), "Hi"))

	ignored := services.NewInference(gen, zerolog.Nop(), services.WithFallbackMessage(""))
	assert.Equal(t, services.DefaultFallbackMessage, ignored.FallbackMessage())
}

func TestFetchResponseFromOllama(t *testing.T) {
	tests := []struct {
		name  string
		reply func(http.ResponseWriter)
		want  string
	}{
		{
			name:  "success",
			reply: replyJSON(`{"response":"Hello","done":true}`),
			want:  "Hello",
		},
		{
			name:  "missing response field",
			reply: replyJSON(`{"done":true}`),
			want:  "",
		},
		{
			name: "endpoint error",
			reply: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"boom"}`))
			},
			want: services.DefaultFallbackMessage,
		},
		{
			name:  "malformed body",
			reply: replyJSON("not json"),
			want:  services.DefaultFallbackMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newGenerateServer(t, nil, tt.reply)
			o, err := services.NewOllama(srv.URL, "llama3", services.Parameters{}, zerolog.Nop())
			require.NoError(t, err)

			inf := services.NewInference(o, zerolog.Nop())
			assert.Equal(t, tt.want, inf.FetchResponse(context.Background(), "Hi"))
		})
	}
}

func TestFetchResponseCache(t *testing.T) {
	gen := &mockGenerator{reply: "Hello"}
	cache := newMapCache()
	inf := services.NewInference(gen, zerolog.Nop(), services.WithCache(cache))

	assert.Equal(t, "Hello", inf.FetchResponse(context.Background(), "Hi"))
	assert.Equal(t, "Hello", inf.FetchResponse(context.Background(), "Hi"))
	assert.Equal(t, 1, gen.calls(), "second call is served from cache")
	assert.Equal(t, "Hello", cache.entries[services.CacheKey("mock", "Hi")])
}

func TestFetchResponseDoesNotCacheFailures(t *testing.T) {
	gen := &mockGenerator{err: errors.New("down")}
	cache := newMapCache()
	inf := services.NewInference(gen, zerolog.Nop(), services.WithCache(cache))

	inf.FetchResponse(context.Background(), "Hi")
	inf.FetchResponse(context.Background(), "Hi")

	assert.Equal(t, 2, gen.calls())
	assert.Zero(t, cache.puts)
}

func TestFetchResponseCacheErrorIsAMiss(t *testing.T) {
	gen := &mockGenerator{reply: "Hello"}
	cache := newMapCache()
	cache.getErr = errors.New("cache down")
	inf := services.NewInference(gen, zerolog.Nop(), services.WithCache(cache))

	assert.Equal(t, "Hello", inf.FetchResponse(context.Background(), "Hi"))
	assert.Equal(t, 1, gen.calls())
}

func TestWarmup(t *testing.T) {
	gen := &mockGenerator{reply: "Hi!"}
	cache := newMapCache()
	inf := services.NewInference(gen, zerolog.Nop(), services.WithCache(cache))

	require.NoError(t, inf.Warmup(context.Background()))
	assert.Equal(t, []string{"Hello"}, gen.prompts)
	assert.Zero(t, cache.puts, "warmup bypasses the cache")

	gen.err = errors.New("down")
	assert.Error(t, inf.Warmup(context.Background()))
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, services.CacheKey("llama3", "Hi"), services.CacheKey("llama3", "Hi"))
	assert.NotEqual(t, services.CacheKey("llama3", "Hi"), services.CacheKey("mistral", "Hi"))
	assert.Len(t, services.CacheKey("llama3", "Hi"), 64)
}
