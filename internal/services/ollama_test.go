package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MegaGrindStone/llamachat/internal/models"
	"github.com/MegaGrindStone/llamachat/internal/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGenerateServer fakes the /api/generate endpoint of an Ollama server. Every decoded request is
// handed to check before reply writes the response.
func newGenerateServer(t *testing.T, check func(models.InferenceRequest), reply func(http.ResponseWriter)) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}

		var req models.InferenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if check != nil {
			check(req)
		}
		reply(w)
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

func replyJSON(body string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestOllamaGenerate(t *testing.T) {
	temp := float32(0.7)
	maxTokens := 512

	var got models.InferenceRequest
	srv, _ := newGenerateServer(t,
		func(req models.InferenceRequest) { got = req },
		replyJSON(`{"model":"llama3","response":"Hello","done":true}`),
	)

	o, err := services.NewOllama(srv.URL, "llama3", services.Parameters{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}, zerolog.Nop())
	require.NoError(t, err)

	resp, err := o.Generate(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp)

	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "Hi", got.Prompt)
	assert.False(t, got.Stream)
	assert.InDelta(t, 0.7, got.Options["temperature"], 0.001)
	assert.EqualValues(t, 512, got.Options["num_predict"])
}

func TestOllamaRequestWithoutParameters(t *testing.T) {
	o, err := services.NewOllama("", "llama3", services.Parameters{}, zerolog.Nop())
	require.NoError(t, err)

	req := o.Request("Hi")
	assert.Equal(t, models.InferenceRequest{Model: "llama3", Prompt: "Hi"}, req)
	assert.Equal(t, "llama3", o.Model())
}

func TestOllamaHostWithoutScheme(t *testing.T) {
	_, err := services.NewOllama("127.0.0.1:11434", "llama3", services.Parameters{}, zerolog.Nop())
	assert.NoError(t, err)
}

func TestOllamaGenerateErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply func(http.ResponseWriter)
	}{
		{
			name: "server error",
			reply: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"model crashed"}`))
			},
		},
		{
			name: "model not found",
			reply: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":"model 'llama3' not found"}`))
			},
		},
		{
			name:  "body is not json",
			reply: replyJSON("<html>proxy error</html>"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newGenerateServer(t, nil, tt.reply)

			o, err := services.NewOllama(srv.URL, "llama3", services.Parameters{}, zerolog.Nop())
			require.NoError(t, err)

			_, err = o.Generate(context.Background(), "Hi")
			assert.Error(t, err)
		})
	}
}

func TestOllamaGenerateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	o, err := services.NewOllama(url, "llama3", services.Parameters{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = o.Generate(context.Background(), "Hi")
	assert.Error(t, err)
}
