package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultFallbackMessage is shown in place of a reply when the inference request fails.
const DefaultFallbackMessage = "Sorry, I couldn't process your request. Please try again."

// warmupPrompt is sent by Warmup to get the model loaded into memory.
const warmupPrompt = "Hello"

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// ResponseCache stores generated responses by key. A miss is reported with ok set to false and a
// nil error.
type ResponseCache interface {
	Get(ctx context.Context, key string) (response string, ok bool, err error)
	Put(ctx context.Context, key, response string) error
	Close() error
}

// Inference is the client the chat widget talks to. It never fails: any error from the generator
// is logged and replaced by the fallback message.
type Inference struct {
	generator Generator
	cache     ResponseCache
	fallback  string

	logger zerolog.Logger
}

// InferenceOption configures an Inference.
type InferenceOption func(*Inference)

// WithCache makes FetchResponse consult cache before calling the generator.
func WithCache(cache ResponseCache) InferenceOption {
	return func(i *Inference) {
		i.cache = cache
	}
}

// WithFallbackMessage replaces DefaultFallbackMessage. An empty message is ignored.
func WithFallbackMessage(msg string) InferenceOption {
	return func(i *Inference) {
		if msg != "" {
			i.fallback = msg
		}
	}
}

// NewInference creates an Inference on top of generator.
func NewInference(generator Generator, logger zerolog.Logger, opts ...InferenceOption) Inference {
	i := Inference{
		generator: generator,
		fallback:  DefaultFallbackMessage,
		logger:    logger.With().Str("module", "inference").Logger(),
	}
	for _, opt := range opts {
		opt(&i)
	}
	return i
}

// FallbackMessage returns the text returned on failure.
func (i Inference) FallbackMessage() string {
	return i.fallback
}

// FetchResponse returns the generated reply to prompt, or the fallback message when the request
// fails. Only successful replies are cached.
func (i Inference) FetchResponse(ctx context.Context, prompt string) string {
	key := CacheKey(i.generator.Model(), prompt)

	if i.cache != nil {
		resp, ok, err := i.cache.Get(ctx, key)
		switch {
		case err != nil:
			i.logger.Warn().Err(err).Msg("Failed to read response cache")
		case ok:
			i.logger.Debug().Str("key", key).Msg("Response cache hit")
			return resp
		}
	}

	start := time.Now()
	resp, err := i.generator.Generate(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		i.logger.Error().
			Err(err).
			Dur("elapsed", elapsed).
			Msg("Inference request failed")
		return i.fallback
	}

	i.logger.Debug().
		Dur("elapsed", elapsed).
		Str("model", i.generator.Model()).
		Msg("Response time")

	if i.cache != nil {
		if err := i.cache.Put(ctx, key, resp); err != nil {
			i.logger.Warn().Err(err).Msg("Failed to write response cache")
		}
	}

	return resp
}

// Warmup sends a short prompt straight to the generator so the model is loaded before the first
// real message. The cache is bypassed.
func (i Inference) Warmup(ctx context.Context) error {
	if _, err := i.generator.Generate(ctx, warmupPrompt); err != nil {
		return errors.Wrap(err, "failed to preload model")
	}
	return nil
}

// CacheKey derives the cache key of prompt for model. Prompts are hashed so keys stay short enough
// for every backend.
func CacheKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}
