package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/MegaGrindStone/llamachat/internal/models"
	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultOllamaHost is where a local Ollama server listens unless configured otherwise.
const DefaultOllamaHost = "http://localhost:11434"

// Ollama generates text through the /api/generate endpoint of an Ollama server. Requests are never
// streamed: the whole reply is returned at once.
type Ollama struct {
	host   string
	model  string
	params Parameters

	client *api.Client

	logger zerolog.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. A host
// without a scheme, as OLLAMA_HOST is often written, is treated as plain http.
func NewOllama(host, model string, params Parameters, logger zerolog.Logger) (Ollama, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, errors.Wrapf(err, "invalid ollama host %q", host)
	}

	return Ollama{
		host:   host,
		model:  model,
		params: params,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With().Str("module", "ollama").Logger(),
	}, nil
}

// Model returns the model name sent with every request.
func (o Ollama) Model() string {
	return o.model
}

// Request builds the body sent for prompt.
func (o Ollama) Request(prompt string) models.InferenceRequest {
	return models.InferenceRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  false,
		Options: o.params.ollamaOptions(),
	}
}

// Generate sends prompt to the model and returns the generated text. The response field is taken
// verbatim; a reply without one yields an empty string.
func (o Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	req := o.Request(prompt)
	stream := req.Stream

	var resp models.InferenceResponse
	err := o.client.Generate(ctx, &api.GenerateRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Stream:  &stream,
		Options: req.Options,
	}, func(res api.GenerateResponse) error {
		resp.Response += res.Response
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "error sending request")
	}

	o.logger.Debug().
		Str("host", o.host).
		Int("length", len(resp.Response)).
		Msg("Generated response")

	return resp.Response, nil
}
