package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI generates text through any OpenAI-compatible chat completion API, Ollama's own /v1
// endpoint included. The prompt is sent as a single user message.
type OpenAI struct {
	model  string
	params Parameters

	client *goopenai.Client

	logger zerolog.Logger
}

// NewOpenAI creates a new OpenAI instance. An empty baseURL selects the official OpenAI API.
func NewOpenAI(baseURL, apiKey, model string, params Parameters, logger zerolog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return OpenAI{
		model:  model,
		params: params,
		client: goopenai.NewClientWithConfig(cfg),
		logger: logger.With().Str("module", "openai").Logger(),
	}
}

// Model returns the model name sent with every request.
func (o OpenAI) Model() string {
	return o.model
}

// Generate sends prompt as a non-streaming chat completion and returns the first choice.
func (o OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	req := o.chatRequest([]goopenai.ChatCompletionMessage{
		{
			Role:    goopenai.ChatMessageRoleUser,
			Content: prompt,
		},
	})

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "error sending request")
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices found")
	}

	o.logger.Debug().
		Str("finishReason", string(resp.Choices[0].FinishReason)).
		Int("totalTokens", resp.Usage.TotalTokens).
		Msg("Generated response")

	return resp.Choices[0].Message.Content, nil
}

func (o OpenAI) chatRequest(messages []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   false,
	}

	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.MaxTokens != nil {
		req.MaxTokens = *o.params.MaxTokens
	}
	if o.params.Stop != nil {
		req.Stop = o.params.Stop
	}
	if o.params.Seed != nil {
		req.Seed = o.params.Seed
	}

	return req
}
