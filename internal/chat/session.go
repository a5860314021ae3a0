// Package chat wires user input, the inference client and the transcript renderer together.
package chat

import (
	"context"
	"strings"

	"github.com/MegaGrindStone/llamachat/internal/models"
	"github.com/rs/zerolog"
)

// Input is the text field the user types into.
type Input interface {
	Value() string
	Clear()
	Focus()
}

// Responder returns the reply to a prompt. It does not fail: errors are turned into a readable
// message by the implementation.
type Responder interface {
	FetchResponse(ctx context.Context, prompt string) string
}

// Renderer displays a message in the transcript.
type Renderer interface {
	Render(text string, origin models.Origin)
}

// Session is one chat widget: what the user sends is echoed, answered and revealed in its
// transcript. Sends are not serialized; a second send may start while the first one still waits for
// its reply, and replies are rendered in the order they arrive.
type Session struct {
	renderer  Renderer
	responder Responder

	logger zerolog.Logger
}

// NewSession creates a Session rendering through renderer and answering through responder.
func NewSession(renderer Renderer, responder Responder, logger zerolog.Logger) *Session {
	return &Session{
		renderer:  renderer,
		responder: responder,
		logger:    logger.With().Str("module", "chat").Logger(),
	}
}

// SendMessage sends the trimmed content of input. Blank input is ignored and false is returned
// without touching anything. Otherwise the input is cleared and refocused at once, the user entry
// is rendered, and SendMessage blocks until the reply is rendered.
func (s *Session) SendMessage(ctx context.Context, input Input) bool {
	msg := strings.TrimSpace(input.Value())
	if msg == "" {
		return false
	}

	input.Clear()
	input.Focus()

	s.renderer.Render(msg, models.OriginUser)

	reply := s.responder.FetchResponse(ctx, msg)
	s.logger.Debug().
		Int("promptLength", len(msg)).
		Int("replyLength", len(reply)).
		Msg("Reply received")

	s.renderer.Render(reply, models.OriginBot)
	return true
}
