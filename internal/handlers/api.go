package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/llamachat/internal/models"
)

const loggedPromptLength = 30

// HandleAPIChat answers a JSON chat request with the model's reply in a single round trip, without
// touching any widget transcript. An inference failure is answered with the fallback message, like
// a reply, so the endpoint only fails on malformed requests.
func (m Main) HandleAPIChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.logger.Error().Err(err).Msg("Failed to decode chat request")
		m.jsonError(w, http.StatusBadRequest, errorResponse{
			Error:            "Invalid request body",
			ErrorDescription: err.Error(),
		})
		return
	}

	if req.Message == "" {
		m.jsonError(w, http.StatusBadRequest, errorResponse{Error: "No message provided"})
		return
	}

	start := time.Now()
	reply := m.responder.FetchResponse(r.Context(), req.Message)

	m.logger.Info().
		Dur("elapsed", time.Since(start)).
		Str("message", truncate(req.Message, loggedPromptLength)).
		Msg("Chat response served")

	m.writeJSON(w, http.StatusOK, models.ChatResponse{Response: strings.TrimSpace(reply)})
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
