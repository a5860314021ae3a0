package handlers

import (
	"net/http"
)

type homePageData struct {
	TranscriptID string
}

// HandleHome renders the widget page. Every page load starts a new widget session with an empty
// transcript, so reloading the page discards the previous conversation.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	wd := m.newWidget()

	m.logger.Debug().
		Str("transcriptID", wd.id).
		Str("remoteAddr", r.RemoteAddr).
		Msg("Widget session created")

	err := m.templates.ExecuteTemplate(w, "home.html", homePageData{
		TranscriptID: wd.id,
	})
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to render home page")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
