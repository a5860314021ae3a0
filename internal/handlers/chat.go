package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/MegaGrindStone/llamachat/internal/transcript"
	"github.com/tmaxmax/go-sse"
)

type inputAction string

const (
	inputClear inputAction = "clear"
	inputFocus inputAction = "focus"
)

// inputEvent asks the browser to clear or focus the text field. The browser clears the field
// before posting, so a clear carries the sent value and only applies while the field still holds it.
type inputEvent struct {
	Action inputAction `json:"action"`
	Value  string      `json:"value,omitempty"`
}

// revealEvent carries the text revealed since the previous event of the same entry.
type revealEvent struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// formInput is the input handle of a send made through the widget form. The form value is fixed
// at request time; clearing and focusing are forwarded to the browser as input events.
type formInput struct {
	value   string
	publish func(inputEvent)
}

func (f formInput) Value() string { return f.value }

func (f formInput) Clear() { f.publish(inputEvent{Action: inputClear, Value: f.value}) }

func (f formInput) Focus() { f.publish(inputEvent{Action: inputFocus}) }

// HandleChats sends a message typed into a widget. It expects the "message" and "transcript_id"
// form fields; the transcript ID is the one the home page handed out.
//
// Blank messages are acknowledged with 204 and have no effect. Otherwise the handler answers 202
// and the send runs in the background: the user entry, the loading placeholder and the revealed
// reply reach the browser as SSE events on the transcript's topic.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	transcriptID := r.FormValue("transcript_id")
	if transcriptID == "" {
		m.logger.Error().Msg("Transcript ID is required")
		http.Error(w, "Transcript ID is required", http.StatusBadRequest)
		return
	}

	wd, ok := m.widgets.get(transcriptID)
	if !ok {
		m.logger.Error().Str("transcriptID", transcriptID).Msg("Transcript not found")
		http.Error(w, "Transcript not found", http.StatusNotFound)
		return
	}

	msg := r.FormValue("message")
	if strings.TrimSpace(msg) == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	in := formInput{
		value:   msg,
		publish: m.inputPublisher(transcriptID),
	}

	// The send outlives the request, the browser follows it through SSE.
	ctx := context.WithoutCancel(r.Context())
	m.sends.Add(1)
	go func() {
		defer m.sends.Done()
		wd.session.SendMessage(ctx, in)
		wd.renderer.Wait()
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (m Main) inputPublisher(transcriptID string) func(inputEvent) {
	topic := transcriptTopic(transcriptID)
	return func(e inputEvent) {
		data, err := json.Marshal(e)
		if err != nil {
			m.logger.Error().Err(err).Msg("Failed to marshal input event")
			return
		}

		msg := &sse.Message{Type: inputSSEType}
		msg.AppendData(string(data))
		if err := m.sseSrv.Publish(msg, topic); err != nil {
			m.logger.Error().Err(err).Str("action", string(e.Action)).Msg("Failed to publish input event")
		}
	}
}

// transcriptListener mirrors the changes of one widget transcript to its SSE topic. An append
// carries the whole entry. An update that extends the text already sent for the entry carries
// only the new text, so a reveal costs the size of the reply and not its square; any other update
// resends the whole entry.
func (m Main) transcriptListener(transcriptID string) transcript.Listener {
	topic := transcriptTopic(transcriptID)

	var mu sync.Mutex
	sent := make(map[string]string)

	return func(c transcript.Change) {
		var (
			msg  = &sse.Message{}
			data []byte
			err  error
		)

		switch c.Kind {
		case transcript.ChangeAppend, transcript.ChangeUpdate:
			mu.Lock()
			prev, known := sent[c.Entry.ID]
			sent[c.Entry.ID] = c.Entry.Text
			mu.Unlock()

			if c.Kind == transcript.ChangeUpdate && known && !c.Entry.Loading &&
				strings.HasPrefix(c.Entry.Text, prev) {
				msg.Type = revealSSEType
				data, err = json.Marshal(revealEvent{ID: c.Entry.ID, Text: c.Entry.Text[len(prev):]})
			} else {
				msg.Type = entrySSEType
				data, err = json.Marshal(c.Entry)
			}
			if err != nil {
				m.logger.Error().Err(err).Str("entryID", c.Entry.ID).Msg("Failed to marshal entry")
				return
			}
			msg.AppendData(string(data))
		case transcript.ChangeScroll:
			msg.Type = scrollSSEType
			msg.AppendData("bottom")
		default:
			return
		}

		if err := m.sseSrv.Publish(msg, topic); err != nil {
			m.logger.Error().Err(err).Str("kind", c.Kind.String()).Msg("Failed to publish transcript change")
		}
	}
}
