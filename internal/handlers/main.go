package handlers

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/MegaGrindStone/llamachat"
	"github.com/MegaGrindStone/llamachat/internal/chat"
	"github.com/MegaGrindStone/llamachat/internal/transcript"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/tmaxmax/go-sse"
)

// Main serves the chat widget: the page itself, the send endpoint, the server-sent events that
// mirror each widget's transcript into the browser, and the JSON chat API.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	responder chat.Responder
	widgets   *widgets
	// sends tracks the background sends of /chats until their reveal is done.
	sends *sync.WaitGroup

	revealInterval time.Duration

	logger zerolog.Logger
}

// Option configures Main.
type Option func(*Main)

// WithRevealInterval sets the typing speed of bot replies.
func WithRevealInterval(d time.Duration) Option {
	return func(m *Main) {
		m.revealInterval = d
	}
}

// WithSessionIdleTimeout sets how long an unused widget session is kept.
func WithSessionIdleTimeout(d time.Duration) Option {
	return func(m *Main) {
		if d > 0 {
			m.widgets.idleTimeout = d
		}
	}
}

// SSE event types for real-time updates.
var (
	entrySSEType  = sse.Type("entry")
	revealSSEType = sse.Type("reveal")
	scrollSSEType = sse.Type("scroll")
	inputSSEType  = sse.Type("input")
)

// NewMain creates a new Main answering through responder. It parses the page templates from the
// embedded filesystem and prepares the SSE server, which subscribes every client to the topic of
// the transcript named in its transcript_id query parameter.
func NewMain(responder chat.Responder, logger zerolog.Logger, opts ...Option) (Main, error) {
	tmpl, err := template.ParseFS(
		llamachat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	m := Main{
		templates:      tmpl,
		responder:      responder,
		widgets:        newWidgets(),
		sends:          &sync.WaitGroup{},
		revealInterval: transcript.DefaultRevealInterval,
		logger:         logger.With().Str("module", "handlers").Logger(),
	}
	for _, opt := range opts {
		opt(&m)
	}

	widgets := m.widgets
	m.sseSrv = &sse.Server{
		OnSession: func(s *sse.Session) (sse.Subscription, bool) {
			topics := []string{sse.DefaultTopic}

			transcriptID := s.Req.URL.Query().Get("transcript_id")
			if transcriptID != "" {
				if detach, ok := widgets.attach(transcriptID); ok {
					go func() {
						<-s.Req.Context().Done()
						detach()
					}()
				}
				topics = append(topics, transcriptTopic(transcriptID))
			}

			return sse.Subscription{
				Client:      s,
				LastEventID: s.LastEventID,
				Topics:      topics,
			}, true
		},
	}

	return m, nil
}

func transcriptTopic(transcriptID string) string {
	return fmt.Sprintf("transcript-%s", transcriptID)
}

// Router returns the routes of the widget. Requests with a method a route does not accept are
// answered with 405.
func (m Main) Router() (*mux.Router, error) {
	staticFS, err := fs.Sub(llamachat.StaticFS, "static")
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.Use(m.logRequests)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	r.HandleFunc("/", m.HandleHome).Methods(http.MethodGet)
	r.HandleFunc("/chats", m.HandleChats).Methods(http.MethodPost)
	r.HandleFunc("/sse", m.HandleSSE).Methods(http.MethodGet)
	r.HandleFunc("/api/chat", m.HandleAPIChat).Methods(http.MethodPost)

	return r, nil
}

// HandleSSE streams the transcript changes of one widget session to the browser.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Transcript returns the transcript of the widget session with the given ID.
func (m Main) Transcript(id string) (*transcript.Transcript, bool) {
	wd, ok := m.widgets.get(id)
	if !ok {
		return nil, false
	}
	return wd.transcript, true
}

// Shutdown gracefully terminates the Main instance's SSE server. It lets running sends and their
// reveals finish, broadcasts a close message to all connected clients and waits up to 5 seconds for
// connections to terminate. After the timeout, any remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	if err := waitGroup(ctx, m.sends); err != nil {
		m.logger.Warn().Err(err).Msg("Sends still running at shutdown")
	}

	e := &sse.Message{Type: sse.Type("closeChat")}
	// SSE requires data on every event.
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	return m.sseSrv.Shutdown(ctx)
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sessions returns the number of live widget sessions.
func (m Main) Sessions() int {
	return m.widgets.len()
}

// Connected reports whether a browser is following the events of the widget session.
func (m Main) Connected(id string) bool {
	return m.widgets.connected(id)
}

func (m Main) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		m.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("Request served")
	})
}
