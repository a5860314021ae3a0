package handlers

import (
	"sync"
	"time"

	"github.com/MegaGrindStone/llamachat/internal/chat"
	"github.com/MegaGrindStone/llamachat/internal/transcript"
	"github.com/google/uuid"
)

const defaultSessionIdleTimeout = 30 * time.Minute

// widget is the server side of one loaded widget page.
type widget struct {
	id         string
	transcript *transcript.Transcript
	renderer   *transcript.Renderer
	session    *chat.Session

	lastSeen time.Time
	// subscribers counts the open SSE streams of the page. A widget with a subscriber is never idle.
	subscribers int
}

type widgets struct {
	mu   sync.Mutex
	byID map[string]*widget

	idleTimeout time.Duration
	now         func() time.Time
}

func newWidgets() *widgets {
	return &widgets{
		byID:        make(map[string]*widget),
		idleTimeout: defaultSessionIdleTimeout,
		now:         time.Now,
	}
}

// add registers wd, evicting the sessions without subscribers that have been idle for longer than
// the idle timeout.
func (ws *widgets) add(wd *widget) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	now := ws.now()
	for id, other := range ws.byID {
		if other.subscribers == 0 && now.Sub(other.lastSeen) > ws.idleTimeout {
			delete(ws.byID, id)
		}
	}

	wd.lastSeen = now
	ws.byID[wd.id] = wd
}

func (ws *widgets) get(id string) (*widget, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	wd, ok := ws.byID[id]
	if !ok {
		return nil, false
	}
	wd.lastSeen = ws.now()
	return wd, true
}

// attach records an SSE subscriber of the widget. The returned func detaches it; the idle timeout
// starts over from then.
func (ws *widgets) attach(id string) (func(), bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	wd, ok := ws.byID[id]
	if !ok {
		return nil, false
	}
	wd.subscribers++
	wd.lastSeen = ws.now()

	var once sync.Once
	return func() {
		once.Do(func() {
			ws.mu.Lock()
			defer ws.mu.Unlock()
			wd.subscribers--
			wd.lastSeen = ws.now()
		})
	}, true
}

func (ws *widgets) connected(id string) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	wd, ok := ws.byID[id]
	return ok && wd.subscribers > 0
}

func (ws *widgets) len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.byID)
}

func (m Main) newWidget() *widget {
	id := uuid.New().String()

	tr := transcript.New(m.transcriptListener(id))
	renderer := transcript.NewRenderer(tr,
		transcript.WithInterval(m.revealInterval),
		transcript.WithLogger(m.logger),
	)

	wd := &widget{
		id:         id,
		transcript: tr,
		renderer:   renderer,
		session:    chat.NewSession(renderer, m.responder, m.logger),
	}
	m.widgets.add(wd)

	return wd
}
