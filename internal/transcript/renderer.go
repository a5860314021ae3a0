package transcript

import (
	"sync"
	"time"

	"github.com/MegaGrindStone/llamachat/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultRevealInterval is the delay between two revealed characters.
const DefaultRevealInterval = 20 * time.Millisecond

// Region is the display region a Renderer writes into. Transcript is the in-memory implementation;
// surfaces observe it through its Listener.
type Region interface {
	Append(entry models.Entry)
	Update(entry models.Entry)
	ScrollToBottom()
}

// Ticker delivers the ticks that drive a reveal animation.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

// NewTimeTicker returns a Ticker backed by time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }

func (t timeTicker) Stop() { t.t.Stop() }

// Renderer appends entries to a Region. User entries appear at once; bot entries start with a
// loading placeholder and are revealed by their own goroutine, one character per interval.
type Renderer struct {
	region    Region
	interval  time.Duration
	newTicker TickerFunc
	now       func() time.Time

	logger zerolog.Logger

	wg sync.WaitGroup
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithInterval sets the delay between revealed characters. Non-positive values are ignored.
func WithInterval(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithTicker replaces the tick source of reveal animations.
func WithTicker(f TickerFunc) RendererOption {
	return func(r *Renderer) {
		r.newTicker = f
	}
}

// WithLogger sets the logger used for animation diagnostics.
func WithLogger(logger zerolog.Logger) RendererOption {
	return func(r *Renderer) {
		r.logger = logger.With().Str("module", "renderer").Logger()
	}
}

// NewRenderer creates a Renderer writing into region.
func NewRenderer(region Region, opts ...RendererOption) *Renderer {
	r := &Renderer{
		region:    region,
		interval:  DefaultRevealInterval,
		newTicker: NewTimeTicker,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render appends text to the region as an entry of the given origin and scrolls to the bottom.
// For bot entries it returns as soon as the placeholder is shown; the reveal keeps running in the
// background and can not be cancelled.
func (r *Renderer) Render(text string, origin models.Origin) {
	entry := models.Entry{
		Message:   models.Message{Origin: origin},
		ID:        uuid.New().String(),
		Timestamp: r.now(),
	}

	if entry.IsUser() {
		entry.Text = text
		r.region.Append(entry)
		r.region.ScrollToBottom()
		return
	}

	entry.Loading = true
	r.region.Append(entry)
	r.region.ScrollToBottom()

	ticker := r.newTicker(r.interval)
	r.wg.Add(1)
	go r.reveal(entry, NewReveal(text), ticker)
}

// Wait blocks until every reveal started so far is done.
func (r *Renderer) Wait() {
	r.wg.Wait()
}

func (r *Renderer) reveal(entry models.Entry, rv *Reveal, ticker Ticker) {
	defer r.wg.Done()
	defer ticker.Stop()

	for range ticker.C() {
		visible, changed := rv.Step()
		if changed {
			entry.Text = visible
			entry.Loading = false
			r.region.Update(entry)
			r.region.ScrollToBottom()
		}
		if rv.Phase() == PhaseDone {
			r.logger.Debug().
				Str("entryID", entry.ID).
				Int("chars", rv.Len()).
				Msg("Reveal done")
			return
		}
	}
}
