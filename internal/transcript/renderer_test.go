package transcript

import (
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/llamachat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTicker struct {
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (m *manualTicker) C() <-chan time.Time { return m.c }

func (m *manualTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *manualTicker) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// tick blocks until the reveal goroutine has taken the tick.
func (m *manualTicker) tick() {
	m.c <- time.Now()
}

type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (c *manualClock) newTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{c: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *manualClock) ticker(i int) *manualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[i]
}

type recorder struct {
	mu          sync.Mutex
	changes     []Change
	notAtBottom int
	tr          *Transcript
}

func newRecorder() *recorder {
	r := &recorder{}
	r.tr = New(r.record)
	return r
}

func (r *recorder) record(c Change) {
	atBottom := r.tr.AtBottom()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	if c.Kind == ChangeScroll && !atBottom {
		r.notAtBottom++
	}
}

func (r *recorder) kinds() []ChangeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]ChangeKind, len(r.changes))
	for i, c := range r.changes {
		kinds[i] = c.Kind
	}
	return kinds
}

func (r *recorder) updates(id string) []models.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []models.Entry
	for _, c := range r.changes {
		if c.Kind == ChangeUpdate && c.Entry.ID == id {
			entries = append(entries, c.Entry)
		}
	}
	return entries
}

func TestRenderUserEntry(t *testing.T) {
	rec := newRecorder()
	clock := &manualClock{}
	r := NewRenderer(rec.tr, WithTicker(clock.newTicker))

	r.Render("Hi there", models.OriginUser)

	entries := rec.tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.OriginUser, entries[0].Origin)
	assert.Equal(t, "Hi there", entries[0].Text)
	assert.False(t, entries[0].Loading)
	assert.NotEmpty(t, entries[0].ID)

	assert.Equal(t, []ChangeKind{ChangeAppend, ChangeScroll}, rec.kinds())
	assert.True(t, rec.tr.AtBottom())
	assert.Empty(t, clock.tickers, "user entries are not animated")
}

func TestRenderBotEntryReveal(t *testing.T) {
	rec := newRecorder()
	clock := &manualClock{}
	r := NewRenderer(rec.tr, WithTicker(clock.newTicker))

	const text = "Hello"
	r.Render(text, models.OriginBot)

	entries := rec.tr.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Loading)
	assert.Empty(t, entries[0].Text)
	assert.True(t, rec.tr.AtBottom())

	tk := clock.ticker(0)
	for range text {
		tk.tick()
	}
	r.Wait()

	updates := rec.updates(entries[0].ID)
	require.Len(t, updates, len(text))
	for i, u := range updates {
		assert.Equal(t, text[:i+1], u.Text)
		assert.False(t, u.Loading, "placeholder is removed on the first reveal")
	}

	final := rec.tr.Entries()[0]
	assert.Equal(t, text, final.Text)
	assert.False(t, final.Loading)
	assert.True(t, tk.isStopped())
	assert.Zero(t, rec.notAtBottom, "every change leaves the region scrolled to the bottom")
}

func TestRenderBotEntryEmptyText(t *testing.T) {
	rec := newRecorder()
	clock := &manualClock{}
	r := NewRenderer(rec.tr, WithTicker(clock.newTicker))

	r.Render("", models.OriginBot)
	clock.ticker(0).tick()
	r.Wait()

	final := rec.tr.Entries()[0]
	assert.Empty(t, final.Text)
	assert.False(t, final.Loading)
	assert.True(t, clock.ticker(0).isStopped())
}

func TestConcurrentRevealsDoNotInterfere(t *testing.T) {
	rec := newRecorder()
	clock := &manualClock{}
	r := NewRenderer(rec.tr, WithTicker(clock.newTicker))

	r.Render("abc", models.OriginBot)
	r.Render("xy", models.OriginBot)

	first, second := clock.ticker(0), clock.ticker(1)
	first.tick()
	second.tick()
	first.tick()
	second.tick()
	first.tick()
	r.Wait()

	entries := rec.tr.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "abc", entries[0].Text)
	assert.Equal(t, "xy", entries[1].Text)
	assert.Len(t, rec.updates(entries[0].ID), 3)
	assert.Len(t, rec.updates(entries[1].ID), 2)
}

func TestRenderWithRealTicker(t *testing.T) {
	tr := New(nil)
	r := NewRenderer(tr, WithInterval(time.Millisecond))

	r.Render("Hello, world", models.OriginBot)
	r.Wait()

	entries := tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Hello, world", entries[0].Text)
	assert.True(t, tr.AtBottom())
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	r := NewRenderer(New(nil), WithInterval(0), WithInterval(-time.Second))
	assert.Equal(t, DefaultRevealInterval, r.interval)
}
