// Package transcript renders chat entries into a scrollable display region and plays the typing
// animation that reveals bot replies one character at a time.
package transcript

import (
	"strings"
	"sync"

	"github.com/MegaGrindStone/llamachat/internal/models"
)

// ChangeKind identifies what happened to a transcript.
type ChangeKind int

const (
	// ChangeAppend is emitted when a new entry is added at the end of the transcript.
	ChangeAppend ChangeKind = iota
	// ChangeUpdate is emitted when the visible content of an existing entry changes.
	ChangeUpdate
	// ChangeScroll is emitted when the scroll position moves to the bottom.
	ChangeScroll
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAppend:
		return "append"
	case ChangeUpdate:
		return "update"
	case ChangeScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

// Change describes one mutation of a transcript. Entry is the full state of the affected entry
// after the change and is zero for ChangeScroll.
type Change struct {
	Kind  ChangeKind
	Entry models.Entry
}

// Listener receives transcript changes. It is called after the transcript lock is released, so it
// may read the transcript, but it must not block for long: reveal animations call it on every tick.
type Listener func(Change)

// Transcript is an in-memory display region. It keeps entries in append order and models the
// scroll position in lines, the way a browser chat box exposes scrollTop and scrollHeight.
type Transcript struct {
	mu        sync.Mutex
	entries   []models.Entry
	index     map[string]int
	scrollTop int

	listener Listener
}

// New creates an empty transcript. The listener may be nil.
func New(listener Listener) *Transcript {
	return &Transcript{
		index:    make(map[string]int),
		listener: listener,
	}
}

// Append adds entry at the end of the transcript.
func (t *Transcript) Append(entry models.Entry) {
	t.mu.Lock()
	t.index[entry.ID] = len(t.entries)
	t.entries = append(t.entries, entry)
	t.mu.Unlock()

	t.notify(Change{Kind: ChangeAppend, Entry: entry})
}

// Update replaces the entry carrying the same ID. Unknown IDs are ignored.
func (t *Transcript) Update(entry models.Entry) {
	t.mu.Lock()
	i, ok := t.index[entry.ID]
	if ok {
		t.entries[i] = entry
	}
	t.mu.Unlock()

	if ok {
		t.notify(Change{Kind: ChangeUpdate, Entry: entry})
	}
}

// ScrollToBottom moves the scroll position to its maximum.
func (t *Transcript) ScrollToBottom() {
	t.mu.Lock()
	t.scrollTop = t.scrollHeightLocked()
	t.mu.Unlock()

	t.notify(Change{Kind: ChangeScroll})
}

// ScrollTop returns the current scroll position in lines.
func (t *Transcript) ScrollTop() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrollTop
}

// ScrollHeight returns the total height of the transcript in lines. Every entry takes at least one
// line, a loading placeholder included.
func (t *Transcript) ScrollHeight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrollHeightLocked()
}

// AtBottom reports whether the scroll position is at its maximum.
func (t *Transcript) AtBottom() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrollTop == t.scrollHeightLocked()
}

// Entries returns a copy of the entries in append order.
func (t *Transcript) Entries() []models.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]models.Entry, len(t.entries))
	copy(entries, t.entries)
	return entries
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Transcript) scrollHeightLocked() int {
	height := 0
	for _, e := range t.entries {
		height += 1 + strings.Count(e.Text, "\n")
	}
	return height
}

func (t *Transcript) notify(c Change) {
	if t.listener != nil {
		t.listener(c)
	}
}
