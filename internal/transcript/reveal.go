package transcript

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Phase is the state of a reveal animation.
type Phase int

const (
	// PhaseLoading shows the placeholder; nothing has been revealed yet.
	PhaseLoading Phase = iota
	// PhaseRevealing shows a prefix of the text.
	PhaseRevealing
	// PhaseDone shows the whole text. A reveal never leaves this phase.
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseRevealing:
		return "revealing"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Reveal is the state machine behind the typing animation of one entry. Each Step reveals one more
// user-perceived character (grapheme cluster), so emoji and combining marks never show half drawn.
type Reveal struct {
	clusters []string
	index    int
	phase    Phase
	visible  strings.Builder
}

// NewReveal prepares the reveal of text. The machine starts in PhaseLoading.
func NewReveal(text string) *Reveal {
	var clusters []string
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		clusters = append(clusters, g.Str())
	}
	return &Reveal{clusters: clusters}
}

// Step advances the machine by one tick and returns the visible text. changed is false once the
// machine is done.
//
// Loading goes straight to Done for an empty text, which still counts as a change because the
// placeholder disappears.
func (r *Reveal) Step() (visible string, changed bool) {
	switch r.phase {
	case PhaseDone:
		return r.visible.String(), false
	case PhaseLoading:
		if len(r.clusters) == 0 {
			r.phase = PhaseDone
			return "", true
		}
		r.phase = PhaseRevealing
	}

	r.visible.WriteString(r.clusters[r.index])
	r.index++
	if r.index == len(r.clusters) {
		r.phase = PhaseDone
	}
	return r.visible.String(), true
}

// Phase returns the current phase.
func (r *Reveal) Phase() Phase {
	return r.phase
}

// Index returns how many characters are visible.
func (r *Reveal) Index() int {
	return r.index
}

// Len returns the number of characters of the full text.
func (r *Reveal) Len() int {
	return len(r.clusters)
}
