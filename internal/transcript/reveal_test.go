package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevealSteps(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		steps []string
	}{
		{
			name:  "ascii",
			text:  "Hello",
			steps: []string{"H", "He", "Hel", "Hell", "Hello"},
		},
		{
			name:  "combining mark stays with its base",
			text:  "aé",
			steps: []string{"a", "aé"},
		},
		{
			name:  "emoji with skin tone is one character",
			text:  "hi 👋🏽",
			steps: []string{"h", "hi", "hi ", "hi 👋🏽"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rv := NewReveal(tt.text)
			require.Equal(t, PhaseLoading, rv.Phase())
			require.Equal(t, len(tt.steps), rv.Len())

			for i, want := range tt.steps {
				visible, changed := rv.Step()
				require.True(t, changed)
				assert.Equal(t, want, visible)
				assert.Equal(t, i+1, rv.Index())
			}
			assert.Equal(t, PhaseDone, rv.Phase())

			visible, changed := rv.Step()
			assert.False(t, changed)
			assert.Equal(t, tt.text, visible)
		})
	}
}

func TestRevealPhases(t *testing.T) {
	rv := NewReveal("ab")

	rv.Step()
	assert.Equal(t, PhaseRevealing, rv.Phase())

	rv.Step()
	assert.Equal(t, PhaseDone, rv.Phase())
}

func TestRevealEmptyText(t *testing.T) {
	rv := NewReveal("")

	visible, changed := rv.Step()
	assert.True(t, changed, "the placeholder disappears")
	assert.Empty(t, visible)
	assert.Equal(t, PhaseDone, rv.Phase())

	_, changed = rv.Step()
	assert.False(t, changed)
}
