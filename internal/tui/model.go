// Package tui renders a chat transcript in the terminal.
package tui

import (
	"context"
	"strings"

	"github.com/MegaGrindStone/llamachat/internal/chat"
	"github.com/MegaGrindStone/llamachat/internal/models"
	"github.com/MegaGrindStone/llamachat/internal/transcript"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

const eventBuffer = 64

// Message types for the TUI
type (
	// transcriptMsg reports that the transcript changed; the view is rebuilt from its entries.
	transcriptMsg struct {
		kind transcript.ChangeKind
	}
	inputMsg struct {
		action inputAction
	}
	sentMsg struct {
		sent bool
	}
)

type inputAction int

const (
	inputClear inputAction = iota
	inputFocus
)

// promptInput is the input handle of one send. The value is captured when Enter is pressed;
// clearing and focusing are applied to the text input by Update.
type promptInput struct {
	value  string
	events chan<- tea.Msg
}

func (p promptInput) Value() string { return p.value }

func (p promptInput) Clear() { p.events <- inputMsg{action: inputClear} }

func (p promptInput) Focus() { p.events <- inputMsg{action: inputFocus} }

// Model is the terminal chat: a viewport over the transcript and a single line input.
type Model struct {
	ctx       context.Context
	modelName string

	transcript *transcript.Transcript
	renderer   *transcript.Renderer
	session    *chat.Session
	events     chan tea.Msg

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	ready  bool
	width  int
	height int
}

// NewModel creates the terminal chat answering through responder. The renderer options tune the
// typing animation of replies.
func NewModel(
	ctx context.Context,
	responder chat.Responder,
	modelName string,
	logger zerolog.Logger,
	opts ...transcript.RendererOption,
) Model {
	events := make(chan tea.Msg, eventBuffer)

	// A full buffer already holds a pending refresh that will render the latest entries.
	tr := transcript.New(func(c transcript.Change) {
		select {
		case events <- transcriptMsg{kind: c.Kind}:
		default:
		}
	})
	renderer := transcript.NewRenderer(tr, opts...)

	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "> "
	ti.CharLimit = 4000
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	return Model{
		ctx:        ctx,
		modelName:  modelName,
		transcript: tr,
		renderer:   renderer,
		session:    chat.NewSession(renderer, responder, logger.With().Str("module", "tui").Logger()),
		events:     events,
		input:      ti,
		spinner:    s,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.waitForEvent(),
	)
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

func (m Model) send(value string) tea.Cmd {
	in := promptInput{value: value, events: m.events}
	return func() tea.Msg {
		return sentMsg{sent: m.session.SendMessage(m.ctx, in)}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 1
		inputHeight := 3
		hintHeight := 1

		vpHeight := m.height - headerHeight - inputHeight - hintHeight
		if vpHeight < 3 {
			vpHeight = 3
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.input.Width = m.width - 6
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.send(m.input.Value())
		}

		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)

	case transcriptMsg:
		m.refresh()
		return m, m.waitForEvent()

	case inputMsg:
		switch msg.action {
		case inputClear:
			m.input.Reset()
		case inputFocus:
			cmds = append(cmds, m.input.Focus())
		}
		cmds = append(cmds, m.waitForEvent())
		return m, tea.Batch(cmds...)

	case sentMsg:
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// refresh rebuilds the viewport content from the transcript and follows it to the bottom when the
// transcript was scrolled there.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	if m.transcript.AtBottom() {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderTranscript() string {
	width := m.viewport.Width - 2
	if width < 10 {
		width = 10
	}

	var sb strings.Builder
	for i, e := range m.transcript.Entries() {
		if i > 0 {
			sb.WriteString("\n")
		}

		if e.Origin == models.OriginUser {
			sb.WriteString(userLabelStyle.Render("You"))
			sb.WriteString("\n")
			sb.WriteString(userBubbleStyle.Width(width).Render(e.Text))
			sb.WriteString("\n")
			continue
		}

		sb.WriteString(botLabelStyle.Render("Bot"))
		sb.WriteString("\n")
		if e.Loading {
			sb.WriteString(botBubbleStyle.Render(m.spinner.View()))
		} else {
			sb.WriteString(botBubbleStyle.Width(width).Render(e.Text))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		headerStyle.Render("Llama Chat"),
		subtitleStyle.Render("  "+m.modelName),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		inputPanelStyle.Width(m.width-2).Render(m.input.View()),
		hintStyle.Render("enter send • esc quit"),
	)
}

// Run starts the terminal chat and blocks until the user quits.
func Run(m Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(m.ctx),
	)

	_, err := p.Run()
	return err
}
