package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary  = lipgloss.Color("#4a76a8")
	colorBot      = lipgloss.Color("#e9ebee")
	colorText     = lipgloss.Color("#ffffff")
	colorTextDim  = lipgloss.Color("#8b949e")
	colorBotLabel = lipgloss.Color("#1dd1a1")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			Background(colorPrimary).
			Padding(0, 1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	userBubbleStyle = lipgloss.NewStyle().
			Foreground(colorText).
			PaddingLeft(2)

	botLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBotLabel)

	botBubbleStyle = lipgloss.NewStyle().
			Foreground(colorBot).
			PaddingLeft(2)

	loadingStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	inputPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Italic(true)
)
