package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorFg       = "#F8FAFC" // Slate 50
	colorFgMuted  = "#94A3B8" // Slate 400
	colorPrimary  = "#3B82F6" // Blue 500
	colorAccent   = "#06B6D4" // Cyan 500
	colorSuccess  = "#10B981" // Emerald 500
	colorWarning  = "#F59E0B" // Amber 500
	colorError    = "#EF4444" // Red 500
	colorBorder   = "#334155" // Slate 700
	colorThinking = "#8B5CF6" // Purple 500
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorFg)).
			Padding(0, 1).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color(colorBorder))

	userHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary))

	assistantHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color(colorSuccess))

	thinkingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorThinking)).
			Italic(true)

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorAccent))

	toolErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError))

	questionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarning)).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFgMuted))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError))

	statusConnectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(colorSuccess))

	statusReconnectingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(colorWarning))

	statusDisconnectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(colorError))

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFgMuted)).
			Padding(0, 1)
)
