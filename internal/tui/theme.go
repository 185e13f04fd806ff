package tui

import "github.com/charmbracelet/lipgloss"

// Colors - calm editor-adjacent palette
const (
	colorFg      = "#E7E5E4" // Stone 200
	colorFgMuted = "#78716C" // Stone 500
	colorAccent  = "#8B5CF6" // Violet 500
	colorUser    = "#60A5FA" // Blue 400
	colorEdit    = "#34D399" // Emerald 400
	colorError   = "#F87171" // Red 400
	colorBorder  = "#44403C" // Stone 700
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorFg)).
			Padding(0, 1).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color(colorBorder))

	headerMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFgMuted))

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorUser))

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color(colorAccent))

	appliedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorEdit))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError))

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorAccent)).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFgMuted)).
			Padding(0, 1)
)
