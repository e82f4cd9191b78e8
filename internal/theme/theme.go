package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/uni-helper/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom hint bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps each status panel.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// PanelTitleStyle heads a panel.
var PanelTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue).
	MarginBottom(1)

// LabelStyle renders field labels in a panel.
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Width(22)

// HelpStyle is used for keyboard hints and secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle renders error text.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Bold(true)

// ConnectionStyle returns a color-coded style for a mailbox state.
func ConnectionStyle(s model.ConnectionStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch s {
	case model.StatusConnected:
		return base.Foreground(ColorGreen)
	case model.StatusReconnecting:
		return base.Foreground(ColorYellow)
	case model.StatusFailed:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// RunningStyle colors the queue running flag.
func RunningStyle(running bool) lipgloss.Style {
	if running {
		return lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	}
	return lipgloss.NewStyle().Bold(true).Foreground(ColorRed)
}
