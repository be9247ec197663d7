package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// DayHeadingStyle renders the date line above each day's agenda.
var DayHeadingStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// TodayHeadingStyle highlights the current day's heading.
var TodayHeadingStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// CompletedStyle renders completed occurrences.
var CompletedStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Strikethrough(true)

// EventStyle renders read-only calendar events.
var EventStyle = lipgloss.NewStyle().
	Foreground(ColorMagenta)

// TimeStyle renders the HH:MM column of timed items.
var TimeStyle = lipgloss.NewStyle().
	Foreground(ColorYellow)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// PanelStyle wraps overlay content like forms and the help view.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// UrgencyStyle returns a color-coded style for the given urgency level.
func UrgencyStyle(urgency int) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch urgency {
	case 3: // High
		return base.Foreground(ColorRed)
	case 2: // Medium
		return base.Foreground(ColorOrange)
	case 1: // Low
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}

// CalendarLabelStyle returns a color-coded style for a calendar name
// badge. Names hash onto a stable palette so the same calendar always
// gets the same color.
func CalendarLabelStyle(name string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	palette := []lipgloss.AdaptiveColor{
		ColorBlue, ColorGreen, ColorMagenta, ColorOrange, ColorYellow,
	}
	sum := 0
	for _, r := range name {
		sum += int(r)
	}
	return base.Foreground(palette[sum%len(palette)])
}
