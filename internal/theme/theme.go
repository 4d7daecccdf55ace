package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusbourses/internal/model"
)

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

// Theme names accepted by Apply.
const (
	Default = "default"
	Mono    = "mono"
)

var (
	// HeaderStyle is used for the application title bar.
	HeaderStyle lipgloss.Style

	// StatusBarStyle is used for the bottom status bar.
	StatusBarStyle lipgloss.Style

	// NoticeStyle renders a failed-mutation notice in the status bar.
	NoticeStyle lipgloss.Style

	// InfoStyle renders an informational notice in the status bar.
	InfoStyle lipgloss.Style

	// DetailPanelStyle wraps the detail view content area.
	DetailPanelStyle lipgloss.Style

	// ListItemStyle is the base style for items in a list.
	ListItemStyle lipgloss.Style

	// SelectedItemStyle highlights the currently focused list item.
	SelectedItemStyle lipgloss.Style

	// UnreadStyle marks unread titles.
	UnreadStyle lipgloss.Style

	// ImportantBadgeStyle marks important notifications.
	ImportantBadgeStyle lipgloss.Style

	// TabStyle and ActiveTabStyle render the list tabs.
	TabStyle       lipgloss.Style
	ActiveTabStyle lipgloss.Style

	// HelpStyle is used for keyboard shortcut hints and help text.
	HelpStyle lipgloss.Style

	// DimmedStyle is for secondary text such as relative times.
	DimmedStyle lipgloss.Style

	mono bool
)

func init() {
	build(false)
}

// Apply switches the active theme.
func Apply(name string) error {
	switch name {
	case "", Default:
		build(false)
	case Mono:
		build(true)
	default:
		return fmt.Errorf("unknown theme %q (want %q or %q)", name, Default, Mono)
	}
	return nil
}

func color(c lipgloss.AdaptiveColor) lipgloss.TerminalColor {
	if mono {
		return lipgloss.NoColor{}
	}
	return c
}

func build(noColor bool) {
	mono = noColor

	HeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(color(ColorWhite)).
		Background(color(ColorBlue)).
		Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
		Foreground(color(ColorWhite)).
		Background(color(ColorSubtle)).
		Padding(0, 1)

	NoticeStyle = StatusBarStyle.
		Bold(true).
		Foreground(color(ColorRed))

	InfoStyle = StatusBarStyle.
		Foreground(color(ColorGreen))

	DetailPanelStyle = lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color(ColorBorder))

	ListItemStyle = lipgloss.NewStyle().
		PaddingLeft(2)

	SelectedItemStyle = lipgloss.NewStyle().
		PaddingLeft(1).
		Bold(true).
		Foreground(color(ColorBlue)).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(color(ColorBlue))

	UnreadStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(color(ColorWhite))

	ImportantBadgeStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(color(ColorOrange))

	TabStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(color(ColorGray))

	ActiveTabStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true).
		Underline(true).
		Foreground(color(ColorBlue))

	HelpStyle = lipgloss.NewStyle().
		Foreground(color(ColorGray)).
		Italic(true)

	DimmedStyle = lipgloss.NewStyle().
		Foreground(color(ColorGray))
}

// KindStyle returns a color-coded style for a notification kind.
func KindStyle(k model.Kind) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch k {
	case model.KindDocumentVerified, model.KindApplicationApproved:
		return base.Foreground(color(ColorGreen))
	case model.KindDocumentRejected, model.KindApplicationRejected:
		return base.Foreground(color(ColorRed))
	case model.KindApplicationUnderReview, model.KindInfoRequest:
		return base.Foreground(color(ColorYellow))
	case model.KindDeadlineReminder:
		return base.Foreground(color(ColorOrange))
	case model.KindDocumentUpload, model.KindApplicationSubmitted, model.KindUserRegistered:
		return base.Foreground(color(ColorBlue))
	case model.KindSystemAlert:
		return base.Foreground(color(ColorMagenta))
	default:
		return base.Foreground(color(ColorGray))
	}
}
