package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusbourses/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// Badge renders the unread/important counter shown next to the title.
func Badge(unread, important int) string {
	return fmt.Sprintf("[%d unread, %d important]", unread, important)
}

// RenderHeader renders the top header bar with a title and sync status.
func (l Layout) RenderHeader(title string, syncStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(syncStatus)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		fill(theme.HeaderStyle, gap),
		statusRendered,
	)
}

// RenderStatusBar renders the bottom bar. A notice, when present, replaces
// the keyboard hints.
func (l Layout) RenderStatusBar(hints string, notice string, isError bool) string {
	var rendered string
	switch {
	case notice != "" && isError:
		rendered = theme.NoticeStyle.Render(notice + "  (x to dismiss)")
	case notice != "":
		rendered = theme.InfoStyle.Render(notice)
	default:
		rendered = theme.StatusBarStyle.Render(hints)
	}

	gap := l.Width - lipgloss.Width(rendered)
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, fill(theme.StatusBarStyle, gap))
}

func fill(style lipgloss.Style, width int) string {
	if width < 0 {
		width = 0
	}
	return style.Render(
		lipgloss.NewStyle().
			Width(width).
			Background(style.GetBackground()).
			Render(""),
	)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}
