package notiflist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/theme"
)

// Item wraps a notification so it can be used in a bubbles/list.
type Item struct {
	N model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.N.Title }

// ItemDelegate renders one notification per line.
type ItemDelegate struct {
	// now is the clock used for relative times.
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single list item line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	fmt.Fprint(w, d.renderLine(it.N, index == m.Index(), m.Width()))
}

func (d ItemDelegate) renderLine(n model.Notification, selected bool, width int) string {
	marker := " "
	title := n.Title
	if !n.IsRead {
		marker = "●"
		title = theme.UnreadStyle.Render(title)
	}

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString(" ")
	b.WriteString(theme.KindStyle(n.Kind).Render(n.Kind.Icon()))
	b.WriteString(" ")
	b.WriteString(title)
	if n.IsImportant {
		b.WriteString(theme.ImportantBadgeStyle.Render(" !"))
	}
	if n.MetadataLabel != "" {
		b.WriteString(theme.DimmedStyle.Render(" · " + n.MetadataLabel))
	}

	ago := theme.DimmedStyle.Render(n.TimeAgo(d.now()))
	line := b.String()
	if gap := width - lipgloss.Width(line) - lipgloss.Width(ago) - 4; gap > 0 {
		line += strings.Repeat(" ", gap) + ago
	} else {
		line += "  " + ago
	}

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}
