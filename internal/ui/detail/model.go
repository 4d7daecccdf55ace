package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusbourses/internal/keys"
	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// Model is the notification detail view.
type Model struct {
	n        *model.Notification
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	now      func() time.Time
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
		now:      time.Now,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg { return BackMsg{} }
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.n == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("This notification is no longer available")
	}
	return m.viewport.View()
}

// Current returns the displayed notification.
func (m Model) Current() (model.Notification, bool) {
	if m.n == nil {
		return model.Notification{}, false
	}
	return *m.n, true
}

// SetNotification shows n, or the empty state when n is nil. The scroll
// position is kept when the same notification is shown again.
func (m *Model) SetNotification(n *model.Notification) {
	same := n != nil && m.n != nil && n.ID == m.n.ID
	m.n = n
	m.viewport.SetContent(m.renderContent())
	if !same {
		m.viewport.GotoTop()
	}
}

func (m Model) renderContent() string {
	if m.n == nil {
		return ""
	}
	n := m.n

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", metaStyle.Render(fmt.Sprintf("%-10s", label+":")), valStyle.Render(value))
	}

	state := "read"
	if !n.IsRead {
		state = theme.UnreadStyle.Render("unread")
	}
	badges := []string{
		theme.KindStyle(n.Kind).Render(n.Kind.Icon() + " " + n.Kind.Label()),
		state,
	}
	if n.IsImportant {
		badges = append(badges, theme.ImportantBadgeStyle.Render("important"))
	}

	sections := []string{
		titleStyle.Render(n.Title),
		strings.Join(badges, "  "),
		"",
	}

	if !n.CreatedAt.IsZero() {
		created := n.CreatedAt.Local().Format("2006-01-02 15:04")
		sections = append(sections, row("Created", fmt.Sprintf("%s (%s)", created, n.TimeAgo(m.now()))))
	}
	if n.ActorName != "" {
		sections = append(sections, row("From", n.ActorName))
	}
	if n.MetadataLabel != "" {
		sections = append(sections, row("About", n.MetadataLabel))
	}
	switch n.Target() {
	case model.TargetDocuments:
		sections = append(sections, row("Opens", "documents #"+n.RelatedDocumentID.String()))
	case model.TargetApplications:
		sections = append(sections, row("Opens", "applications #"+n.RelatedApplicationID.String()))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := n.Message
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No message")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-4, 20)).Render(body))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.viewport.SetContent(m.renderContent())
}
