package notiflist

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campusbourses/internal/keys"
	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/notify"
	"github.com/nhle/campusbourses/internal/theme"
)

// Tab selects which store view the list shows.
type Tab int

const (
	TabUnread Tab = iota
	TabImportant
	TabAll
)

var tabs = []Tab{TabUnread, TabImportant, TabAll}

func (t Tab) String() string {
	switch t {
	case TabImportant:
		return "Important"
	case TabAll:
		return "All"
	default:
		return "Unread"
	}
}

// SelectedMsg is sent when the user opens a notification.
type SelectedMsg struct {
	N model.Notification
}

// Model is the notification list view.
type Model struct {
	list   list.Model
	store  *notify.Store
	keys   *keys.KeyMap
	tab    Tab
	width  int
	height int

	// built identifies what the items were last built from.
	built struct {
		store   *notify.Store
		tab     Tab
		version uint64
	}
}

// New creates a list over st.
func New(st *notify.Store, k *keys.KeyMap, width, height int) Model {
	delegate := ItemDelegate{now: time.Now}
	l := list.New([]list.Item{}, delegate, width, height-2)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	// The root model owns quitting.
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)

	m := Model{
		list:   l,
		store:  st,
		keys:   k,
		width:  width,
		height: height,
	}
	m.Refresh()
	return m
}

// SetStore points the list at another store, as after a session change.
func (m *Model) SetStore(st *notify.Store) {
	m.store = st
	m.Refresh()
}

// Tab returns the active tab.
func (m Model) Tab() Tab {
	return m.tab
}

// SetTab switches to t.
func (m *Model) SetTab(t Tab) {
	m.tab = t
	m.list.Select(0)
	m.Refresh()
}

// NextTab cycles through the tabs.
func (m *Model) NextTab() {
	m.SetTab(tabs[(int(m.tab)+1)%len(tabs)])
}

// view returns the store view backing the active tab.
func (m Model) view() []model.Notification {
	if m.store == nil {
		return nil
	}
	switch m.tab {
	case TabImportant:
		return m.store.Important()
	case TabAll:
		return m.store.All()
	default:
		return m.store.Unread()
	}
}

// Refresh reloads items from the store, keeping the cursor on the same
// notification when it is still listed.
func (m *Model) Refresh() {
	if m.store != nil {
		v := m.store.Version()
		if m.built.store == m.store && m.built.tab == m.tab && m.built.version == v && v > 0 {
			return
		}
		m.built.store, m.built.tab, m.built.version = m.store, m.tab, v
	} else {
		m.built.store = nil
	}

	var selected model.ID
	if it, ok := m.list.SelectedItem().(Item); ok {
		selected = it.N.ID
	}
	cursor := m.list.Index()

	notes := m.view()
	items := make([]list.Item, len(notes))
	next := -1
	for i, n := range notes {
		items[i] = Item{N: n}
		if n.ID == selected {
			next = i
		}
	}
	m.list.SetItems(items)

	switch {
	case next >= 0:
		m.list.Select(next)
	case cursor >= len(items) && len(items) > 0:
		m.list.Select(len(items) - 1)
	case len(items) > 0:
		m.list.Select(cursor)
	}
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.N, true
}

// Len returns the number of listed notifications.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Select):
			n, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return SelectedMsg{N: n} }

		case key.Matches(msg, m.keys.NextTab):
			m.NextTab()
			return m, nil
		}
	}

	// Navigation keys (up/down/pgup/pgdn) go to the list.
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the tab bar and the list.
func (m Model) View() string {
	body := m.list.View()
	if m.Len() == 0 {
		body = m.renderEmptyState()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), "", body)
}

func (m Model) renderTabs() string {
	parts := make([]string, 0, len(tabs))
	for _, t := range tabs {
		label := t.String()
		if m.store != nil {
			switch t {
			case TabUnread:
				label = fmt.Sprintf("%s (%d)", label, m.store.UnreadCount())
			case TabImportant:
				label = fmt.Sprintf("%s (%d)", label, m.store.ImportantCount())
			}
		}
		if t == m.tab {
			parts = append(parts, theme.ActiveTabStyle.Render(label))
		} else {
			parts = append(parts, theme.TabStyle.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height - 2).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch m.tab {
	case TabUnread:
		return style.Render("You're all caught up.\nNo unread notifications.")
	case TabImportant:
		return style.Render("No important notifications.")
	default:
		return style.Render("No notifications yet.\n\nPress r to refresh or c to configure the backend.")
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
