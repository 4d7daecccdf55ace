package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/campusbourses/internal/keys"
	"github.com/nhle/campusbourses/internal/model"
	campussync "github.com/nhle/campusbourses/internal/sync"
	"github.com/nhle/campusbourses/internal/ui"
	"github.com/nhle/campusbourses/internal/ui/command"
	configview "github.com/nhle/campusbourses/internal/ui/config"
	"github.com/nhle/campusbourses/internal/ui/confirm"
	"github.com/nhle/campusbourses/internal/ui/detail"
	helpview "github.com/nhle/campusbourses/internal/ui/help"
	"github.com/nhle/campusbourses/internal/ui/notiflist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewConfig
	ViewHelp
	ViewCommand
	ViewConfirm
)

// deleteAction and deleteAllAction are carried through the confirm dialog.
type deleteAction struct{ id model.ID }
type deleteAllAction struct{}

// Options configures the root model.
type Options struct {
	Config     model.AppConfig
	ConfigPath string
	Tokens     TokenStore
	Logger     *zap.Logger

	// NewSource defaults to CampusSource.
	NewSource SourceFactory
}

// Model is the root Bubble Tea model that manages view routing, layout and
// the notification session shared by every view.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	list         notiflist.Model
	detail       detail.Model
	helpView     helpview.Model
	commandView  command.Model
	configView   configview.Model
	confirmView  confirm.Model

	cfg       model.AppConfig
	cfgPath   string
	tokens    TokenStore
	newSource SourceFactory
	log       *zap.Logger

	sess *session
	gen  int

	ready     bool
	notice    string
	noticeErr bool
	noticeSeq int
	authError string
}

// New creates the root model and opens a session for opts.Config. Polling
// starts with Init.
func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewSource == nil {
		opts.NewSource = CampusSource
	}
	k := keys.DefaultKeyMap()

	m := Model{
		currentView: ViewList,
		keys:        k,
		list:        notiflist.New(nil, k, 80, 24),
		detail:      detail.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		cfg:         opts.Config,
		cfgPath:     opts.ConfigPath,
		tokens:      opts.Tokens,
		newSource:   opts.NewSource,
		log:         opts.Logger,
	}
	m.configView = configview.New(k, m.probe, 80, 24)

	if err := m.openSession(); err != nil {
		m.log.Error("opening session", zap.Error(err))
		m.notice, m.noticeErr = "Cannot start: "+err.Error()+". Press c to configure.", true
	}
	return m
}

// Init starts polling and the clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startSession(), tickClock())
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.list.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.configView.SetSize(w, h)
		m.confirmView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case sessionEventMsg:
		if m.sess == nil || msg.gen != m.sess.gen {
			return m, nil
		}
		cmd := m.handleSessionEvent(msg.msg)
		return m, tea.Batch(cmd, m.listenEvents())

	case storeChangedMsg:
		if m.sess == nil || msg.gen != m.sess.gen {
			return m, nil
		}
		m.list.Refresh()
		m.refreshDetail()
		return m, m.listenStore()

	case mutationDoneMsg:
		if m.sess == nil || msg.gen != m.sess.gen || msg.err == nil {
			return m, nil
		}
		var mErr *campussync.MutationError
		if errors.As(msg.err, &mErr) {
			cmd := m.setNotice(mErr.Notice(), true)
			return m, cmd
		}
		cmd := m.setNotice(msg.err.Error(), true)
		return m, cmd

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case clockMsg:
		return m, tickClock()

	case notiflist.SelectedMsg:
		n := msg.N
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetNotification(&n)
		if !n.IsRead {
			return m, m.mutate(campussync.OpMarkRead, n.ID)
		}
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(string(msg))
		return m, cmd

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case configview.SavedMsg:
		m.currentView = ViewList
		return m, m.saveConfig(msg.Config, msg.Token)

	case configview.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case configSavedMsg:
		if msg.err != nil {
			cmd := m.setNotice("Could not save settings: "+msg.err.Error(), true)
			return m, cmd
		}
		m.cfg = msg.cfg
		m.closeSession()
		if err := m.openSession(); err != nil {
			cmd := m.setNotice("Could not start session: "+err.Error(), true)
			return m, cmd
		}
		cmd := tea.Batch(m.startSession(), m.setNotice("Settings saved", false))
		return m, cmd

	case confirm.ResultMsg:
		m.currentView = m.previousView
		if !msg.Confirmed {
			return m, nil
		}
		switch a := msg.Action.(type) {
		case deleteAction:
			if m.currentView == ViewDetail {
				m.currentView = ViewList
			}
			return m, m.mutate(campussync.OpDelete, a.id)
		case deleteAllAction:
			m.currentView = ViewList
			return m, m.mutate(campussync.OpDeleteAll, "")
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.closeSession()
			return m, tea.Quit
		}
		if m.capturesInput() {
			break
		}
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// capturesInput reports whether the active view takes raw keystrokes.
func (m Model) capturesInput() bool {
	switch m.currentView {
	case ViewConfig, ViewCommand, ViewConfirm:
		return true
	}
	return false
}

func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit) && m.currentView == ViewList:
		m.closeSession()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Back) && m.currentView == ViewHelp:
		m.currentView = m.previousView
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd, true

	case key.Matches(msg, m.keys.Dismiss):
		m.notice = ""
		m.authError = ""
		return m, nil, true
	}

	if m.currentView != ViewList && m.currentView != ViewDetail {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh(), true

	case key.Matches(msg, m.keys.MarkRead):
		if n, ok := m.target(); ok {
			return m, m.mutate(campussync.OpMarkRead, n.ID), true
		}
		return m, nil, true

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, m.mutate(campussync.OpMarkAllRead, ""), true

	case key.Matches(msg, m.keys.Delete):
		n, ok := m.target()
		if !ok {
			return m, nil, true
		}
		cmd := m.openConfirm(
			fmt.Sprintf("Delete %q?", n.Title),
			"This notification will be removed for good.",
			deleteAction{id: n.ID},
		)
		return m, cmd, true

	case key.Matches(msg, m.keys.DeleteAll):
		cmd := m.openConfirm(
			"Delete all notifications?",
			"Every notification, read or unread, will be removed.",
			deleteAllAction{},
		)
		return m, cmd, true

	case key.Matches(msg, m.keys.Configure):
		m.previousView = m.currentView
		m.currentView = ViewConfig
		cmd := m.configView.Start(m.cfg)
		return m, cmd, true
	}

	return m, nil, false
}

// target is the notification an action applies to: the open one in the
// detail view, the one under the cursor otherwise.
func (m Model) target() (model.Notification, bool) {
	if m.currentView == ViewDetail {
		return m.detail.Current()
	}
	return m.list.Selected()
}

func (m *Model) openConfirm(title, description string, action any) tea.Cmd {
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	m.confirmView = confirm.New(title, description, action, w, h)
	m.previousView = m.currentView
	m.currentView = ViewConfirm
	return m.confirmView.Init()
}

func (m *Model) handleSessionEvent(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case campussync.SyncResultMsg:
		if msg.AuthError != nil {
			m.authError = msg.AuthError.Message
		} else if msg.Applied {
			m.authError = ""
		}
		if n := len(msg.New); n == 1 {
			return m.setNotice("New: "+msg.New[0].Title, false)
		} else if n > 1 {
			return m.setNotice(fmt.Sprintf("%d new notifications", n), false)
		}
	case campussync.MutationResultMsg:
		m.log.Debug("mutation finished",
			zap.String("op", string(msg.Op)),
			zap.Bool("changed", msg.Changed),
			zap.Bool("failed", msg.Err != nil))
	}
	return nil
}

// refreshDetail re-reads the open notification from the store.
func (m *Model) refreshDetail() {
	cur, ok := m.detail.Current()
	if !ok || m.sess == nil {
		return
	}
	if n, found := m.sess.Store.Get(cur.ID); found {
		m.detail.SetNotification(&n)
		return
	}
	m.detail.SetNotification(nil)
}

// setNotice shows a transient notice that clears itself after the
// configured delay.
func (m *Model) setNotice(text string, isErr bool) tea.Cmd {
	m.noticeSeq++
	m.notice, m.noticeErr = text, isErr
	seq := m.noticeSeq
	ttl := m.cfg.NoticeTTL()
	if ttl <= 0 {
		ttl = 8 * time.Second
	}
	return tea.Tick(ttl, func(time.Time) tea.Msg { return clearNoticeMsg{seq: seq} })
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewConfirm:
		m.confirmView, cmd = m.confirmView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.syncStatus())
	content := m.renderContent()

	notice, isErr := m.notice, m.noticeErr
	if notice == "" && m.authError != "" && m.currentView == ViewList {
		notice, isErr = m.authError, true
	}
	statusBar := m.layout.RenderStatusBar(m.keyHints(), notice, isErr)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) headerTitle() string {
	title := "CampusBourses - " + m.cfg.Backend.Scope
	if m.sess == nil {
		return title
	}
	return title + " " + ui.Badge(m.sess.Store.UnreadCount(), m.sess.Store.ImportantCount())
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.list.View()
	case ViewDetail:
		return m.detail.View()
	case ViewConfig:
		return m.configView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewConfirm:
		return m.confirmView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the sync state.
func (m Model) syncStatus() string {
	if m.sess == nil {
		return "signed out"
	}
	st := m.sess.Scheduler.Status()
	switch st.State {
	case campussync.SyncRunning:
		return st.State.String()
	case campussync.SyncError:
		return "⚠ " + st.State.String()
	}
	if st.LastSync.IsZero() {
		return st.State.String()
	}
	return fmt.Sprintf("%s, updated %s", st.State, model.TimeAgo(st.LastSync, time.Now()))
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewDetail:
		return "esc back | m read | d delete | j/k scroll"
	case ViewConfig:
		return "enter next | esc cancel"
	case ViewConfirm:
		return "←/→ choose | enter confirm | esc cancel"
	default:
		return "q quit | ? help | tab " + m.list.Tab().String() + " | m read | A all read | d delete | r refresh"
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "refresh", "sync":
		return m.refresh()
	case "read-all", "mark all read":
		return m.mutate(campussync.OpMarkAllRead, "")
	case "delete-all":
		return m.openConfirm(
			"Delete all notifications?",
			"Every notification, read or unread, will be removed.",
			deleteAllAction{},
		)
	case "unread":
		m.list.SetTab(notiflist.TabUnread)
		m.currentView = ViewList
	case "important":
		m.list.SetTab(notiflist.TabImportant)
		m.currentView = ViewList
	case "all":
		m.list.SetTab(notiflist.TabAll)
		m.currentView = ViewList
	case "configure", "config":
		m.previousView = ViewList
		m.currentView = ViewConfig
		return m.configView.Start(m.cfg)
	case "logout":
		if err := m.logout(); err != nil {
			return m.setNotice("Logged out, but the token could not be removed: "+err.Error(), true)
		}
		return m.setNotice("Logged out. Press c to sign in again.", false)
	case "help":
		m.previousView = m.currentView
		m.currentView = ViewHelp
	case "quit", "q":
		m.closeSession()
		return tea.Quit
	default:
		return m.setNotice(fmt.Sprintf("Unknown command %q", cmd), true)
	}
	return nil
}
