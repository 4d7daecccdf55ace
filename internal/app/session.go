package app

import (
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/campusbourses/internal/credential"
	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/source"
	"github.com/nhle/campusbourses/internal/source/campus"
	campussync "github.com/nhle/campusbourses/internal/sync"
)

// TokenStore keeps bearer tokens per backend and scope.
type TokenStore interface {
	Token(baseURL string, scope model.Scope) (string, error)
	SetToken(baseURL string, scope model.Scope, token string) error
	DeleteToken(baseURL string, scope model.Scope) error
}

// SourceFactory builds the backend a session talks to.
type SourceFactory func(cfg model.AppConfig, token string, logger *zap.Logger) (source.Source, error)

// CampusSource is the default SourceFactory.
func CampusSource(cfg model.AppConfig, token string, logger *zap.Logger) (source.Source, error) {
	return campus.FromConfig(cfg, token, logger)
}

// sessionEventMsg wraps a scheduler event with the generation of the
// session that produced it.
type sessionEventMsg struct {
	gen int
	msg tea.Msg
}

// storeChangedMsg is sent when the session's store changed.
type storeChangedMsg struct {
	gen int
}

// session is a running campussync.Session plus what the UI needs to stop
// listening to it.
type session struct {
	*campussync.Session
	gen     int
	done    chan struct{}
	unsub   func()
	changes <-chan struct{}
	once    sync.Once
}

// stop ends the session. Later calls do nothing.
func (s *session) stop() {
	s.once.Do(func() {
		close(s.done)
		s.unsub()
		s.Close()
	})
}

// openSession builds and starts a session for cfg.
func (m *Model) openSession() error {
	scope, err := model.ParseScope(m.cfg.Backend.Scope)
	if err != nil {
		return err
	}

	token := ""
	if m.tokens != nil {
		token, err = m.tokens.Token(m.cfg.Backend.BaseURL, scope)
		if err != nil && !errors.Is(err, credential.ErrNoToken) {
			m.log.Warn("reading token", zap.Error(err))
		}
	}

	src, err := m.newSource(m.cfg, token, m.log)
	if err != nil {
		return err
	}

	m.gen++
	sess := campussync.NewSession(src, m.log, m.cfg.RequestTimeout())
	ch, unsub := sess.Store.Subscribe()
	m.sess = &session{
		Session: sess,
		gen:     m.gen,
		done:    make(chan struct{}),
		unsub:   unsub,
		changes: ch,
	}
	m.list.SetStore(sess.Store)
	m.authError = ""
	return nil
}

// closeSession stops polling, clears the store and releases listeners.
func (m *Model) closeSession() {
	if m.sess == nil {
		return
	}
	m.sess.stop()
	m.sess = nil
	m.list.SetStore(nil)
}

// startSession begins polling and returns the listener commands.
func (m *Model) startSession() tea.Cmd {
	if m.sess == nil {
		return nil
	}
	m.sess.Start(m.cfg.PollInterval())
	return tea.Batch(m.listenEvents(), m.listenStore())
}

func (m Model) listenEvents() tea.Cmd {
	if m.sess == nil {
		return nil
	}
	gen := m.sess.gen
	wait := m.sess.Scheduler.WaitForEvent(m.sess.done)
	return func() tea.Msg {
		msg := wait()
		if msg == nil {
			return nil
		}
		return sessionEventMsg{gen: gen, msg: msg}
	}
}

func (m Model) listenStore() tea.Cmd {
	if m.sess == nil {
		return nil
	}
	gen, changes, done := m.sess.gen, m.sess.changes, m.sess.done
	return func() tea.Msg {
		select {
		case <-changes:
			return storeChangedMsg{gen: gen}
		case <-done:
			return nil
		}
	}
}
