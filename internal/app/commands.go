package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/campusbourses/internal/credential"
	"github.com/nhle/campusbourses/internal/model"
	campussync "github.com/nhle/campusbourses/internal/sync"
)

const mutationTimeout = 30 * time.Second

// mutationDoneMsg is sent when a gateway call returns.
type mutationDoneMsg struct {
	gen int
	op  campussync.Op
	err error
}

// configSavedMsg is sent after settings were written.
type configSavedMsg struct {
	cfg model.AppConfig
	err error
}

// clearNoticeMsg clears the notice with the same sequence number.
type clearNoticeMsg struct {
	seq int
}

// clockMsg re-renders relative times.
type clockMsg time.Time

func tickClock() tea.Cmd {
	return tea.Tick(time.Minute, func(t time.Time) tea.Msg { return clockMsg(t) })
}

// mutate runs op through the gateway. id is ignored by the bulk
// operations.
func (m Model) mutate(op campussync.Op, id model.ID) tea.Cmd {
	if m.sess == nil {
		return nil
	}
	gw, gen := m.sess.Gateway, m.sess.gen
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()

		var err error
		switch op {
		case campussync.OpMarkRead:
			err = gw.MarkRead(ctx, id)
		case campussync.OpMarkAllRead:
			err = gw.MarkAllRead(ctx)
		case campussync.OpDelete:
			err = gw.Delete(ctx, id)
		case campussync.OpDeleteAll:
			err = gw.DeleteAll(ctx)
		default:
			err = fmt.Errorf("unknown operation %q", op)
		}
		return mutationDoneMsg{gen: gen, op: op, err: err}
	}
}

// refresh asks for an immediate fetch. The outcome arrives as a
// SyncResultMsg; a fetch already in flight makes this a no-op.
func (m Model) refresh() tea.Cmd {
	if m.sess == nil {
		return nil
	}
	sched, log := m.sess.Scheduler, m.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()
		if err := sched.TriggerNow(ctx); err != nil && !errors.Is(err, campussync.ErrFetchInFlight) {
			log.Debug("manual refresh failed", zap.Error(err))
		}
		return nil
	}
}

// saveConfig persists cfg and, when given, the token.
func (m Model) saveConfig(cfg model.AppConfig, token string) tea.Cmd {
	path, tokens := m.cfgPath, m.tokens
	return func() tea.Msg {
		if err := cfg.Validate(); err != nil {
			return configSavedMsg{err: err}
		}
		if token != "" && tokens != nil {
			scope, _ := model.ParseScope(cfg.Backend.Scope)
			if err := tokens.SetToken(cfg.Backend.BaseURL, scope, token); err != nil {
				return configSavedMsg{err: err}
			}
		}
		if path != "" {
			if err := model.SaveConfig(path, &cfg); err != nil {
				return configSavedMsg{err: err}
			}
		}
		return configSavedMsg{cfg: cfg}
	}
}

// probe checks a configuration by fetching once.
func (m Model) probe(ctx context.Context, cfg model.AppConfig, token string) error {
	if token == "" && m.tokens != nil {
		scope, err := model.ParseScope(cfg.Backend.Scope)
		if err != nil {
			return err
		}
		token, err = m.tokens.Token(cfg.Backend.BaseURL, scope)
		if err != nil && !errors.Is(err, credential.ErrNoToken) {
			return err
		}
	}
	src, err := m.newSource(cfg, token, m.log)
	if err != nil {
		return err
	}
	_, err = src.Fetch(ctx)
	return err
}

// logout forgets the token and tears the session down.
func (m *Model) logout() error {
	var err error
	if m.tokens != nil {
		scope, _ := model.ParseScope(m.cfg.Backend.Scope)
		err = m.tokens.DeleteToken(m.cfg.Backend.BaseURL, scope)
	}
	m.closeSession()
	return err
}
