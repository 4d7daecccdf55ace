package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/campusbourses/internal/credential"
	"github.com/nhle/campusbourses/internal/logging"
	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/source/campus"
	campussync "github.com/nhle/campusbourses/internal/sync"
)

// cliEnv is what every non-interactive command needs.
type cliEnv struct {
	cfg *model.AppConfig
	log *zap.Logger
}

func newEnv() (*cliEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &cliEnv{cfg: cfg, log: log}, nil
}

func (e *cliEnv) scope() model.Scope {
	scope, _ := model.ParseScope(e.cfg.Backend.Scope)
	return scope
}

func (e *cliEnv) token() (string, error) {
	vault, err := credential.Open()
	if err != nil {
		return "", err
	}
	token, err := vault.Token(e.cfg.Backend.BaseURL, e.scope())
	if errors.Is(err, credential.ErrNoToken) {
		e.log.Debug("no stored token, calling the backend anonymously")
		return "", nil
	}
	return token, err
}

// session opens a session and loads the first snapshot.
func (e *cliEnv) session(ctx context.Context) (*campussync.Session, error) {
	token, err := e.token()
	if err != nil {
		return nil, err
	}
	src, err := campus.FromConfig(*e.cfg, token, e.log)
	if err != nil {
		return nil, err
	}
	sess := campussync.NewSession(src, e.log, e.cfg.RequestTimeout())
	if err := sess.Scheduler.TriggerNow(ctx); err != nil {
		sess.Close()
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}
	return sess, nil
}

func (e *cliEnv) close() {
	_ = e.log.Sync()
}
