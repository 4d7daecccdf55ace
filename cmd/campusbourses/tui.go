package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/campusbourses/internal/app"
	"github.com/nhle/campusbourses/internal/credential"
	"github.com/nhle/campusbourses/internal/logging"
)

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs go to a file.
	if cfg.Log.File == "" {
		cfg.Log.File = logging.DefaultFile()
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts := app.Options{
		Config:     *cfg,
		ConfigPath: configPath,
		Logger:     log,
	}
	if vault, err := credential.Open(); err != nil {
		log.Warn("keyring unavailable, tokens will not be saved", zap.Error(err))
	} else {
		opts.Tokens = vault
	}

	p := tea.NewProgram(app.New(opts), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}
