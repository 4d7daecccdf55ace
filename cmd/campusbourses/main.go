package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/theme"
)

var (
	configPath string
	scopeFlag  string
	baseURL    string

	rootCmd = &cobra.Command{
		Use:           "campusbourses",
		Short:         "CampusBourses notifications in the terminal",
		Long:          `Read and manage CampusBourses notifications from a terminal UI or from scripts.`,
		RunE:          runTUI,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	tuiCmd = &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal UI (default)",
		Args:  cobra.NoArgs,
		RunE:  runTUI,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "Config file")
	rootCmd.PersistentFlags().StringVarP(&scopeFlag, "scope", "s", "", "Notification scope (student or admin), overrides the config file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Backend API root, overrides the config file")

	rootCmd.AddCommand(tuiCmd, watchCmd, listCmd, readCmd, readAllCmd, deleteCmd, deleteAllCmd, loginCmd, logoutCmd, serveCmd)
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if scopeFlag != "" {
		cfg.Backend.Scope = scopeFlag
	}
	if baseURL != "" {
		cfg.Backend.BaseURL = baseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := theme.Apply(cfg.Display.Theme); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
