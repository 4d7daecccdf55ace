package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/campusbourses/internal/credential"
	"github.com/nhle/campusbourses/internal/source"
	"github.com/nhle/campusbourses/internal/source/campus"
)

var (
	tokenFlag string
	noVerify  bool

	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token for the configured backend and scope",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
)

func init() {
	loginCmd.Flags().StringVar(&tokenFlag, "token", "", "Bearer token; prompted for when empty")
	loginCmd.Flags().BoolVar(&noVerify, "no-verify", false, "Store the token without calling the backend")
}

func runLogin(cmd *cobra.Command, _ []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.close()

	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		err := huh.NewInput().
			Title("Bearer token for " + env.cfg.Backend.BaseURL).
			EchoMode(huh.EchoModePassword).
			Value(&token).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("token is required")
				}
				return nil
			}).
			Run()
		if err != nil {
			return err
		}
		token = strings.TrimSpace(token)
	}

	if !noVerify {
		src, err := campus.FromConfig(*env.cfg, token, env.log)
		if err != nil {
			return err
		}
		if _, err := src.Fetch(cmd.Context()); err != nil {
			if source.IsAuthError(err) {
				return fmt.Errorf("the backend refused this token: %w", err)
			}
			return err
		}
	}

	vault, err := credential.Open()
	if err != nil {
		return err
	}
	if err := vault.SetToken(env.cfg.Backend.BaseURL, env.scope(), token); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", env.cfg.Backend.BaseURL, env.scope())
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.close()

	vault, err := credential.Open()
	if err != nil {
		return err
	}
	if err := vault.DeleteToken(env.cfg.Backend.BaseURL, env.scope()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}
