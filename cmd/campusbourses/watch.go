package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/campusbourses/internal/metrics"
	campussync "github.com/nhle/campusbourses/internal/sync"
)

var (
	metricsAddr string

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Poll in the foreground and log new notifications",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
)

func init() {
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	sess, err := env.session(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cmd.OutOrStdout()
	for _, n := range sess.Store.Unread() {
		fmt.Fprintf(out, "%s  %s  %s\n", n.ID, n.Kind.Label(), n.Title)
	}

	g, ctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			env.log.Info("serving metrics", zap.String("addr", metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		sess.Start(env.cfg.PollInterval())
		events := sess.Scheduler.Events()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-events:
				res, ok := msg.(campussync.SyncResultMsg)
				if !ok {
					continue
				}
				switch {
				case res.AuthError != nil:
					env.log.Warn("backend refused the token", zap.String("reason", res.AuthError.Message))
				case res.Error != nil:
					env.log.Warn("fetch failed", zap.Error(res.Error))
				}
				for _, n := range res.New {
					fmt.Fprintf(out, "%s  %s  %s\n", n.ID, n.Kind.Label(), n.Title)
				}
			}
		}
	})

	return g.Wait()
}
