package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/campusbourses/internal/devserver"
	"github.com/nhle/campusbourses/internal/store"
)

var (
	serveFlags struct {
		addr        string
		db          string
		failureRate float64
		seed        bool
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the development backend",
		Long:  `Serve the notification endpoints for both scopes from a local SQLite database. Not meant for production.`,
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
)

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "Listen address (default from config)")
	f.StringVar(&serveFlags.db, "db", "", "SQLite database path (default from config)")
	f.Float64Var(&serveFlags.failureRate, "failure-rate", -1, "Share of mutations answered with 503, between 0 and 1")
	f.BoolVar(&serveFlags.seed, "seed", false, "Insert demo notifications into empty scopes")
}

func runServe(cmd *cobra.Command, _ []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.close()

	sc := env.cfg.Server
	if cmd.Flags().Changed("addr") {
		sc.Addr = serveFlags.addr
	}
	if cmd.Flags().Changed("db") {
		sc.DBPath = serveFlags.db
	}
	if cmd.Flags().Changed("failure-rate") {
		sc.FailureRate = serveFlags.failureRate
	}
	if sc.FailureRate < 0 || sc.FailureRate > 1 {
		return fmt.Errorf("failure rate %v is outside [0, 1]", sc.FailureRate)
	}
	if !env.cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := store.NewSQLiteStore(sc.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveFlags.seed || sc.Seed {
		n, err := devserver.Seed(ctx, st, time.Now())
		if err != nil {
			return err
		}
		env.log.Info("seeded demo notifications", zap.Int("inserted", n))
	}

	srv := devserver.New(st, devserver.Options{
		Addr:          sc.Addr,
		RatePerMinute: sc.RatePerMinute,
		FailureRate:   sc.FailureRate,
		Logger:        env.log.Named("devserver"),
	})
	env.log.Info("development backend listening",
		zap.String("addr", sc.Addr),
		zap.String("db", sc.DBPath),
		zap.Float64("failure_rate", sc.FailureRate),
	)
	return srv.Run(ctx)
}
