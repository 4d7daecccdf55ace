// Package devserver is a local stand-in for the CampusBourses backend. It
// serves the notification endpoints for both audiences from a SQLite store
// so the client can be exercised end to end.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/campusbourses/internal/metrics"
	"github.com/nhle/campusbourses/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Addr string

	// RatePerMinute limits requests per client IP. Zero disables limiting.
	RatePerMinute int

	// FailureRate is the probability, between 0 and 1, that a mutation is
	// answered with 503 instead of being applied.
	FailureRate float64

	Logger *zap.Logger
}

// Server is the development backend.
type Server struct {
	store   store.Store
	opts    Options
	log     *zap.Logger
	limiter *ipRateLimiter
	engine  *gin.Engine

	// roll returns a number in [0, 1) for fault injection.
	roll func() float64
}

// New builds a Server around st.
func New(st store.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	metrics.Init()

	s := &Server{
		store: st,
		opts:  opts,
		log:   opts.Logger,
		roll:  rand.Float64,
	}
	if opts.RatePerMinute > 0 {
		s.limiter = newIPRateLimiter(opts.RatePerMinute, s.log)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())
	if s.limiter != nil {
		r.Use(s.limiter.middleware())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	n := r.Group("/api/users/:scope/notifications", requireScope())
	n.GET("", s.listNotifications)
	n.POST("", s.createNotification)

	mutations := n.Group("", s.injectFaults())
	mutations.POST("/:id/read", s.markRead)
	mutations.POST("/read-all", s.markAllRead)
	mutations.DELETE("/:id", s.deleteNotification)
	mutations.POST("/delete-all", s.deleteAll)

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Route non trouvée")
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("development backend listening", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving %s: %w", s.opts.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	})
	if s.limiter != nil {
		g.Go(func() error {
			s.limiter.cleanup(ctx)
			return nil
		})
	}

	return g.Wait()
}
