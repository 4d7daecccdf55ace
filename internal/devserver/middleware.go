package devserver

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nhle/campusbourses/internal/metrics"
	"github.com/nhle/campusbourses/internal/model"
)

const (
	limiterBurst    = 5
	visitorIdle     = 5 * time.Minute
	cleanupInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	log      *zap.Logger
}

func newIPRateLimiter(perMinute int, logger *zap.Logger) *ipRateLimiter {
	return &ipRateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(float64(perMinute) / 60.0),
		burst:    limiterBurst,
		log:      logger,
	}
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.visitors[ip]; ok {
		v.lastSeen = time.Now()
		return v.limiter
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.visitors[ip] = &visitor{limiter: lim, lastSeen: time.Now()}
	return lim
}

// cleanup forgets idle visitors until ctx is done.
func (l *ipRateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-visitorIdle)
			l.mu.Lock()
			for ip, v := range l.visitors {
				if v.lastSeen.Before(cutoff) {
					delete(l.visitors, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *ipRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.get(ip).Allow() {
			l.log.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			c.Header("Retry-After", "1")
			respondError(c, http.StatusTooManyRequests, "Trop de requêtes")
			return
		}
		c.Next()
	}
}

// observe records request metrics and a debug access log line.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// requireScope rejects unknown audiences and stores the parsed scope.
func requireScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := model.ParseScope(c.Param("scope"))
		if err != nil {
			respondError(c, http.StatusNotFound, err.Error())
			return
		}
		c.Set(scopeKey, scope)
		c.Next()
	}
}

// injectFaults fails a share of mutations with 503 before they reach the
// store.
func (s *Server) injectFaults() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.FailureRate > 0 && s.roll() < s.opts.FailureRate {
			s.log.Info("injecting failure",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
			)
			respondError(c, http.StatusServiceUnavailable, "Service temporairement indisponible")
			return
		}
		c.Next()
	}
}
