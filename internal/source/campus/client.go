package campus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/source"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api.
	BaseURL string
	Scope   model.Scope

	// Token is sent as a Bearer token when non-empty.
	Token string

	Timeout            time.Duration
	RetryMaxElapsed    time.Duration
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration

	// HTTPClient overrides the default client. Tests use it.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a thin HTTP client for the CampusBourses notification API of
// one scope. GET requests are retried with exponential backoff on network
// errors, 429 and 5xx. Mutations are sent exactly once. Every request
// passes through a circuit breaker.
type Client struct {
	baseURL         string
	token           string
	httpClient      *http.Client
	breaker         *gobreaker.CircuitBreaker
	retryMaxElapsed time.Duration
	log             *zap.Logger
}

// NewClient creates a new CampusBourses HTTP client.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryMaxElapsed <= 0 {
		cfg.RetryMaxElapsed = 20 * time.Second
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	name := "campus-" + string(cfg.Scope)
	maxFailures := cfg.BreakerMaxFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// 4xx answers mean the backend is up.
			var rejErr *source.RejectedError
			if errors.As(err, &rejErr) {
				return !rejErr.Retryable()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/") + "/users/" + string(cfg.Scope),
		token:           cfg.Token,
		httpClient:      httpClient,
		breaker:         breaker,
		retryMaxElapsed: cfg.RetryMaxElapsed,
		log:             logger,
	}
}

// Get performs an HTTP GET request with retries and unmarshals the JSON
// response.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	b := &retryAfterBackOff{BackOff: newExponentialBackOff(c.retryMaxElapsed)}

	operation := func() error {
		retryAfter, err := c.do(ctx, http.MethodGet, path, nil, result)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		b.wait = retryAfter
		return err
	}

	notify := func(err error, next time.Duration) {
		c.log.Debug("retrying request",
			zap.String("path", path),
			zap.Duration("backoff", next),
			zap.Error(err))
	}

	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
}

// Post performs a single HTTP POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, result interface{}) error {
	_, err := c.do(ctx, http.MethodPost, path, body, result)
	return err
}

// Delete performs a single HTTP DELETE request.
func (c *Client) Delete(ctx context.Context, path string, result interface{}) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, result)
	return err
}

// do sends one request through the breaker. It returns the server's
// Retry-After hint alongside any error.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) (time.Duration, error) {
	op := method + " " + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var retryAfter time.Duration
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &source.NetworkError{Op: op, Err: err}
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, &source.NetworkError{Op: op, Err: fmt.Errorf("reading response body: %w", err)}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			return nil, rejected(op, resp.StatusCode, respBody)
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil, nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("unmarshaling response from %s: %w", op, err)
		}
		return nil, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, &source.NetworkError{Op: op, Err: err}
	}
	return retryAfter, err
}

func rejected(op string, status int, body []byte) error {
	var envelope ErrorResponse
	reason := ""
	if json.Unmarshal(body, &envelope) == nil {
		reason = envelope.Reason()
	}
	return &source.RejectedError{Op: op, StatusCode: status, Reason: reason}
}

// retryable reports whether a GET should be attempted again.
func retryable(err error) bool {
	var rejErr *source.RejectedError
	if errors.As(err, &rejErr) {
		return rejErr.Retryable()
	}
	var netErr *source.NetworkError
	if errors.As(err, &netErr) {
		// An open breaker will not close within one retry window.
		return !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests)
	}
	return false
}

func newExponentialBackOff(maxElapsed time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = maxElapsed
	return b
}

// retryAfterBackOff lets a server's Retry-After hint replace the next
// computed interval.
type retryAfterBackOff struct {
	backoff.BackOff
	wait time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.wait > 0 {
		next = b.wait
		b.wait = 0
	}
	return next
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
