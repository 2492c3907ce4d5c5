// Package policy provides the client for the external access-check
// collaborator. The service consumes allow/deny decisions; it never
// implements policy logic itself.
package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/avdataccess/internal/observability"
)

// DefaultTimeout bounds every access-check call.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 1 << 20

// Privilege is the operation class an access check is performed for.
type Privilege string

// Privileges.
const (
	PrivilegeRead   Privilege = "READ"
	PrivilegeCreate Privilege = "CREATE"
	PrivilegeDelete Privilege = "DELETE"
)

// CheckRequest is one access-check question.
type CheckRequest struct {
	UserID    string    `json:"userId"`
	Privilege Privilege `json:"privilege"`
	Path      string    `json:"path"`
	Valuation string    `json:"valuation"`
	State     string    `json:"state"`
}

// Client asks the policy service for access decisions.
type Client interface {
	// HasAccess returns the allow/deny decision for the check request.
	// The caller's bearer credential is forwarded verbatim. A false return
	// with nil error is a normal deny decision, not a failure.
	HasAccess(ctx context.Context, check CheckRequest, bearer string) (bool, error)
}

// Config holds policy client configuration.
type Config struct {
	// URL is the policy service base URL.
	URL string `yaml:"url" json:"url"`

	// Timeout bounds each access-check call. Defaults to DefaultTimeout.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// BreakerEnabled wraps calls in a circuit breaker.
	BreakerEnabled bool `yaml:"breakerEnabled,omitempty" json:"breakerEnabled,omitempty"`
}

// client implements Client over HTTP.
type client struct {
	config     Config
	httpClient *http.Client
	logger     observability.Logger
	metrics    *Metrics
	breaker    *gobreaker.CircuitBreaker
}

// Option is a functional option for the policy client.
type Option func(*client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *client) {
		c.logger = logger
	}
}

// NewClient creates a new policy client.
func NewClient(cfg Config, opts ...Option) (Client, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     observability.NewNopLogger(),
		metrics:    getMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.BreakerEnabled {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "policy",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}
	return c, nil
}

// checkResponse is the wire form of an access-check decision.
type checkResponse struct {
	Allowed bool `json:"allowed"`
}

// HasAccess implements Client.
func (c *client) HasAccess(ctx context.Context, check CheckRequest, bearer string) (bool, error) {
	start := time.Now()

	allowed, err := c.execute(ctx, check, bearer)

	c.metrics.requestDuration.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		c.metrics.requestsTotal.WithLabelValues("error").Inc()
	case allowed:
		c.metrics.requestsTotal.WithLabelValues("allowed").Inc()
	default:
		c.metrics.requestsTotal.WithLabelValues("denied").Inc()
	}
	return allowed, err
}

func (c *client) execute(ctx context.Context, check CheckRequest, bearer string) (bool, error) {
	if c.breaker == nil {
		return c.doCheck(ctx, check, bearer)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		allowed, err := c.doCheck(ctx, check, bearer)
		return allowed, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return false, err
	}
	allowed, ok := result.(bool)
	if !ok {
		return false, ErrUnavailable
	}
	return allowed, nil
}

func (c *client) doCheck(ctx context.Context, check CheckRequest, bearer string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(check)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	url := c.config.URL + "/rpc/AuthService/hasAccess"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("access check failed",
			observability.String("path", check.Path),
			observability.String("privilege", string(check.Privilege)),
			observability.Int("status", resp.StatusCode),
		)
		return false, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed checkResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return parsed.Allowed, nil
}
