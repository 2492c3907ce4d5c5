// Package catalog provides the client for the dataset catalog collaborator.
package catalog

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

// DefaultTimeout bounds every catalog call. A timeout is treated the same
// as any other downstream failure.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a catalog response is read.
const maxResponseBytes = 1 << 20

// DatasetRecord is the catalog's view of a dataset. An empty Path means the
// catalog has no record for the requested dataset.
type DatasetRecord struct {
	Path      string
	Version   int64
	Valuation string
	State     string
	ParentURI string
}

// Client looks up dataset records in the catalog service.
type Client interface {
	// Get fetches the dataset record for path at the given epoch-millisecond
	// version, zero meaning latest. The caller's bearer credential is
	// forwarded verbatim.
	Get(ctx context.Context, path string, version int64, bearer string) (*DatasetRecord, error)
}

// Config holds catalog client configuration.
type Config struct {
	// URL is the catalog service base URL.
	URL string `yaml:"url" json:"url"`

	// Timeout bounds each catalog call. Defaults to DefaultTimeout.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// BreakerEnabled wraps calls in a circuit breaker. The breaker fails
	// fast when the catalog is unhealthy; it never retries.
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

// Option is a functional option for the catalog client.
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

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(c *client) {
		c.metrics = metrics
	}
}

// NewClient creates a new catalog client.
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
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = getMetrics()
	}
	if cfg.BreakerEnabled {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "catalog",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}
	return c, nil
}

// getRequest is the wire form of a catalog lookup.
type getRequest struct {
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp,string,omitempty"`
}

// getResponse is the wire form of a catalog lookup response.
type getResponse struct {
	Dataset struct {
		ID struct {
			Path      string `json:"path"`
			Timestamp int64  `json:"timestamp,string,omitempty"`
		} `json:"id"`
		Valuation string `json:"valuation"`
		State     string `json:"state"`
		ParentURI string `json:"parentUri"`
	} `json:"dataset"`
}

// Get implements Client.
func (c *client) Get(ctx context.Context, path string, version int64, bearer string) (*DatasetRecord, error) {
	start := time.Now()

	record, err := c.execute(ctx, path, version, bearer)

	c.metrics.requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.requestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.requestsTotal.WithLabelValues("success").Inc()
	return record, nil
}

func (c *client) execute(ctx context.Context, path string, version int64, bearer string) (*DatasetRecord, error) {
	if c.breaker == nil {
		return c.doGet(ctx, path, version, bearer)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doGet(ctx, path, version, bearer)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	record, ok := result.(*DatasetRecord)
	if !ok {
		return nil, ErrUnavailable
	}
	return record, nil
}

func (c *client) doGet(ctx context.Context, path string, version int64, bearer string) (*DatasetRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(getRequest{Path: path, Timestamp: version})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	url := c.config.URL + "/rpc/CatalogService/get"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("catalog get failed",
			observability.String("path", path),
			observability.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed getResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &DatasetRecord{
		Path:      parsed.Dataset.ID.Path,
		Version:   parsed.Dataset.ID.Timestamp,
		Valuation: parsed.Dataset.Valuation,
		State:     parsed.Dataset.State,
		ParentURI: parsed.Dataset.ParentURI,
	}, nil
}
