package broker

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/vyrodovalexey/avdataccess/internal/observability"
	"github.com/vyrodovalexey/avdataccess/internal/routing"
)

// localBroker returns deterministic stub tokens derived from the storage
// authority. It is intended for local development and integration tests
// where no real credential provider is available.
type localBroker struct {
	table    *routing.Table
	lifetime time.Duration
	logger   observability.Logger
	now      func() time.Time
}

// LocalOption configures the local broker.
type LocalOption func(*localBroker)

// WithLocalLogger sets the logger for the local broker.
func WithLocalLogger(logger observability.Logger) LocalOption {
	return func(b *localBroker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithLocalClock overrides the broker clock. Used in tests.
func WithLocalClock(now func() time.Time) LocalOption {
	return func(b *localBroker) {
		if now != nil {
			b.now = now
		}
	}
}

// NewLocalBroker creates a stub credential broker. The routing table is
// used to recover the auth reference of the route that owns a storage
// authority when issuing read tokens.
func NewLocalBroker(table *routing.Table, lifetime time.Duration, opts ...LocalOption) Broker {
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}

	b := &localBroker{
		table:    table,
		lifetime: lifetime,
		logger:   observability.NewNopLogger(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// IssueReadToken implements the Broker interface.
func (b *localBroker) IssueReadToken(ctx context.Context, userID, parentURI string) (*AccessToken, error) {
	parsed, err := url.Parse(parentURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		getMetrics().mintFailuresTotal.WithLabelValues(string(ProviderLocal), scopeRead).Inc()
		return nil, fmt.Errorf("%w: %q", ErrInvalidParentURI, parentURI)
	}

	// Prefer the auth reference of the route that owns this authority so
	// that stub tokens line up with the configured routing table. Fall
	// back to the bare authority for locations no rule covers.
	ref := parsed.Host
	if route, err := b.table.ResolveTarget(parsed.Scheme, parsed.Host); err == nil {
		if r, ok := route.Target.Auth["read"]; ok && r != "" {
			ref = r
		}
	}

	token := &AccessToken{
		Token:           ref + "-read-token",
		ExpiresAtMillis: b.now().Add(b.lifetime).UnixMilli(),
		ParentURI:       parentURI,
	}

	b.logger.Debug("issued local read token",
		observability.String("user_id", userID),
		observability.String("parent_uri", parentURI))
	getMetrics().tokensIssuedTotal.WithLabelValues(string(ProviderLocal), scopeRead).Inc()

	return token, nil
}

// IssueWriteToken implements the Broker interface. Write tokens are
// always derived from the target authority, never from the route's auth
// reference.
func (b *localBroker) IssueWriteToken(ctx context.Context, userID string, route *routing.RouteRule) (*AccessToken, error) {
	token := &AccessToken{
		Token:           route.Target.Host + "-write-token",
		ExpiresAtMillis: b.now().Add(b.lifetime).UnixMilli(),
		ParentURI:       route.Target.URI(),
	}

	b.logger.Debug("issued local write token",
		observability.String("user_id", userID),
		observability.String("parent_uri", token.ParentURI))
	getMetrics().tokensIssuedTotal.WithLabelValues(string(ProviderLocal), scopeWrite).Inc()

	return token, nil
}
