package broker

import (
	"context"
	"fmt"
	"net/url"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/avdataccess/internal/observability"
	"github.com/vyrodovalexey/avdataccess/internal/routing"
)

// vaultBroker mints short-lived storage credentials from a HashiCorp
// Vault server. Each route carries named token roles in its auth map;
// the broker creates a token against the role for the requested scope.
type vaultBroker struct {
	api      *vaultapi.Client
	table    *routing.Table
	lifetime time.Duration
	logger   observability.Logger
	now      func() time.Time
}

// VaultOption configures the Vault-backed broker.
type VaultOption func(*vaultBroker)

// WithVaultLogger sets the logger for the Vault-backed broker.
func WithVaultLogger(logger observability.Logger) VaultOption {
	return func(b *vaultBroker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithVaultClock overrides the broker clock. Used in tests.
func WithVaultClock(now func() time.Time) VaultOption {
	return func(b *vaultBroker) {
		if now != nil {
			b.now = now
		}
	}
}

// NewVaultBroker creates a Vault-backed credential broker.
func NewVaultBroker(cfg VaultConfig, table *routing.Table, lifetime time.Duration, opts ...VaultOption) (Broker, error) {
	apiConfig := vaultapi.DefaultConfig()
	if cfg.Address != "" {
		apiConfig.Address = cfg.Address
	}

	api, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if cfg.Namespace != "" {
		api.SetNamespace(cfg.Namespace)
	}
	if cfg.Token != "" {
		api.SetToken(cfg.Token)
	}

	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}

	b := &vaultBroker{
		api:      api,
		table:    table,
		lifetime: lifetime,
		logger:   observability.NewNopLogger(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// IssueReadToken implements the Broker interface.
func (b *vaultBroker) IssueReadToken(ctx context.Context, userID, parentURI string) (*AccessToken, error) {
	parsed, err := url.Parse(parentURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		getMetrics().mintFailuresTotal.WithLabelValues(string(ProviderVault), scopeRead).Inc()
		return nil, fmt.Errorf("%w: %q", ErrInvalidParentURI, parentURI)
	}

	route, err := b.table.ResolveTarget(parsed.Scheme, parsed.Host)
	if err != nil {
		getMetrics().mintFailuresTotal.WithLabelValues(string(ProviderVault), scopeRead).Inc()
		return nil, fmt.Errorf("%w: no route owns authority %q", ErrMissingAuthRef, parsed.Host)
	}

	token, err := b.mint(ctx, userID, parentURI, route, "read", scopeRead)
	if err != nil {
		return nil, err
	}

	return token, nil
}

// IssueWriteToken implements the Broker interface.
func (b *vaultBroker) IssueWriteToken(ctx context.Context, userID string, route *routing.RouteRule) (*AccessToken, error) {
	return b.mint(ctx, userID, route.Target.URI(), route, "write", scopeWrite)
}

// mint creates a Vault token against the role the route names for the
// requested operation.
func (b *vaultBroker) mint(ctx context.Context, userID, parentURI string, route *routing.RouteRule, op, scope string) (*AccessToken, error) {
	role, ok := route.Target.Auth[op]
	if !ok || role == "" {
		getMetrics().mintFailuresTotal.WithLabelValues(string(ProviderVault), scope).Inc()
		return nil, fmt.Errorf("%w: %s", ErrMissingAuthRef, op)
	}

	req := &vaultapi.TokenCreateRequest{
		TTL:         b.lifetime.String(),
		DisplayName: scope,
		Metadata: map[string]string{
			"user_id":    userID,
			"parent_uri": parentURI,
			"scope":      scope,
		},
	}

	secret, err := b.api.Auth().Token().CreateWithRoleWithContext(ctx, req, role)
	if err != nil {
		b.logger.Error("vault token creation failed",
			observability.String("role", role),
			observability.String("scope", scope),
			observability.Error(err))
		getMetrics().mintFailuresTotal.WithLabelValues(string(ProviderVault), scope).Inc()
		return nil, fmt.Errorf("%w: %v", ErrMintFailure, err)
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		getMetrics().mintFailuresTotal.WithLabelValues(string(ProviderVault), scope).Inc()
		return nil, fmt.Errorf("%w: empty auth in vault response", ErrMintFailure)
	}

	expiry := b.now().Add(b.lifetime)
	if secret.Auth.LeaseDuration > 0 {
		expiry = b.now().Add(time.Duration(secret.Auth.LeaseDuration) * time.Second)
	}

	b.logger.Debug("issued vault token",
		observability.String("user_id", userID),
		observability.String("role", role),
		observability.String("scope", scope))
	getMetrics().tokensIssuedTotal.WithLabelValues(string(ProviderVault), scope).Inc()

	return &AccessToken{
		Token:           secret.Auth.ClientToken,
		ExpiresAtMillis: expiry.UnixMilli(),
		ParentURI:       parentURI,
	}, nil
}
