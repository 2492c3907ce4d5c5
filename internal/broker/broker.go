package broker

import (
	"context"
	"time"

	"github.com/vyrodovalexey/avdataccess/internal/routing"
)

// Scope names for minted storage credentials. The scope is selected by
// which broker method is called, never from caller input, so a tampered
// request cannot escalate a read grant into a write grant.
const (
	scopeRead  = "storage.read_only"
	scopeWrite = "storage.read_write"
)

// DefaultTokenLifetime is used when no custom lifetime is configured.
const DefaultTokenLifetime = time.Hour

// AccessToken is a short-lived, scope-limited storage credential. Tokens
// are never cached or reused; every issuance is a fresh broker call.
type AccessToken struct {
	// Token is the opaque credential string.
	Token string

	// ExpiresAtMillis is the credential expiry as epoch milliseconds.
	ExpiresAtMillis int64

	// ParentURI is the resolved storage location the token is scoped to.
	ParentURI string
}

// Broker mints scoped storage credentials.
type Broker interface {
	// IssueReadToken mints a read-only credential for the storage location
	// identified by parentURI.
	IssueReadToken(ctx context.Context, userID, parentURI string) (*AccessToken, error)

	// IssueWriteToken mints a read-write credential for the target of the
	// resolved route.
	IssueWriteToken(ctx context.Context, userID string, route *routing.RouteRule) (*AccessToken, error)
}

// Provider selects a broker implementation.
type Provider string

// Broker providers.
const (
	// ProviderVault mints credentials from a HashiCorp Vault server.
	ProviderVault Provider = "vault"

	// ProviderLocal returns deterministic stub tokens for non-cloud
	// deployments.
	ProviderLocal Provider = "local"
)

// Config holds credential broker configuration.
type Config struct {
	// Provider selects the broker implementation.
	Provider Provider `yaml:"provider" json:"provider"`

	// TokenLifetime is the requested credential lifetime. Zero selects
	// DefaultTokenLifetime.
	TokenLifetime time.Duration `yaml:"tokenLifetime,omitempty" json:"tokenLifetime,omitempty"`

	// Vault configures the Vault-backed broker.
	Vault VaultConfig `yaml:"vault,omitempty" json:"vault,omitempty"`
}

// VaultConfig holds connection settings for the Vault-backed broker.
type VaultConfig struct {
	// Address is the Vault server address.
	Address string `yaml:"address" json:"address"`

	// Namespace is the Vault namespace (Enterprise only).
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`

	// Token authenticates this service to Vault.
	Token string `yaml:"token,omitempty" json:"token,omitempty"`
}
