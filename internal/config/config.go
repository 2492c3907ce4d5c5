package config

import (
	"fmt"
	"time"

	"github.com/vyrodovalexey/avdataccess/internal/broker"
	"github.com/vyrodovalexey/avdataccess/internal/catalog"
	"github.com/vyrodovalexey/avdataccess/internal/observability"
	"github.com/vyrodovalexey/avdataccess/internal/policy"
)

// Defaults applied by Validate.
const (
	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 30 * time.Second
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Routing RoutingConfig `yaml:"routing"`
	Broker  broker.Config `yaml:"broker"`
	Signer  SignerConfig  `yaml:"signer"`

	Catalog catalog.Config `yaml:"catalog"`
	Policy  policy.Config  `yaml:"policy"`

	// DownstreamTimeout bounds each catalog, policy and broker call made
	// by the orchestrator.
	DownstreamTimeout time.Duration `yaml:"downstreamTimeout,omitempty"`

	Logging observability.LogConfig    `yaml:"logging"`
	Tracing observability.TracerConfig `yaml:"tracing"`
	Metrics MetricsConfig              `yaml:"metrics"`
}

// ServerConfig holds inbound HTTP server settings.
type ServerConfig struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string `yaml:"listenAddr"`

	ReadTimeout  time.Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout time.Duration `yaml:"writeTimeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`
}

// RoutingConfig locates the routing table document.
type RoutingConfig struct {
	// TablePath is the path to the YAML or JSON routing table. The table
	// is loaded once at startup; a missing or empty table is fatal.
	TablePath string `yaml:"tablePath"`
}

// SignerConfig locates the metadata signing key material.
type SignerConfig struct {
	// PrivateKeyPath is the PEM file holding the RSA signing key.
	PrivateKeyPath string `yaml:"privateKeyPath"`

	// PublicKeyPath optionally holds the verification key when it differs
	// from the signing key pair, for example during key rotation.
	PublicKeyPath string `yaml:"publicKeyPath,omitempty"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// Validate checks the configuration and applies defaults. Startup fails
// on the first violation.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Routing.TablePath == "" {
		return fmt.Errorf("routing.tablePath is required")
	}
	if c.Signer.PrivateKeyPath == "" {
		return fmt.Errorf("signer.privateKeyPath is required")
	}
	if c.Catalog.URL == "" {
		return fmt.Errorf("catalog.url is required")
	}
	if c.Policy.URL == "" {
		return fmt.Errorf("policy.url is required")
	}

	if c.Broker.Provider == broker.ProviderVault && c.Broker.Vault.Address == "" {
		return fmt.Errorf("broker.vault.address is required for the vault provider")
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Logging.Level == "" {
		c.Logging = observability.DefaultLogConfig()
	}

	return nil
}
