package broker

import (
	"fmt"

	"github.com/vyrodovalexey/avdataccess/internal/observability"
	"github.com/vyrodovalexey/avdataccess/internal/routing"
)

// New creates a credential broker for the configured provider.
func New(cfg Config, table *routing.Table, logger observability.Logger) (Broker, error) {
	switch cfg.Provider {
	case ProviderVault:
		return NewVaultBroker(cfg.Vault, table, cfg.TokenLifetime, WithVaultLogger(logger))
	case ProviderLocal, "":
		return NewLocalBroker(table, cfg.TokenLifetime, WithLocalLogger(logger)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
