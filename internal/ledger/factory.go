package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"thesiscert/internal/config"
)

// ErrSandboxNotAllowed is returned when the sandbox ledger is requested with
// chain credentials or a production environment configured.
var ErrSandboxNotAllowed = fmt.Errorf("sandbox ledger is not allowed with production settings")

// New builds the configured Client. With no explicit provider it uses the chain
// when credentials are set and the sandbox only when none are.
func New(ctx context.Context, cfg config.LedgerConfig, production bool, logger *zap.Logger) (Client, error) {
	hasChain := cfg.RPCURL != "" || cfg.PrivateKey != "" || cfg.ContractAddress != ""

	provider := cfg.Provider
	if provider == "" {
		provider = "sandbox"
		if hasChain {
			provider = "ethereum"
		}
	}

	switch provider {
	case "ethereum":
		return NewEthereum(ctx, cfg, logger)
	case "sandbox":
		if production || hasChain {
			return nil, ErrSandboxNotAllowed
		}
		logger.Warn("using sandbox ledger; anchors are simulated in memory",
			zap.Int64("chain_id", cfg.ChainID))
		return NewSandbox(cfg.ChainID, 1), nil
	}
	return nil, fmt.Errorf("unknown ledger provider %q", provider)
}
