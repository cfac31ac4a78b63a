package storage

import (
	"fmt"

	"go.uber.org/zap"

	"thesiscert/internal/config"
)

// ErrSandboxNotAllowed is returned when the sandbox store is requested while
// production credentials or a production environment are configured.
var ErrSandboxNotAllowed = fmt.Errorf("sandbox store is not allowed with production settings")

// New builds the configured ContentStore. With no explicit provider it picks the
// provider whose credentials are set, and the sandbox only when none are.
func New(cfg config.StoreConfig, production bool, logger *zap.Logger) (ContentStore, error) {
	hasPinata := cfg.Pinata.JWT != ""
	hasS3 := cfg.MinIO.AccessKey != "" && cfg.MinIO.SecretKey != ""

	provider := cfg.Provider
	if provider == "" {
		switch {
		case hasPinata:
			provider = "pinata"
		case hasS3:
			provider = "s3"
		default:
			provider = "sandbox"
		}
	}

	switch provider {
	case "pinata":
		return NewPinata(cfg.Pinata, cfg.GatewayURL, logger)
	case "s3":
		return NewS3(cfg.MinIO, cfg.GatewayURL, logger)
	case "sandbox":
		if production || hasPinata || hasS3 {
			return nil, ErrSandboxNotAllowed
		}
		logger.Warn("using sandbox content store; content ids are synthesized and nothing is pinned")
		return NewSandbox(cfg.GatewayURL), nil
	}
	return nil, fmt.Errorf("unknown store provider %q", provider)
}
