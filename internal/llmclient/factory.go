// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/config"
)

// NewClient creates the oracle named by the configuration, behind the
// request rate limiter.
func NewClient(ctx context.Context, cfg config.OracleConfig, logger *zap.Logger) (schemas.Oracle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var client schemas.Oracle
	switch cfg.Provider {
	case config.ProviderGemini:
		gemini, err := NewGeminiClient(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		client = gemini
	case config.ProviderStatic:
		client = NewStaticClient(cfg.StaticReply)
	default:
		return nil, fmt.Errorf("unknown or unsupported oracle provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderStatic)
	}
	logger.Debug("Oracle client created.", zap.String("provider", string(cfg.Provider)), zap.String("model", cfg.Model))
	return NewRateLimited(client, cfg.RequestsPerMinute, logger), nil
}
