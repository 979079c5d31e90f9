// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/config"
	"github.com/xkilldash9x/coursepilot/internal/llmclient"
)

// InitializeOracle returns override when set, otherwise the client the
// configuration names.
func InitializeOracle(ctx context.Context, cfg config.OracleConfig, override schemas.Oracle, logger *zap.Logger) (schemas.Oracle, error) {
	if override != nil {
		return override, nil
	}
	client, err := llmclient.NewClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize oracle client.", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize oracle client: %w", err)
	}
	return client, nil
}
