// internal/llmclient/limiter.go
package llmclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/coursepilot/api/schemas"
)

// RateLimited spaces requests to the wrapped oracle.
type RateLimited struct {
	next    schemas.Oracle
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ schemas.Oracle = (*RateLimited)(nil)

// NewRateLimited allows perMinute requests per minute with no burst.
// A non-positive perMinute disables limiting.
func NewRateLimited(next schemas.Oracle, perMinute float64, logger *zap.Logger) *RateLimited {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Duration(float64(time.Minute) / perMinute))
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("llm_limiter"),
	}
}

// Complete waits for a token, then forwards the request. Waiting past the
// context deadline counts as the oracle being unavailable.
func (r *RateLimited) Complete(ctx context.Context, req schemas.OracleRequest) (string, error) {
	start := time.Now()
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: waiting for rate limit: %v", schemas.ErrOracleUnavailable, err)
	}
	if waited := time.Since(start); waited > time.Second {
		r.logger.Debug("Oracle request delayed by rate limit.", zap.Duration("waited", waited))
	}
	return r.next.Complete(ctx, req)
}
