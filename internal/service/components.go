// File: internal/service/components.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/agent"
	"github.com/xkilldash9x/coursepilot/internal/browser/session"
	"github.com/xkilldash9x/coursepilot/internal/classifier"
	"github.com/xkilldash9x/coursepilot/internal/config"
	"github.com/xkilldash9x/coursepilot/internal/extractor"
	"github.com/xkilldash9x/coursepilot/internal/humanoid"
	"github.com/xkilldash9x/coursepilot/internal/interaction"
	"github.com/xkilldash9x/coursepilot/internal/navigation"
	"github.com/xkilldash9x/coursepilot/internal/observability"
	"github.com/xkilldash9x/coursepilot/internal/oracle"
	"github.com/xkilldash9x/coursepilot/internal/review"
)

// Components holds everything one interactive session needs, wired to a
// single browser session handle.
type Components struct {
	Config config.Interface
	Logger *zap.Logger
	Status *observability.Status

	Pacer       *humanoid.Pacer
	Session     *session.Handle
	Screenshots *session.Screenshots
	Oracle      schemas.Oracle

	Classifier *classifier.Classifier
	Extractor  *extractor.Extractor
	Gateway    *oracle.Gateway
	Executor   *interaction.Executor
	Review     *review.FileSink
	Navigator  *navigation.Controller
	Agent      *agent.Agent

	// cancelRoot stops the browser allocator.
	cancelRoot context.CancelFunc
}

// Shutdown releases the browser and closes the review log. It is safe to
// call on partially built components.
func (c *Components) Shutdown() error {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")

	var errs []error
	if c.Session != nil {
		// The caller's context may already be cancelled; the browser still has to go.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Session.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.cancelRoot != nil {
		c.cancelRoot()
	}
	if c.Review != nil {
		if err := c.Review.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close review log: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		logger.Warn("Shutdown finished with errors.", zap.Error(err))
		return err
	}
	logger.Info("All components shut down.")
	return nil
}
