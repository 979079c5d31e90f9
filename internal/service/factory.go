// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"
	"io"

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

// ComponentFactory builds the components of one session. The abstraction
// lets the command layer be tested without a browser.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, out io.Writer, logger *zap.Logger) (*Components, error)
}

// FactoryOption overrides one of the external dependencies.
type FactoryOption func(*concreteFactory)

// WithProvider replaces the Chrome session provider.
func WithProvider(p session.Provider) FactoryOption {
	return func(f *concreteFactory) { f.provider = p }
}

// WithOracle replaces the configured oracle client.
func WithOracle(o schemas.Oracle) FactoryOption {
	return func(f *concreteFactory) { f.oracle = o }
}

// WithPacer replaces the configured pacer.
func WithPacer(p *humanoid.Pacer) FactoryOption {
	return func(f *concreteFactory) { f.pacer = p }
}

type concreteFactory struct {
	provider session.Provider
	oracle   schemas.Oracle
	pacer    *humanoid.Pacer
}

// NewComponentFactory creates the production factory.
func NewComponentFactory(opts ...FactoryOption) ComponentFactory {
	f := &concreteFactory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create wires every component. Nothing is launched yet: the browser starts on
// first use of the session handle.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, out io.Writer, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Components{Config: cfg, Logger: logger}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			_ = c.Shutdown()
		}
	}()

	c.Status = observability.NewStatus(out, logger)
	c.Pacer = f.pacer
	if c.Pacer == nil {
		c.Pacer = humanoid.New(cfg.Pacing(), logger)
	}

	provider := f.provider
	if provider == nil {
		// The browser outlives any single command context.
		root, cancel := context.WithCancel(context.Background())
		c.cancelRoot = cancel
		provider = session.NewChromeProvider(root, cfg.Browser(), c.Pacer, logger)
	}
	c.Session = session.NewHandle(provider, cfg.Browser().LivenessTimeout, logger)
	c.Screenshots = session.NewScreenshots(cfg.Browser().ScreenshotDir, logger)

	oc, err := InitializeOracle(ctx, cfg.Oracle(), f.oracle, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	c.Oracle = oc

	sink, err := review.NewFileSink(cfg.Review(), logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to open review log: %w", err)
		return nil, initializationErr
	}
	c.Review = sink

	c.Classifier = classifier.New(c.Session, logger)
	c.Extractor = extractor.New(c.Session, cfg.Agent().PromptIDPrefixes, logger)
	c.Gateway = oracle.New(c.Oracle, cfg.Oracle().MaxTokens, logger)
	c.Executor = interaction.New(c.Pacer, cfg.Browser().ActionTimeout, logger)

	c.Navigator = navigation.New(c.Session, c.Executor, navigation.Options{
		WaitTimeout:  cfg.Browser().WaitTimeout,
		PollInterval: cfg.Browser().PollInterval,
		CourseURL:    cfg.Course().URL,
		Pacer:        c.Pacer,
		Status:       c.Status.Named("navigation"),
		Screenshots:  c.Screenshots,
	}, logger)

	c.Agent = agent.New(agent.Deps{
		Source:        c.Session,
		Classifier:    c.Classifier,
		Extractor:     c.Extractor,
		Gateway:       c.Gateway,
		Executor:      c.Executor,
		Review:        c.Review,
		Screenshots:   c.Screenshots,
		Pacer:         c.Pacer,
		Status:        c.Status.Named("agent"),
		OracleBackoff: cfg.Oracle().Backoff,
	}, cfg.Agent(), logger)

	logger.Debug("Components initialized.", zap.String("review_log", sink.Path()))
	return c, nil
}
