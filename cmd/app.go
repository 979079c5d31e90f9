// File: cmd/app.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/internal/config"
	"github.com/xkilldash9x/coursepilot/internal/service"
)

// App is the state shared by every command of one process. In the shell the
// browser session survives from one command to the next.
type App struct {
	factory service.ComponentFactory
	out     io.Writer
	cfgFile string

	mu     sync.Mutex
	cfg    *config.Config
	logger *zap.Logger
	comps  *service.Components
}

// AppOption configures an App.
type AppOption func(*App)

// WithConfig skips config loading and uses cfg.
func WithConfig(cfg *config.Config) AppOption {
	return func(a *App) { a.cfg = cfg }
}

// WithFactory replaces the production component factory.
func WithFactory(f service.ComponentFactory) AppOption {
	return func(a *App) { a.factory = f }
}

// WithOutput redirects operator output.
func WithOutput(w io.Writer) AppOption {
	return func(a *App) { a.out = w }
}

// WithLogger uses logger instead of the global one.
func WithLogger(logger *zap.Logger) AppOption {
	return func(a *App) { a.logger = logger }
}

// NewApp creates an App. Nothing is loaded until the first command runs.
func NewApp(opts ...AppOption) *App {
	a := &App{out: os.Stdout}
	for _, opt := range opts {
		opt(a)
	}
	if a.factory == nil {
		a.factory = service.NewComponentFactory()
	}
	return a
}

// Config returns the loaded configuration.
func (a *App) Config() (*config.Config, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	return a.cfg, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

// Components builds the components on first use.
func (a *App) Components(ctx context.Context) (*service.Components, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.comps != nil {
		return a.comps, nil
	}
	if a.cfg == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	comps, err := a.factory.Create(ctx, a.cfg, a.out, a.logger)
	if err != nil {
		return nil, err
	}
	a.comps = comps
	return comps, nil
}

// Close shuts the components down. It is safe to call more than once.
func (a *App) Close() error {
	a.mu.Lock()
	comps := a.comps
	a.comps = nil
	a.mu.Unlock()
	if comps == nil {
		return nil
	}
	return comps.Shutdown()
}
