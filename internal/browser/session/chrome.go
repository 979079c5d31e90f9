// internal/browser/session/chrome.go
package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/live"
	"github.com/xkilldash9x/coursepilot/internal/browser/stealth"
	"github.com/xkilldash9x/coursepilot/internal/config"
	"github.com/xkilldash9x/coursepilot/internal/humanoid"
)

// ChromeProvider launches Chrome with a persistent profile so the platform
// login survives restarts.
type ChromeProvider struct {
	root   context.Context
	cfg    config.BrowserConfig
	pacer  *humanoid.Pacer
	logger *zap.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc
}

var _ Provider = (*ChromeProvider)(nil)

// NewChromeProvider creates a provider. Browsers it launches live until
// Release or until root is canceled.
func NewChromeProvider(root context.Context, cfg config.BrowserConfig, pacer *humanoid.Pacer, logger *zap.Logger) *ChromeProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeProvider{
		root:   root,
		cfg:    cfg,
		pacer:  pacer,
		logger: logger.Named("chrome"),
	}
}

func (c *ChromeProvider) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.UserDataDir(c.cfg.ProfileDir),
		chromedp.WindowSize(c.cfg.WindowWidth, c.cfg.WindowHeight),
	)
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	return opts
}

// Acquire launches the browser, installs the persona and returns its tab.
func (c *ChromeProvider) Acquire(ctx context.Context) (schemas.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()

	if c.cfg.ProfileDir != "" {
		if err := os.MkdirAll(c.cfg.ProfileDir, 0o700); err != nil {
			return nil, fmt.Errorf("create profile directory: %w", err)
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(c.root, c.allocatorOptions()...)
	tab, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(c.logger.Sugar().Debugf),
	)

	// The first Run starts the browser and binds its lifetime to tab, so it
	// must not carry the caller's deadline.
	if err := chromedp.Run(tab); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	tasks, err := stealth.Apply(stealth.PersonaFromConfig(c.cfg.Persona), c.logger)
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, err
	}
	setupCtx, cancel := context.WithTimeout(tab, c.cfg.ActionTimeout)
	stop := context.AfterFunc(ctx, cancel)
	err = chromedp.Run(setupCtx, tasks)
	stop()
	cancel()
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("apply browser persona: %w", err)
	}

	c.allocCancel, c.tab, c.tabCancel = allocCancel, tab, tabCancel
	c.logger.Info("Chrome started.",
		zap.Bool("headless", c.cfg.Headless),
		zap.String("profile", c.cfg.ProfileDir),
	)
	return live.New(tab, c.cfg, c.pacer, c.logger), nil
}

// Release closes the browser gracefully, then tears down the allocator.
func (c *ChromeProvider) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *ChromeProvider) closeLocked() error {
	if c.tab == nil {
		return nil
	}
	var err error
	if c.tab.Err() == nil {
		err = chromedp.Cancel(c.tab)
	}
	c.tabCancel()
	c.allocCancel()
	c.tab, c.tabCancel, c.allocCancel = nil, nil, nil
	if err != nil {
		c.logger.Debug("Graceful browser close failed.", zap.Error(err))
	}
	return err
}
