// internal/browser/session/screenshot.go
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
)

var unsafeLabel = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Screenshots saves viewport captures for failures that need a human to look.
type Screenshots struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewScreenshots writes captures under dir. An empty dir disables capture.
func NewScreenshots(dir string, logger *zap.Logger) *Screenshots {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Screenshots{dir: dir, logger: logger.Named("screenshots"), now: time.Now}
}

// Capture stores a PNG of page and returns its path. Pages that cannot take
// screenshots yield an empty path and no error.
func (s *Screenshots) Capture(ctx context.Context, page schemas.Page, label string) (string, error) {
	if s == nil || s.dir == "" {
		return "", nil
	}
	shooter, ok := page.(schemas.Screenshotter)
	if !ok {
		return "", nil
	}
	data, err := shooter.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot directory: %w", err)
	}

	label = strings.Trim(unsafeLabel.ReplaceAllString(label, "-"), "-")
	if label == "" {
		label = "page"
	}
	name := fmt.Sprintf("%s-%s-%s.png", s.now().UTC().Format("20060102T150405"), label, uuid.NewString()[:8])
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	s.logger.Info("Saved diagnostic screenshot.", zap.String("path", path))
	return path, nil
}
