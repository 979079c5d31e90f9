package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/snapshot"
)

type shootingPage struct {
	schemas.Page
	data []byte
	err  error
}

func (p shootingPage) Screenshot(context.Context) ([]byte, error) { return p.data, p.err }

func TestScreenshotsCapture(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "shots")
	s := NewScreenshots(dir, zaptest.NewLogger(t))
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	b := snapshot.New(nil, nil)
	path, err := s.Capture(ctx, shootingPage{Page: b, data: []byte("png")}, "select q3/option B")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "20260301T120000-select-q3-option-B-"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	_, err = s.Capture(ctx, shootingPage{Page: b, err: errors.New("target closed")}, "x")
	assert.Error(t, err)

	path, err = s.Capture(ctx, b, "snapshot pages cannot capture")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestScreenshotsDisabled(t *testing.T) {
	path, err := NewScreenshots("", nil).Capture(context.Background(), shootingPage{data: []byte("png")}, "x")
	require.NoError(t, err)
	assert.Empty(t, path)

	var s *Screenshots
	path, err = s.Capture(context.Background(), nil, "x")
	require.NoError(t, err)
	assert.Empty(t, path)
}
