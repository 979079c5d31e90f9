package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/snapshot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupHandle(t *testing.T) (*Handle, *snapshot.Provider) {
	t.Helper()
	b := snapshot.New(map[string]string{
		"https://course.test/home": `<html><body><h1>Home</h1></body></html>`,
	}, zaptest.NewLogger(t))
	b.Close()
	provider := &snapshot.Provider{Browser: b}
	return NewHandle(provider, time.Second, zaptest.NewLogger(t)), provider
}

func TestUninitializedHandle(t *testing.T) {
	ctx := context.Background()
	h, provider := setupHandle(t)

	assert.Equal(t, Uninitialized, h.State())
	assert.False(t, h.IsLive(ctx))
	assert.Equal(t, Uninitialized, h.State(), "probing does not change an uninitialized handle")

	_, err := h.Page()
	assert.ErrorIs(t, err, schemas.ErrSessionUnavailable)
	assert.Zero(t, provider.Acquired())
}

func TestEnsureLiveAcquiresOnFirstUse(t *testing.T) {
	ctx := context.Background()
	h, provider := setupHandle(t)

	require.True(t, h.EnsureLive(ctx))
	assert.Equal(t, Live, h.State())
	assert.Equal(t, uint64(1), h.Generation())
	assert.Equal(t, 1, provider.Acquired())
	assert.Zero(t, provider.Released(), "nothing to release on first acquire")

	// A healthy session is not re-initialized.
	require.True(t, h.EnsureLive(ctx))
	assert.Equal(t, 1, provider.Acquired())
}

func TestEnsureLiveRecoversClosedWindow(t *testing.T) {
	ctx := context.Background()
	h, provider := setupHandle(t)
	require.True(t, h.EnsureLive(ctx))

	page, err := h.Page()
	require.NoError(t, err)
	require.NoError(t, page.Navigate(ctx, "https://course.test/home"))
	nodes, err := page.QueryAll(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	provider.Browser.Close()
	assert.False(t, h.IsLive(ctx))
	assert.Equal(t, Stale, h.State())
	_, err = h.Page()
	assert.ErrorIs(t, err, schemas.ErrSessionUnavailable)

	require.True(t, h.EnsureLive(ctx))
	assert.Equal(t, Live, h.State())
	assert.Equal(t, uint64(2), h.Generation())
	assert.Equal(t, 2, provider.Acquired())
	assert.Equal(t, 1, provider.Released())

	_, err = nodes[0].Text(ctx)
	assert.ErrorIs(t, err, schemas.ErrStaleElement, "nodes from the previous session are never reused")
}

func TestEnsureLiveAcquireFailure(t *testing.T) {
	ctx := context.Background()
	h, provider := setupHandle(t)
	provider.FailAcquire = errors.New("chrome failed to start")

	assert.False(t, h.EnsureLive(ctx))
	assert.Equal(t, Uninitialized, h.State())

	_, err := Borrow(ctx, h)
	assert.ErrorIs(t, err, schemas.ErrSessionUnavailable)

	provider.FailAcquire = nil
	page, err := Borrow(ctx, h)
	require.NoError(t, err)
	assert.NotNil(t, page)
}

func TestConcurrentEnsureLiveAcquiresOnce(t *testing.T) {
	ctx := context.Background()
	h, provider := setupHandle(t)

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.EnsureLive(ctx)
		}(i)
	}
	wg.Wait()

	for _, ok := range results {
		assert.True(t, ok)
	}
	assert.Equal(t, 1, provider.Acquired())
}

func TestRestartAndClose(t *testing.T) {
	ctx := context.Background()
	h, provider := setupHandle(t)
	require.True(t, h.EnsureLive(ctx))

	require.NoError(t, h.Restart(ctx))
	assert.Equal(t, uint64(2), h.Generation())
	assert.Equal(t, 1, provider.Released())

	require.NoError(t, h.Close(ctx))
	require.NoError(t, h.Close(ctx))
	assert.Equal(t, Uninitialized, h.State())
	assert.Equal(t, 2, provider.Released(), "second close is a no-op")
}

func TestStaticSource(t *testing.T) {
	ctx := context.Background()

	_, err := Borrow(ctx, Static{})
	assert.ErrorIs(t, err, schemas.ErrSessionUnavailable)

	b, err := snapshot.FromHTML("https://course.test/saved", "<html><body></body></html>", nil)
	require.NoError(t, err)
	page, err := Borrow(ctx, Static{P: b})
	require.NoError(t, err)
	loc, err := page.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://course.test/saved", loc)
}
