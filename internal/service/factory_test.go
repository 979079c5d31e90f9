package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/coursepilot/internal/agent"
	"github.com/xkilldash9x/coursepilot/internal/browser/session"
	"github.com/xkilldash9x/coursepilot/internal/browser/snapshot"
	"github.com/xkilldash9x/coursepilot/internal/config"
	"github.com/xkilldash9x/coursepilot/internal/humanoid"
	"github.com/xkilldash9x/coursepilot/internal/llmclient"
)

const quizURL = "https://course.test/learn/astro/quiz"

const quizHTML = `<html><body>
<div data-testid="part-Submission_q1">
  <div id="prompt-autoGradableResponseId~q1"><div data-testid="cml-viewer"><p>Which planet is known as the red planet?</p></div></div>
  <div role="radiogroup" aria-labelledby="prompt-autoGradableResponseId~q1">
    <label><input type="radio" name="q1" id="q1-a"><div data-testid="cml-viewer">Mars</div></label>
    <label><input type="radio" name="q1" id="q1-b"><div data-testid="cml-viewer">Venus</div></label>
  </div>
</div>
</body></html>`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.ReviewCfg.Path = filepath.Join(t.TempDir(), "manual_review.jsonl")
	cfg.BrowserCfg.ScreenshotDir = ""
	cfg.OracleCfg.Provider = config.ProviderStatic
	cfg.OracleCfg.StaticReply = "A"
	cfg.OracleCfg.Backoff = 0
	return cfg
}

func TestCreateWiresAPipeline(t *testing.T) {
	ctx := context.Background()
	b := snapshot.New(map[string]string{quizURL: quizHTML}, zaptest.NewLogger(t))
	provider := &snapshot.Provider{Browser: b}
	var out bytes.Buffer

	factory := NewComponentFactory(WithProvider(provider), WithPacer(humanoid.Instant()))
	c, err := factory.Create(ctx, testConfig(t), &out, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Zero(t, provider.Acquired(), "the browser starts on first use")

	page, err := session.Borrow(ctx, c.Session)
	require.NoError(t, err)
	require.NoError(t, page.Navigate(ctx, quizURL))

	r, err := c.Agent.ProcessPage(ctx, agent.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Answered)

	radios, err := b.QueryAll(ctx, "#q1-a")
	require.NoError(t, err)
	require.Len(t, radios, 1)
	on, err := radios[0].Checked(ctx)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Contains(t, out.String(), "[ok] Question 1 answered: A")

	require.NoError(t, c.Shutdown())
	assert.Equal(t, 1, provider.Released())
}

func TestCreateWithOracleOverride(t *testing.T) {
	oracle := llmclient.NewStaticClient("B")
	cfg := testConfig(t)
	cfg.OracleCfg.Provider = "carrier-pigeon"

	c, err := NewComponentFactory(WithOracle(oracle), WithProvider(&snapshot.Provider{})).Create(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Same(t, oracle, c.Oracle)
	require.NoError(t, c.Shutdown())
}

func TestCreateValidationErrors(t *testing.T) {
	factory := NewComponentFactory(WithProvider(&snapshot.Provider{}))
	ctx := context.Background()

	t.Run("UnknownOracle", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.OracleCfg.Provider = "carrier-pigeon"
		_, err := factory.Create(ctx, cfg, nil, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize oracle client")
	})

	t.Run("NoReviewLog", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.ReviewCfg.Path = ""
		_, err := factory.Create(ctx, cfg, nil, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open review log")
	})
}

func TestShutdownPartialComponents(t *testing.T) {
	assert.NoError(t, (&Components{}).Shutdown())
}
