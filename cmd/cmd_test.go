package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/coursepilot/internal/browser/snapshot"
	"github.com/xkilldash9x/coursepilot/internal/config"
	"github.com/xkilldash9x/coursepilot/internal/humanoid"
	"github.com/xkilldash9x/coursepilot/internal/review"
	"github.com/xkilldash9x/coursepilot/internal/service"
)

const quizHTML = `<html><body>
<div data-testid="part-Submission_q1">
  <div id="prompt-autoGradableResponseId~q1"><div data-testid="cml-viewer"><p>Which planet is known as the red planet?</p></div></div>
  <div role="radiogroup" aria-labelledby="prompt-autoGradableResponseId~q1">
    <label><input type="radio" name="q1"><div data-testid="cml-viewer">Mars</div></label>
    <label><input type="radio" name="q1"><div data-testid="cml-viewer">Venus</div></label>
  </div>
</div>
</body></html>`

const outlineHTML = `<html><body>
<div data-e2e="courseNavigation">
  <a data-test="rc-WeekNavigationItem" href="https://course.test/learn/astro/home/module/1">Module 1</a>
  <a data-test="rc-WeekNavigationItem" href="https://course.test/learn/astro/home/module/2">Module 2</a>
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
	cfg.CourseCfg.URL = "https://course.test/learn/astro"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, factory service.ComponentFactory) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp(WithConfig(cfg), WithFactory(factory), WithOutput(&out), WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(func() { _ = app.Close() })
	return app, &out
}

func snapshotFactory(t *testing.T) service.ComponentFactory {
	t.Helper()
	b := snapshot.New(map[string]string{
		"https://course.test/quiz":                      quizHTML,
		"https://course.test/learn/astro/home/module/1": outlineHTML,
	}, zaptest.NewLogger(t))
	return service.NewComponentFactory(
		service.WithProvider(&snapshot.Provider{Browser: b}),
		service.WithPacer(humanoid.Instant()),
	)
}

type failingFactory struct{ panics bool }

func (f failingFactory) Create(context.Context, config.Interface, io.Writer, *zap.Logger) (*service.Components, error) {
	if f.panics {
		panic("allocator exploded")
	}
	return nil, errors.New("no browser in this test")
}

func TestShellSession(t *testing.T) {
	app, out := newTestApp(t, testConfig(t), snapshotFactory(t))
	in := strings.NewReader(strings.Join([]string{
		"open https://course.test/quiz",
		"questions",
		"",
		"process",
		"status",
		"bogus",
		"quit",
		"process",
	}, "\n"))

	require.NoError(t, RunShell(context.Background(), app, in))

	text := out.String()
	assert.Contains(t, text, "[ok] Opened https://course.test/quiz\n")
	assert.Contains(t, text, "1. [single_select, structured] Which planet is known as the red planet?\n   A. Mars\n   B. Venus\n")
	assert.Contains(t, text, "[ok] Question 1 answered: A\n")
	assert.Contains(t, text, "Session:    live (generation 1)\n")
	assert.Contains(t, text, "Location:   https://course.test/quiz\n")
	assert.Contains(t, text, "Questions:  1 found, 1 answered, 0 defaulted, 0 for review\n")
	assert.Contains(t, text, `Error: unknown command "bogus"`)
	assert.Equal(t, 1, strings.Count(text, "Assessment: 1 questions"), "nothing runs after quit")
}

func TestShellSurvivesPanickingCommand(t *testing.T) {
	app, out := newTestApp(t, testConfig(t), failingFactory{panics: true})

	require.NoError(t, RunShell(context.Background(), app, strings.NewReader("status\nversion\n")))

	assert.Contains(t, out.String(), "Error: command panicked: allocator exploded\n")
	assert.Contains(t, out.String(), "coursepilot "+Version+"\n")
}

func TestShellStopsOnCancel(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t), failingFactory{})
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunShell(ctx, app, r) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not stop after cancellation")
	}
}

func TestNavigateOutlineListsTargets(t *testing.T) {
	app, out := newTestApp(t, testConfig(t), snapshotFactory(t))

	require.NoError(t, Execute(context.Background(), app, []string{"navigate", "outline"}))

	assert.Contains(t, out.String(), "outline page: https://course.test/learn/astro/home/module/1\n")
	assert.Contains(t, out.String(), "  1. Module 1\n  2. Module 2\n")
}

func TestNavigateArguments(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t), failingFactory{})
	ctx := context.Background()

	assert.Error(t, Execute(ctx, app, []string{"navigate", "syllabus"}))
	assert.Error(t, Execute(ctx, app, []string{"navigate"}))

	err := Execute(ctx, app, []string{"navigate", "grades", "--visit", "2", "--all"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestQuestionsFromFile(t *testing.T) {
	app, out := newTestApp(t, testConfig(t), failingFactory{})
	path := filepath.Join(t.TempDir(), "quiz.html")
	require.NoError(t, os.WriteFile(path, []byte(quizHTML), 0o644))

	require.NoError(t, Execute(context.Background(), app, []string{"questions", "--file", path}))

	assert.Contains(t, out.String(), "Page type: assessment\n")
	assert.Contains(t, out.String(), "   B. Venus\n")

	err := Execute(context.Background(), app, []string{"questions", "--file", filepath.Join(t.TempDir(), "missing.html")})
	assert.Error(t, err)
}

func TestReviewCommand(t *testing.T) {
	cfg := testConfig(t)
	app, out := newTestApp(t, cfg, failingFactory{})
	ctx := context.Background()

	require.NoError(t, Execute(ctx, app, []string{"review"}))
	assert.Contains(t, out.String(), "Nothing to review.\n")

	sink, err := review.NewFileSink(cfg.Review(), nil)
	require.NoError(t, err)
	require.NoError(t, sink.Record(ctx, review.Entry{
		URL:       "https://course.test/quiz",
		Ordinal:   2,
		Prompt:    "Which planet is known as the red planet?",
		Options:   []string{"A. Mars", "B. Venus"},
		Attempted: "A",
		Reason:    review.ReasonInteractionFailed,
	}))
	require.NoError(t, sink.Close())

	out.Reset()
	require.NoError(t, Execute(ctx, app, []string{"review"}))
	assert.Contains(t, out.String(), "https://course.test/quiz  question 2 (interaction_failed)\n")
	assert.Contains(t, out.String(), "    B. Venus\n")
	assert.Contains(t, out.String(), "  attempted: A\n")
}

func TestConfigCommand(t *testing.T) {
	cfg := testConfig(t)
	cfg.OracleCfg.APIKey = "secret-key"
	app, out := newTestApp(t, cfg, failingFactory{})

	require.NoError(t, Execute(context.Background(), app, []string{"config"}))

	assert.Contains(t, out.String(), "review:\n")
	assert.Contains(t, out.String(), "path: "+cfg.ReviewCfg.Path)
	assert.NotContains(t, out.String(), "secret-key")
}

func TestVersionNeedsNoConfig(t *testing.T) {
	var out bytes.Buffer
	app := NewApp(WithOutput(&out), WithFactory(failingFactory{}))

	require.NoError(t, Execute(context.Background(), app, []string{"version"}))
	assert.Equal(t, "coursepilot "+Version+"\n", out.String())
	_, err := app.Config()
	assert.Error(t, err)
}

func TestComponentErrorsAreReported(t *testing.T) {
	app, out := newTestApp(t, testConfig(t), failingFactory{})

	err := Execute(context.Background(), app, []string{"process"})
	require.Error(t, err)
	assert.Contains(t, out.String(), "Error: no browser in this test\n")
}
