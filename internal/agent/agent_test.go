package agent

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/session"
	"github.com/xkilldash9x/coursepilot/internal/browser/snapshot"
	"github.com/xkilldash9x/coursepilot/internal/classifier"
	"github.com/xkilldash9x/coursepilot/internal/config"
	"github.com/xkilldash9x/coursepilot/internal/extractor"
	"github.com/xkilldash9x/coursepilot/internal/humanoid"
	"github.com/xkilldash9x/coursepilot/internal/interaction"
	"github.com/xkilldash9x/coursepilot/internal/observability"
	"github.com/xkilldash9x/coursepilot/internal/oracle"
	"github.com/xkilldash9x/coursepilot/internal/review"
)

const quizURL = "https://course.test/learn/astro/assignment-submission/q/attempt"

const planetQuestion = `
<div data-testid="part-Submission_q1">
  <div id="prompt-autoGradableResponseId~q1"><div data-testid="cml-viewer"><p>Which planet is known as the red planet?</p></div></div>
  <div role="radiogroup" aria-labelledby="prompt-autoGradableResponseId~q1">
    <label><input type="radio" name="q1" id="q1-a"><div data-testid="cml-viewer">Venus</div></label>
    <label><input type="radio" name="q1" id="q1-b"><div data-testid="cml-viewer">Mars</div></label>
    <label><input type="radio" name="q1" id="q1-c"><div data-testid="cml-viewer">Jupiter</div></label>
  </div>
</div>`

const fullQuiz = `<html><body><div class="rc-QuestionView">` + planetQuestion + `
<div data-testid="part-Submission_q2">
  <div id="prompt-autoGradableResponseId~q2"><div data-testid="cml-viewer"><p>Which of these are gas giants of our solar system?</p></div></div>
  <div role="group" aria-labelledby="prompt-autoGradableResponseId~q2">
    <label><input type="checkbox" id="q2-a">Saturn</label>
    <label><input type="checkbox" id="q2-b">Earth</label>
    <label><input type="checkbox" id="q2-c">Neptune</label>
  </div>
</div>
<div data-testid="part-Submission_q3">
  <div data-testid="cml-viewer">Type the chemical symbol for gold.</div>
  <input type="text" id="q3-answer">
</div>
</div>
<div data-testid="agreement-checkbox"><label><input type="checkbox" id="agreement-checkbox-base">I understand the honor code</label></div>
<div data-testid="legal-name"><input type="text" id="legal"></div>
<button data-testid="submit-button" id="submit" data-href="https://course.test/learn/astro/submitted">Submit</button>
</body></html>`

const singleQuiz = `<html><body><div class="rc-QuestionView">` + planetQuestion + `</div></body></html>`

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Complete(ctx context.Context, req schemas.OracleRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func asking(fragment string) interface{} {
	return mock.MatchedBy(func(req schemas.OracleRequest) bool {
		return strings.Contains(req.Prompt, fragment)
	})
}

type memorySink struct {
	mu      sync.Mutex
	entries []review.Entry
}

func (s *memorySink) Record(_ context.Context, e review.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) Entries() []review.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]review.Entry(nil), s.entries...)
}

type fakeShots struct{ labels []string }

func (f *fakeShots) Capture(_ context.Context, _ schemas.Page, label string) (string, error) {
	f.labels = append(f.labels, label)
	return "shots/" + label + ".png", nil
}

// failingPage makes gestures on chosen nodes fail.
type failingPage struct {
	schemas.Page
	fail func(gesture string, n schemas.Node) bool
}

func (p failingPage) gesture(name string, n schemas.Node, real func() error) error {
	if p.fail(name, n) {
		return errors.New(name + " intercepted by overlay")
	}
	return real()
}

func (p failingPage) ScriptClick(ctx context.Context, n schemas.Node) error {
	return p.gesture("script", n, func() error { return p.Page.ScriptClick(ctx, n) })
}

func (p failingPage) NativeClick(ctx context.Context, n schemas.Node) error {
	return p.gesture("native", n, func() error { return p.Page.NativeClick(ctx, n) })
}

func (p failingPage) PointerClick(ctx context.Context, n schemas.Node) error {
	return p.gesture("pointer", n, func() error { return p.Page.PointerClick(ctx, n) })
}

func (p failingPage) ForceSelect(ctx context.Context, n schemas.Node) error {
	return p.gesture("force", n, func() error { return p.Page.ForceSelect(ctx, n) })
}

func inQuestion(id string) func(string, schemas.Node) bool {
	return func(_ string, n schemas.Node) bool {
		_, err := n.Closest(context.Background(), `[data-testid="part-Submission_`+id+`"]`)
		return err == nil
	}
}

type harness struct {
	browser *snapshot.Browser
	oracle  *mockOracle
	sink    *memorySink
	shots   *fakeShots
	status  *bytes.Buffer
	logs    *observer.ObservedLogs
	agent   *Agent
}

func newHarness(t *testing.T, html string, cfg config.AgentConfig, wrap func(schemas.Page) schemas.Page) *harness {
	t.Helper()
	b, err := snapshot.FromHTML(quizURL, html, zaptest.NewLogger(t))
	require.NoError(t, err)
	b.AddPage("https://course.test/learn/astro/submitted", `<html><body><h1>Submitted</h1></body></html>`)

	var page schemas.Page = b
	if wrap != nil {
		page = wrap(b)
	}
	src := session.Static{P: page}

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	h := &harness{
		browser: b,
		oracle:  &mockOracle{},
		sink:    &memorySink{},
		shots:   &fakeShots{},
		status:  &bytes.Buffer{},
		logs:    logs,
	}
	h.agent = New(Deps{
		Source:      src,
		Classifier:  classifier.New(src, logger),
		Extractor:   extractor.New(src, nil, logger),
		Gateway:     oracle.New(h.oracle, 0, logger),
		Executor:    interaction.New(humanoid.Instant(), 0, logger),
		Review:      h.sink,
		Screenshots: h.shots,
		Pacer:       humanoid.Instant(),
		Status:      observability.NewStatus(h.status, logger),
	}, cfg, logger)
	return h
}

func (h *harness) checked(t *testing.T, selector string) bool {
	t.Helper()
	nodes, err := h.browser.QueryAll(context.Background(), selector)
	require.NoError(t, err)
	require.Len(t, nodes, 1, selector)
	on, err := nodes[0].Checked(context.Background())
	require.NoError(t, err)
	return on
}

func (h *harness) value(t *testing.T, selector string) string {
	t.Helper()
	nodes, err := h.browser.QueryAll(context.Background(), selector)
	require.NoError(t, err)
	require.Len(t, nodes, 1, selector)
	v, _, err := nodes[0].Attribute(context.Background(), "value")
	require.NoError(t, err)
	return v
}

func TestProcessPageAnswersEveryUnit(t *testing.T) {
	h := newHarness(t, fullQuiz, config.AgentConfig{}, nil)
	h.oracle.On("Complete", mock.Anything, asking("red planet")).Return("B", nil).Once()
	h.oracle.On("Complete", mock.Anything, asking("gas giants")).Return("A, C", nil).Once()
	h.oracle.On("Complete", mock.Anything, asking("chemical symbol")).Return("Au", nil).Once()

	r, err := h.agent.ProcessPage(context.Background(), Options{})
	require.NoError(t, err)

	want := Report{URL: quizURL, Kind: schemas.ContentAssessment, Units: 3, Answered: 3}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, h.checked(t, "#q1-b"))
	assert.False(t, h.checked(t, "#q1-a"))
	assert.True(t, h.checked(t, "#q2-a"))
	assert.False(t, h.checked(t, "#q2-b"))
	assert.True(t, h.checked(t, "#q2-c"))
	assert.Equal(t, "Au", h.value(t, "#q3-answer"))
	assert.False(t, h.checked(t, "#agreement-checkbox-base"), "honor code is opt-in")
	assert.Empty(t, h.sink.Entries())
	h.oracle.AssertExpectations(t)

	stats := h.agent.Stats()
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 3, stats.Answered)
	assert.NotEmpty(t, stats.RunID)
	assert.Contains(t, h.status.String(), "[ok] Question 1 answered: B\n")
	assert.Contains(t, h.status.String(), "[ok] Question 2 answered: A,C\n")
}

func TestProcessPageRetriesOnceThenDefaults(t *testing.T) {
	h := newHarness(t, singleQuiz, config.AgentConfig{}, nil)
	h.oracle.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("503 model overloaded")).Twice()

	r, err := h.agent.ProcessPage(context.Background(), Options{})
	require.NoError(t, err)

	h.oracle.AssertNumberOfCalls(t, "Complete", 2)
	assert.Equal(t, 1, r.Answered)
	assert.Equal(t, 1, r.Defaulted)
	assert.True(t, h.checked(t, "#q1-a"), "falls back to the first option")
	assert.Empty(t, h.sink.Entries())
	assert.Equal(t, 1, h.logs.FilterMessage("Oracle unavailable; retrying.").Len())
	assert.Contains(t, h.status.String(), "[warn] Question 1: no usable answer, falling back to A\n")
}

func TestProcessPageDoesNotRetryInvalidReplies(t *testing.T) {
	h := newHarness(t, singleQuiz, config.AgentConfig{}, nil)
	h.oracle.On("Complete", mock.Anything, mock.Anything).Return("Mars", nil).Once()

	r, err := h.agent.ProcessPage(context.Background(), Options{})
	require.NoError(t, err)

	h.oracle.AssertNumberOfCalls(t, "Complete", 1)
	assert.Equal(t, 1, r.Defaulted)
	assert.True(t, h.checked(t, "#q1-a"))
	assert.Zero(t, h.logs.FilterMessage("Oracle unavailable; retrying.").Len())
}

func TestProcessPageFallsThroughToStateMutation(t *testing.T) {
	clicksFail := func(name string, _ schemas.Node) bool { return name != "force" }
	h := newHarness(t, singleQuiz, config.AgentConfig{}, func(p schemas.Page) schemas.Page {
		return failingPage{Page: p, fail: clicksFail}
	})
	h.oracle.On("Complete", mock.Anything, mock.Anything).Return("B", nil).Once()

	r, err := h.agent.ProcessPage(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, r.Answered)
	assert.Zero(t, r.Reviews)
	assert.True(t, h.checked(t, "#q1-b"))
	assert.Empty(t, h.sink.Entries(), "a recovered selection is not flagged")
}

func TestProcessPageFlagsExhaustedUnitOnceAndContinues(t *testing.T) {
	h := newHarness(t, fullQuiz, config.AgentConfig{ScreenshotOnFail: true}, func(p schemas.Page) schemas.Page {
		return failingPage{Page: p, fail: inQuestion("q1")}
	})
	h.oracle.On("Complete", mock.Anything, asking("red planet")).Return("C", nil).Once()
	h.oracle.On("Complete", mock.Anything, asking("gas giants")).Return("A", nil).Once()
	h.oracle.On("Complete", mock.Anything, asking("chemical symbol")).Return("Au", nil).Once()

	r, err := h.agent.ProcessPage(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, r.Units)
	assert.Equal(t, 2, r.Answered)
	assert.Equal(t, 1, r.Reviews)
	assert.False(t, h.checked(t, "#q1-c"))
	assert.True(t, h.checked(t, "#q2-a"), "later units are still answered")
	assert.Equal(t, "Au", h.value(t, "#q3-answer"))

	entries := h.sink.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, 1, e.Ordinal)
	assert.Equal(t, "Which planet is known as the red planet?", e.Prompt)
	assert.Equal(t, []string{"A. Venus", "B. Mars", "C. Jupiter"}, e.Options)
	assert.Equal(t, "C", e.Attempted)
	assert.Equal(t, review.ReasonInteractionFailed, e.Reason)
	assert.Equal(t, quizURL, e.URL)
	assert.Equal(t, h.agent.Stats().RunID, e.RunID)
	assert.Equal(t, "shots/unit-1.png", e.Screenshot)
	assert.Contains(t, h.status.String(), "[warn] Question 1 left for manual review (interaction_failed)\n")
}

func TestProcessPageFreeTextWithoutAnswer(t *testing.T) {
	h := newHarness(t, `<html><body>
<div data-testid="part-Submission_ft">
  <div data-testid="cml-viewer">Type the chemical symbol for gold.</div>
  <input type="text" id="ft">
</div></body></html>`, config.AgentConfig{}, nil)
	h.oracle.On("Complete", mock.Anything, mock.Anything).Return("   ", nil).Once()

	r, err := h.agent.ProcessPage(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, r.Reviews)
	entries := h.sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, review.ReasonNoDecision, entries[0].Reason)
	assert.Empty(t, entries[0].Options)
	assert.Empty(t, h.shots.labels, "screenshots are opt-in")
	assert.Equal(t, "", h.value(t, "#ft"))
}

func TestProcessPageSkipsUnitsWithoutOptions(t *testing.T) {
	h := newHarness(t, `<html><body>
<div id="prompt-autoGradableResponseId~q2">Explain your reasoning in one word, please.</div>
<div role="radiogroup" aria-labelledby="prompt-autoGradableResponseId~q2"></div>
</body></html>`, config.AgentConfig{}, nil)

	r, err := h.agent.ProcessPage(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, r.Units)
	assert.Equal(t, 1, r.Skipped)
	assert.Zero(t, r.Reviews)
	assert.Empty(t, h.sink.Entries())
	h.oracle.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestProcessPageHonorCodeAndSubmit(t *testing.T) {
	h := newHarness(t, fullQuiz, config.AgentConfig{AcceptHonorCode: true, LegalName: "Ada Lovelace"}, nil)
	h.oracle.On("Complete", mock.Anything, mock.Anything).Return("A", nil)

	r, err := h.agent.ProcessPage(context.Background(), Options{Submit: true})
	require.NoError(t, err)

	assert.True(t, r.HonorCode)
	assert.True(t, r.Submitted)
	visits := h.browser.Visits()
	assert.Equal(t, "https://course.test/learn/astro/submitted", visits[len(visits)-1])
	assert.Equal(t, 1, h.agent.Stats().Submitted)
	assert.Contains(t, h.status.String(), "[ok] Honor code accepted\n")
}

func TestProcessPageHonorCodeFillsName(t *testing.T) {
	h := newHarness(t, fullQuiz, config.AgentConfig{AcceptHonorCode: true, LegalName: "Ada Lovelace"}, nil)
	h.oracle.On("Complete", mock.Anything, mock.Anything).Return("A", nil)

	_, err := h.agent.ProcessPage(context.Background(), Options{})
	require.NoError(t, err)

	assert.True(t, h.checked(t, "#agreement-checkbox-base"))
	assert.Equal(t, "Ada Lovelace", h.value(t, "#legal"))
}

func TestProcessPageSubmitWithoutButton(t *testing.T) {
	h := newHarness(t, singleQuiz, config.AgentConfig{}, nil)
	h.oracle.On("Complete", mock.Anything, mock.Anything).Return("B", nil)

	r, err := h.agent.ProcessPage(context.Background(), Options{Submit: true})
	require.ErrorIs(t, err, schemas.ErrElementNotFound)
	assert.False(t, r.Submitted)
	assert.Equal(t, 1, r.Answered, "answers are kept when submission fails")
}

func TestProcessPageSummarizesReading(t *testing.T) {
	const page = `<html><body><div class="rc-ReadingItem"><h1>Photosynthesis</h1><p>Plants turn light into chemical energy.</p></div></body></html>`

	h := newHarness(t, page, config.AgentConfig{SummarizeReadings: true}, nil)
	h.oracle.On("Complete", mock.Anything, asking("Plants turn light")).Return("- light becomes sugar", nil).Once()

	r, err := h.agent.ProcessPage(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, schemas.ContentReading, r.Kind)
	assert.Equal(t, "- light becomes sugar", r.Summary)

	off := newHarness(t, page, config.AgentConfig{}, nil)
	r, err = off.agent.ProcessPage(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, r.Summary)
	off.oracle.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestProcessPageSummarizesVideoTranscript(t *testing.T) {
	const page = `<html><body>
<h1>Orbits and Ellipses</h1>
<div class="rc-VideoPlayer"><video src="lecture.mp4"></video></div>
<button id="transcript-tab">Transcript</button>
<div class="rc-Transcript"><p>Kepler found that planets move in ellipses.</p></div>
</body></html>`

	h := newHarness(t, page, config.AgentConfig{SummarizeVideos: true}, nil)
	h.oracle.On("Complete", mock.Anything, asking("Kepler found")).Return("- orbits are ellipses", nil).Once()

	r, err := h.agent.ProcessPage(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, schemas.ContentVideo, r.Kind)
	assert.Equal(t, "Orbits and Ellipses", r.Title)
	assert.Equal(t, "- orbits are ellipses", r.Summary)
	assert.Contains(t, h.status.String(), "[..] Video: Orbits and Ellipses\n")
	assert.Equal(t, 1, h.logs.FilterMessage("Clicked.").Len(), "the transcript tab is opened")
	h.oracle.AssertExpectations(t)

	bare := newHarness(t, `<html><body><h1>Intro</h1><video></video></body></html>`, config.AgentConfig{SummarizeVideos: true}, nil)
	r, err = bare.agent.ProcessPage(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, r.Summary)
	assert.Contains(t, bare.status.String(), "[warn] No transcript found for this video\n")
	bare.oracle.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestProcessPageVideoAndUnknown(t *testing.T) {
	for name, tc := range map[string]struct {
		html string
		kind schemas.ContentType
		line string
	}{
		"Video":   {`<html><body><video src="lecture.mp4"></video></body></html>`, schemas.ContentVideo, "[..] Video content; transcript summaries are disabled\n"},
		"Unknown": {`<html><body><p>Welcome back</p></body></html>`, schemas.ContentUnknown, "[warn] Could not tell what this page is; nothing done\n"},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, tc.html, config.AgentConfig{SummarizeReadings: true}, nil)
			r, err := h.agent.ProcessPage(context.Background(), Options{})
			require.NoError(t, err)
			assert.Equal(t, tc.kind, r.Kind)
			assert.Contains(t, h.status.String(), tc.line)
			h.oracle.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
		})
	}
}

func TestProcessPageWithoutSession(t *testing.T) {
	a := New(Deps{Source: session.Static{}}, config.AgentConfig{}, zaptest.NewLogger(t))
	_, err := a.ProcessPage(context.Background(), Options{})
	assert.ErrorIs(t, err, schemas.ErrSessionUnavailable)
	assert.Zero(t, a.Stats().Pages)
}

func TestProcessPageCancelled(t *testing.T) {
	h := newHarness(t, singleQuiz, config.AgentConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.agent.ProcessPage(ctx, Options{})
	assert.Error(t, err)
	assert.Empty(t, h.sink.Entries())
}

func TestLoggedIn(t *testing.T) {
	in := newHarness(t, `<html><body><button aria-label="Your profile menu">AL</button></body></html>`, config.AgentConfig{}, nil)
	ok, err := in.agent.LoggedIn(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	out := newHarness(t, `<html><body><a href="/signin">Log in</a></body></html>`, config.AgentConfig{}, nil)
	ok, err = out.agent.LoggedIn(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
