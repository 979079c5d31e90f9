package review

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/coursepilot/internal/config"
)

func newSink(t *testing.T, logger *zap.Logger) *FileSink {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "manual_review.jsonl")
	s, err := NewFileSink(config.ReviewConfig{Path: path, MaxSize: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRead(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)
	s := newSink(t, zap.New(core))
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	first := Entry{
		URL:       "https://course.test/quiz",
		Ordinal:   2,
		Prompt:    "Which planet is known as the red planet?",
		Options:   []string{"A. Venus", "B. Mars"},
		Attempted: "B",
		Reason:    ReasonInteractionFailed,
	}
	require.NoError(t, s.Record(ctx, first))
	require.NoError(t, s.Record(ctx, Entry{ID: "fixed-id", Ordinal: 3, Prompt: "Empty unit", Reason: ReasonNoDecision}))

	entries, err := ReadFile(s.Path())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.NotEmpty(t, entries[0].ID)
	first.ID = entries[0].ID
	first.Time = fixed
	if diff := cmp.Diff(first, entries[0]); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "fixed-id", entries[1].ID)
	assert.Equal(t, []string{}, entries[1].Options)

	assert.Equal(t, 2, logs.FilterMessage("Manual review entry recorded.").Len())
}

func TestRecordHonorsCancellation(t *testing.T) {
	s := newSink(t, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Record(ctx, Entry{Prompt: "x"}), context.Canceled)

	entries, err := ReadFile(s.Path())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewFileSinkRequiresPath(t *testing.T) {
	_, err := NewFileSink(config.ReviewConfig{}, nil)
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	in := `{"id":"1","ordinal":1,"prompt":"a","options":[],"reason":"no_decision"}

{"id":"2","ordinal":2,"prompt":"b","options":["A. x"],"reason":"interaction_failed"}
`
	entries, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2", entries[1].ID)

	entries, err = Read(strings.NewReader(in + "{not json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
	assert.Len(t, entries, 2, "entries before the bad line are returned")
}

func TestReadFileMissing(t *testing.T) {
	entries, err := ReadFile(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFollow(t *testing.T) {
	s := newSink(t, zaptest.NewLogger(t))
	require.NoError(t, s.Record(context.Background(), Entry{ID: "before", Reason: ReasonNoDecision}))

	// A malformed line in the middle is skipped.
	f, err := os.OpenFile(s.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("garbage\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var mu sync.Mutex
	var seen []string
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, s.Path(), zaptest.NewLogger(t), func(e Entry) {
			mu.Lock()
			seen = append(seen, e.ID)
			mu.Unlock()
		})
	}()

	ids := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), seen...)
	}
	require.Eventually(t, func() bool { return len(ids()) == 1 }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Record(context.Background(), Entry{ID: "after", Reason: ReasonInteractionFailed}))
	require.Eventually(t, func() bool { return len(ids()) == 2 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"before", "after"}, ids())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after cancellation")
	}
}
