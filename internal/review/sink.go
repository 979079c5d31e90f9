// internal/review/sink.go

// Package review keeps the manual-review log: one JSON line per unit the
// agent could not answer on its own.
package review

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/coursepilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reasons an entry was written.
const (
	ReasonInteractionFailed = "interaction_failed"
	ReasonNoDecision        = "no_decision"
	ReasonTypingFailed      = "typing_failed"
)

// Entry is one unit left for the operator.
type Entry struct {
	ID    string    `json:"id"`
	Time  time.Time `json:"time"`
	RunID string    `json:"run_id,omitempty"`
	URL   string    `json:"url,omitempty"`

	Ordinal int      `json:"ordinal"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	// Attempted is the decision the agent tried to apply, e.g. "C" or "A,C".
	Attempted  string `json:"attempted,omitempty"`
	Reason     string `json:"reason"`
	Screenshot string `json:"screenshot,omitempty"`
}

// Sink receives manual-review entries.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// FileSink appends entries to a rotated JSON-lines file.
type FileSink struct {
	path   string
	logger *zap.Logger
	now    func() time.Time

	mu  sync.Mutex
	out *lumberjack.Logger
}

var _ Sink = (*FileSink)(nil)

// NewFileSink prepares the log directory. The file itself is created on the
// first entry.
func NewFileSink(cfg config.ReviewConfig, logger *zap.Logger) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("review log path is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create review log directory: %w", err)
	}
	return &FileSink{
		path:   cfg.Path,
		logger: logger.Named("review"),
		now:    time.Now,
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		},
	}, nil
}

// Path returns the file entries are written to.
func (s *FileSink) Path() string { return s.path }

// Record appends e as one line. A missing ID or time is filled in.
func (s *FileSink) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = s.now().UTC()
	}
	if e.Options == nil {
		e.Options = []string{}
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode review entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	_, err = s.out.Write(line)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write review entry: %w", err)
	}

	s.logger.Info("Manual review entry recorded.",
		zap.String("id", e.ID),
		zap.Int("unit", e.Ordinal),
		zap.String("reason", e.Reason),
		zap.String("attempted", e.Attempted),
	)
	return nil
}

// Close closes the current file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
