package observability

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Status writes short human-readable lines for the operator and mirrors each
// one as a structured log entry, so every containment point is visible in both
// places.
type Status struct {
	mu     *sync.Mutex
	out    io.Writer
	logger *zap.Logger
}

// NewStatus creates a status writer. A nil logger disables the mirrored entries.
func NewStatus(out io.Writer, logger *zap.Logger) *Status {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Status{mu: &sync.Mutex{}, out: out, logger: logger}
}

// NopStatus discards everything.
func NopStatus() *Status {
	return NewStatus(io.Discard, zap.NewNop())
}

// OK reports a step that completed.
func (s *Status) OK(msg string, fields ...zap.Field) {
	s.emit(zapcore.InfoLevel, "[ok]", msg, fields)
}

// Info reports progress.
func (s *Status) Info(msg string, fields ...zap.Field) {
	s.emit(zapcore.InfoLevel, "[..]", msg, fields)
}

// Warn reports a contained failure the run recovered from.
func (s *Status) Warn(msg string, fields ...zap.Field) {
	s.emit(zapcore.WarnLevel, "[warn]", msg, fields)
}

// Fail reports a failure that aborted the current operation.
func (s *Status) Fail(msg string, fields ...zap.Field) {
	s.emit(zapcore.ErrorLevel, "[fail]", msg, fields)
}

// Named returns a Status whose log entries go to a named child logger. The
// operator output is shared.
func (s *Status) Named(name string) *Status {
	return &Status{mu: s.mu, out: s.out, logger: s.logger.Named(name)}
}

func (s *Status) emit(level zapcore.Level, tag, msg string, fields []zap.Field) {
	s.mu.Lock()
	fmt.Fprintf(s.out, "%s %s\n", tag, msg)
	s.mu.Unlock()

	if ce := s.logger.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}
