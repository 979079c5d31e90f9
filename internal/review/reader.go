// internal/review/reader.go
package review

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"
)

const maxLineSize = 1 << 20

// Read decodes every entry in r. Blank lines are skipped; a malformed line
// fails with its line number.
func Read(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var entries []Entry
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return entries, fmt.Errorf("review log line %d: %w", n, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("failed to read review log: %w", err)
	}
	return entries, nil
}

// ReadFile reads the review log at path. A missing file holds no entries.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open review log: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Follow calls handle for every entry in the log, from the beginning, and
// keeps waiting for new ones until ctx is done. The file may not exist yet.
func Follow(ctx context.Context, path string, logger *zap.Logger, handle func(Entry)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("review-follow")

	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow review log: %w", err)
	}
	defer func() {
		t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				logger.Warn("Error reading review log.", zap.Error(line.Err))
				continue
			}
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}
			var e Entry
			if err := json.Unmarshal([]byte(text), &e); err != nil {
				logger.Warn("Skipping malformed review entry.", zap.Error(err))
				continue
			}
			handle(e)
		}
	}
}
