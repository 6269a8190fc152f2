// Package skills keeps the in-memory skill registry and its append-only
// NDJSON history log.
package skills

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/clock"
)

// Logger appends skill history records to stdout and to the configured
// NDJSON file. The file sink is prepared lazily; preparation failure
// degrades to stdout-only logging with a warning.
type Logger struct {
	path string
	clk  clock.Clock

	mu       sync.Mutex
	out      io.Writer
	file     *os.File
	degraded bool
}

// NewLogger builds a Logger writing to path. An empty path disables the
// file sink.
func NewLogger(path string, clk clock.Clock) *Logger {
	return &Logger{path: path, clk: clk, out: os.Stdout}
}

// SetOutput redirects the stdout sink. Used by tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.out = w
	l.mu.Unlock()
}

// record is one NDJSON history line.
type record struct {
	Level     string         `json:"level"`
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Context   map[string]any `json:"context,omitempty"`
}

// Log emits one history record.
func (l *Logger) Log(level, event string, context map[string]any) {
	line, err := json.Marshal(record{
		Level:     level,
		Event:     event,
		Timestamp: l.clk.Now().UTC().Format(time.RFC3339Nano),
		Context:   context,
	})
	if err != nil {
		slog.Warn("Failed to marshal skill history record", "event", event, "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(line))

	if file := l.prepareLocked(); file != nil {
		if _, err := file.Write(append(line, '\n')); err != nil {
			slog.Warn("Failed to append skill history record", "path", l.path, "error", err)
		}
	}
}

// prepareLocked lazily opens the history file, creating parent directories
// on first use. A failure marks the sink degraded; logging continues on
// stdout only.
func (l *Logger) prepareLocked() *os.File {
	if l.file != nil {
		return l.file
	}
	if l.degraded || l.path == "" {
		return nil
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Warn("Failed to prepare skill history directory; keeping history in memory only",
				"path", l.path, "error", err)
			l.degraded = true
			return nil
		}
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("Failed to open skill history file; keeping history in memory only",
			"path", l.path, "error", err)
		l.degraded = true
		return nil
	}
	l.file = file
	return file
}

// Close releases the file sink.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}
