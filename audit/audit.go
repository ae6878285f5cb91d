package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Sink receives escalation records for storage or export.
type Sink interface {
	Publish(ctx context.Context, rec Record) error
}

// Logger writes escalation records as JSON lines.
type Logger struct {
	mu     sync.Mutex
	writer io.Writer
	slog   *slog.Logger
}

// NewLogger creates a Logger that writes JSON records to the given writer.
// If w is nil, it defaults to os.Stdout.
func NewLogger(w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{
		writer: w,
		slog:   slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
}

// Publish writes one record. It is safe for concurrent use.
func (l *Logger) Publish(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		l.slog.Error("failed to marshal audit record", "error", err)
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.writer.Write(data); err != nil {
		l.slog.Error("failed to write audit record", "error", err)
		return err
	}
	return nil
}

// Fanout publishes every record to each sink in order. All sinks are tried;
// the joined error is returned.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
