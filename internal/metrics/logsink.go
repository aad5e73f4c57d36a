package metrics

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// EventWriter appends analytics events to durable storage.
type EventWriter interface {
	InsertMetricEvent(ctx context.Context, e Event) error
}

// LogSink persists events through an EventWriter. Write failures are logged and swallowed.
type LogSink struct {
	w       EventWriter
	timeout time.Duration
	logger  *slog.Logger
}

func NewLogSink(w EventWriter, logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LogSink{w: w, timeout: 5 * time.Second, logger: logger}
}

func (s *LogSink) Log(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.w.InsertMetricEvent(ctx, e); err != nil {
		s.logger.Warn("failed to record analytics event", "kind", e.Kind, "error", err)
	}
}
