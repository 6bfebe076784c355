package logging

import (
	"log/slog"
	"sort"

	"escrowchain/core/events"
)

// EventSink writes committed events to a logger. Attributes outside the
// redaction allowlist, amounts and commitments among them, are masked.
type EventSink struct {
	logger *slog.Logger
}

// NewEventSink returns a sink logging through logger, or the default logger
// when nil.
func NewEventSink(logger *slog.Logger) *EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventSink{logger: logger}
}

// Emit implements events.Emitter.
func (s *EventSink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	args := []any{slog.String("event", evt.EventType())}
	if payload := events.Payload(evt); payload != nil {
		keys := make([]string, 0, len(payload.Attributes))
		for key := range payload.Attributes {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			args = append(args, MaskField(key, payload.Attributes[key]))
		}
	}
	s.logger.Info("escrow event", args...)
}
