package observability

import (
	"context"
	"log/slog"
	"slices"
)

// SessionKey is the Data key under which turn events carry the session id.
const SessionKey = "session"

// SlogObserver writes events to a slog.Logger. The event type is the log
// message; source and session lead, then the remaining Data keys in sorted
// order.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates a SlogObserver writing to logger.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	level := event.Level.SlogLevel()
	if !o.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(event.Data)+1)
	attrs = append(attrs, slog.String("source", event.Source))
	if id, ok := event.Data[SessionKey]; ok {
		attrs = append(attrs, slog.Any(SessionKey, id))
	}
	for _, k := range dataKeys(event.Data) {
		attrs = append(attrs, slog.Any(k, event.Data[k]))
	}

	o.logger.LogAttrs(ctx, level, string(event.Type), attrs...)
}

// dataKeys returns the keys of data other than SessionKey, sorted.
func dataKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		if k != SessionKey {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}
