package observability

import (
	"context"
	"errors"
)

// MultiObserver fans events out to several observers, for example a
// console slog observer alongside a rotated zap file.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver drops nil observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return &MultiObserver{observers: filtered}
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}

// Sync flushes every child that buffers output.
func (m *MultiObserver) Sync() error {
	var errs []error
	for _, obs := range m.observers {
		if s, ok := obs.(interface{ Sync() error }); ok {
			errs = append(errs, s.Sync())
		}
	}
	return errors.Join(errs...)
}
