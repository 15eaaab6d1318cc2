package observability

import "context"

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}

// LevelFilter forwards events at or above Min to Next.
type LevelFilter struct {
	Next Observer
	Min  Level
}

// NewLevelFilter wraps next so that only events at minLevel or above pass.
func NewLevelFilter(next Observer, minLevel Level) *LevelFilter {
	return &LevelFilter{Next: next, Min: minLevel}
}

func (f *LevelFilter) OnEvent(ctx context.Context, event Event) {
	if event.Level >= f.Min {
		f.Next.OnEvent(ctx, event)
	}
}

// Sync flushes Next when it buffers output.
func (f *LevelFilter) Sync() error {
	if s, ok := f.Next.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}
