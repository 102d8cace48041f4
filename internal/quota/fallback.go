package quota

import (
	"context"
	"log/slog"
	"time"
)

// FallbackStore wraps a durable store and degrades to an in-process store
// whenever the durable one errors. Degradation is logged once per failure,
// never surfaced to callers: the service stays available without its
// durable backend.
type FallbackStore struct {
	primary Store
	memory  *MemoryStore
	logger  *slog.Logger
}

// NewFallbackStore wires a durable store with its in-memory fallback.
// A nil primary means the backend was never configured; every admission
// goes straight to memory.
func NewFallbackStore(primary Store, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	if primary == nil {
		logger.Warn("quota: durable backend not configured, using in-memory counters")
	}
	return &FallbackStore{
		primary: primary,
		memory:  NewMemoryStore(),
		logger:  logger,
	}
}

// Admit tries the durable store first and falls back on any error.
func (f *FallbackStore) Admit(ctx context.Context, clientKey string, tierLimit int, window time.Duration) (*Admission, error) {
	if f.primary != nil {
		adm, err := f.primary.Admit(ctx, clientKey, tierLimit, window)
		if err == nil {
			return adm, nil
		}
		f.logger.Warn("quota: durable backend unavailable, degrading to in-memory counters", "error", err)
	}
	return f.memory.Admit(ctx, clientKey, tierLimit, window)
}

// Peek tries the durable store first and falls back on any error.
func (f *FallbackStore) Peek(ctx context.Context, clientKey string, tierLimit int, window time.Duration) (*Admission, error) {
	if f.primary != nil {
		adm, err := f.primary.Peek(ctx, clientKey, tierLimit, window)
		if err == nil {
			return adm, nil
		}
		f.logger.Warn("quota: durable backend unavailable, degrading to in-memory counters", "error", err)
	}
	return f.memory.Peek(ctx, clientKey, tierLimit, window)
}

// Close closes the durable store when one is configured.
func (f *FallbackStore) Close() error {
	if f.primary != nil {
		return f.primary.Close()
	}
	return nil
}
