package indexer

import (
	"context"
	"log/slog"

	"satvault/core/types"
	"satvault/observability"
)

// Indexer copies committed ledger events into a Store.
type Indexer struct {
	store  *Store
	logger *slog.Logger
}

// New creates an indexer writing to store.
func New(store *Store, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, logger: logger}
}

// Run persists backlog and then every event received from updates until ctx
// is cancelled or updates is closed. A failed write is logged and skipped;
// the ledger remains the source of truth.
func (i *Indexer) Run(ctx context.Context, updates <-chan types.Event, backlog []types.Event) error {
	for _, evt := range backlog {
		i.index(ctx, evt)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			i.index(ctx, evt)
		}
	}
}

func (i *Indexer) index(ctx context.Context, evt types.Event) {
	metrics := observability.Events()
	if err := i.store.Save(ctx, evt); err != nil {
		metrics.RecordIndexed("error")
		i.logger.Error("index event",
			slog.String("type", evt.Type),
			slog.Uint64("sequence", evt.Sequence),
			slog.String("error", err.Error()))
		return
	}
	metrics.RecordIndexed("ok")
}
