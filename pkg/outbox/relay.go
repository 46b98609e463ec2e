package outbox

import (
	"context"
	"log/slog"
	"time"
)

// Store is the persistence side of the relay. LockBatch claims a batch of
// pending events under a lease so multiple relay instances never dispatch
// the same event concurrently.
type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  *Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string) *Relay {
	return &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     5 * time.Second,
	}
}

// Run polls for pending events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			r.drain(ctx)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		r.log.Error("outbox lock batch failed", "err", err)
		return
	}

	sent := make([]int64, 0, len(events))
	for _, e := range events {
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			_ = r.store.MarkFailed(ctx, e.ID, err.Error())
			continue
		}
		sent = append(sent, e.ID)
	}
	if len(sent) > 0 {
		if err := r.store.MarkSent(ctx, sent); err != nil {
			r.log.Error("outbox mark sent failed", "err", err)
		}
	}
}
