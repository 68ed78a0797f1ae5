package process

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/newstide/store"
)

// Snapshot is an immutable view of all active topics for one processing
// cycle. It is replaced wholesale on refresh and never mutated in place, so
// every matching decision within a cycle sees the same topic set.
type Snapshot struct {
	Version   int64
	FetchedAt time.Time
	Topics    []*store.Topic
}

// SnapshotHolder owns the current snapshot and swaps it atomically.
type SnapshotHolder struct {
	store   *store.Store
	current atomic.Pointer[Snapshot]
	version atomic.Int64
}

// NewSnapshotHolder creates an empty holder. Call Refresh before matching.
func NewSnapshotHolder(store *store.Store) *SnapshotHolder {
	return &SnapshotHolder{store: store}
}

// Current returns the latest snapshot, or nil before the first successful
// refresh.
func (h *SnapshotHolder) Current() *Snapshot {
	return h.current.Load()
}

// Refresh fetches all active topics and swaps in a new snapshot. On fetch
// failure the previous snapshot stays in place so matching can continue with
// a stale, but consistent, topic set.
func (h *SnapshotHolder) Refresh(ctx context.Context) (*Snapshot, error) {
	active := true
	topics, err := h.store.ListTopics(ctx, &store.FindTopic{Active: &active})
	if err != nil {
		if prev := h.current.Load(); prev != nil {
			slog.Warn("topic refresh failed, keeping previous snapshot",
				slog.Int64("version", prev.Version),
				slog.String("error", err.Error()))
			return prev, nil
		}
		return nil, errors.Wrap(err, "failed to fetch topics for snapshot")
	}

	snapshot := &Snapshot{
		Version:   h.version.Add(1),
		FetchedAt: time.Now(),
		Topics:    topics,
	}
	h.current.Store(snapshot)

	slog.Debug("topic snapshot refreshed",
		slog.Int64("version", snapshot.Version),
		slog.Int("topics", len(topics)))

	return snapshot, nil
}
