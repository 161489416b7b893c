package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/agenda/internal/checksum"
	"github.com/starford/agenda/internal/source"
)

// Change kinds reported to an EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// EventCallback is called after each cache mutation made by Sync.
type EventCallback func(kind, id string)

// Stats summarises one Sync pass.
type Stats struct {
	Fetched   int `json:"fetched"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// Changed reports whether the pass touched the cache.
func (s Stats) Changed() bool {
	return s.Created+s.Updated+s.Deleted > 0
}

// Sync fetches a snapshot from src and brings the cache up to date:
//   - new/changed events (by checksum) are upserted
//   - events missing from the snapshot are deleted
//
// A failed fetch leaves the cache untouched.
func Sync(ctx context.Context, db EventIndex, src source.Source, logger *slog.Logger, cb EventCallback) (Stats, error) {
	events, err := src.Fetch(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("sync %s: %w", src.Name(), err)
	}

	checksums, err := db.AllChecksums(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Fetched: len(events)}
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if _, dup := seen[ev.ID]; dup {
			logger.Warn("sync: duplicate event id", slog.String("id", ev.ID))
			continue
		}
		seen[ev.ID] = struct{}{}

		sum := checksum.Event(ev)
		prev, known := checksums[ev.ID]
		if known && prev == sum {
			stats.Unchanged++
			continue
		}
		if err := db.UpsertEvent(ctx, ev, sum, src.Name()); err != nil {
			logger.Warn("sync: upsert failed", slog.String("id", ev.ID), slog.String("error", err.Error()))
			continue
		}
		kind := KindUpdated
		if known {
			stats.Updated++
		} else {
			kind = KindCreated
			stats.Created++
		}
		logger.Debug("sync: indexed", slog.String("id", ev.ID), slog.String("op", kind))
		if cb != nil {
			cb(kind, ev.ID)
		}
	}

	for id := range checksums {
		if _, ok := seen[id]; ok {
			continue
		}
		if err := db.DeleteEvent(ctx, id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		stats.Deleted++
		logger.Debug("sync: removed stale", slog.String("id", id))
		if cb != nil {
			cb(KindDeleted, id)
		}
	}

	logger.Info("sync: done",
		slog.String("source", src.Name()),
		slog.Int("fetched", stats.Fetched),
		slog.Int("created", stats.Created),
		slog.Int("updated", stats.Updated),
		slog.Int("deleted", stats.Deleted))
	return stats, nil
}
