package catalog

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/alaineid/robomarket-ae-sub000/internal/storage"
)

const MaxRecent = 10

// Recent is the most-recently-viewed list of one session.
type Recent struct {
	mu  sync.Mutex
	ids []int64
	kv  storage.Store
	log *logger.Logger
}

// OpenRecent restores the list from kv. Unreadable state starts empty.
func OpenRecent(ctx context.Context, kv storage.Store, log *logger.Logger) *Recent {
	r := &Recent{kv: kv, log: log}
	var ids []int64
	err := storage.GetJSON(ctx, kv, storage.KeyRecentlyViewed, &ids)
	switch {
	case err == nil:
		r.ids = trimRecent(ids)
	case !errors.Is(err, storage.ErrNotFound):
		log.Warn("restore recently viewed failed", "error", err)
	}
	return r
}

// Record moves id to the front, dropping any earlier occurrence.
func (r *Recent) Record(ctx context.Context, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.ids)+1)
	ids = append(ids, id)
	for _, existing := range r.ids {
		if existing != id {
			ids = append(ids, existing)
		}
	}
	r.ids = trimRecent(ids)

	if err := storage.SetJSON(ctx, r.kv, storage.KeyRecentlyViewed, r.ids); err != nil {
		r.log.Warn("persist recently viewed failed", "error", err)
	}
}

func (r *Recent) IDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.ids)
}

func trimRecent(ids []int64) []int64 {
	if len(ids) > MaxRecent {
		return ids[:MaxRecent]
	}
	return ids
}
