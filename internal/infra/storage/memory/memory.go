package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vietddude/feescan/internal/core/domain"
	"github.com/vietddude/feescan/internal/infra/storage"
)

// Storage is an in-memory implementation of the storage contracts,
// used for tests and DB-less runs.
type Storage struct {
	mu       sync.RWMutex
	progress map[string]*domain.ScanProgress
	events   map[string]*domain.FeeEvent // identity key -> event
}

// NewStorage creates empty in-memory storage.
func NewStorage() *Storage {
	return &Storage{
		progress: make(map[string]*domain.ScanProgress),
		events:   make(map[string]*domain.FeeEvent),
	}
}

func identityKey(e *domain.FeeEvent) string {
	return fmt.Sprintf("%s:%s:%d", e.SourceID, e.TxHash, e.LogIndex)
}

// ProgressRepo implements storage.ProgressRepository in memory.
type ProgressRepo struct {
	store *Storage
}

// NewProgressRepo creates an in-memory progress repository.
func NewProgressRepo(store *Storage) *ProgressRepo {
	return &ProgressRepo{store: store}
}

// Get retrieves the progress row for a source.
func (r *ProgressRepo) Get(ctx context.Context, sourceID string) (*domain.ScanProgress, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.progress[sourceID]
	if !ok {
		return nil, storage.ErrProgressNotFound
	}
	cp := *p
	return &cp, nil
}

// Save upserts the progress row.
func (r *ProgressRepo) Save(ctx context.Context, progress *domain.ScanProgress) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *progress
	r.store.progress[progress.SourceID] = &cp
	return nil
}

// EventRepo implements storage.FeeEventRepository in memory.
type EventRepo struct {
	store *Storage
}

// NewEventRepo creates an in-memory fee event repository.
func NewEventRepo(store *Storage) *EventRepo {
	return &EventRepo{store: store}
}

// InsertBatch inserts events absent by identity key, first-write-wins.
func (r *EventRepo) InsertBatch(ctx context.Context, events []*domain.FeeEvent) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	inserted := 0
	for _, e := range events {
		key := identityKey(e)
		if _, exists := r.store.events[key]; exists {
			continue
		}
		cp := *e
		r.store.events[key] = &cp
		inserted++
	}
	return inserted, nil
}

// GetByRange retrieves stored events for a source in [from, to].
func (r *EventRepo) GetByRange(ctx context.Context, sourceID string, from, to uint64) ([]*domain.FeeEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.FeeEvent
	for _, e := range r.store.events {
		if e.SourceID == sourceID && e.BlockHeight >= from && e.BlockHeight <= to {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Count returns the number of stored events for a source.
func (r *EventRepo) Count(ctx context.Context, sourceID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0
	for _, e := range r.store.events {
		if e.SourceID == sourceID {
			count++
		}
	}
	return count, nil
}
