package memory

import (
	"context"
	"time"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// Create stages an event.
func (r *OutboxRepository) Create(_ context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	cp := *event
	mt.outbox = append(mt.outbox, &cp)

	return nil
}

// GetUnpublished returns up to limit events not yet published, oldest first.
func (r *OutboxRepository) GetUnpublished(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.OutboxEvent
	for _, ev := range r.store.outbox {
		if ev.Published {
			continue
		}
		cp := *ev
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, ev := range r.store.outbox {
		if ev.ID == id {
			at := publishedAt
			ev.Published = true
			ev.PublishedAt = &at
			return nil
		}
	}

	return nil
}

// DeletePublished drops events published before the cutoff.
func (r *OutboxRepository) DeletePublished(_ context.Context, before time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.outbox[:0]
	for _, ev := range r.store.outbox {
		if ev.Published && ev.PublishedAt != nil && ev.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, ev)
	}
	r.store.outbox = kept

	return nil
}

// Events returns a snapshot of every stored event.
func (r *OutboxRepository) Events() []*domain.OutboxEvent {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.OutboxEvent, 0, len(r.store.outbox))
	for _, ev := range r.store.outbox {
		cp := *ev
		out = append(out, &cp)
	}

	return out
}
