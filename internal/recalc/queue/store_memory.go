package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"immuna/internal/recalc/models"
	"immuna/internal/recalc/ports"
	id "immuna/pkg/domain"
	"immuna/pkg/platform/sentinel"
	"immuna/pkg/requestcontext"
)

// InMemoryQueue is the development and test implementation of the
// recalculation queue. Claims flip items to processing under the mutex, so
// each item goes to exactly one claimant.
type InMemoryQueue struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*models.QueueItem
	maxTries int
}

// NewInMemory builds an empty in-memory queue with the given retry ceiling.
func NewInMemory(maxTries int) *InMemoryQueue {
	if maxTries <= 0 {
		maxTries = DefaultMaxTries
	}
	return &InMemoryQueue{
		items:    make(map[uuid.UUID]*models.QueueItem),
		maxTries: maxTries,
	}
}

// DefaultMaxTries is the retry ceiling applied when none is configured.
const DefaultMaxTries = 5

func (q *InMemoryQueue) Enqueue(ctx context.Context, registrant id.RegistrantID, disease id.DiseaseID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := requestcontext.Now(ctx)

	for _, it := range q.items {
		if it.RegistrantID == registrant && it.Disease == disease &&
			(it.Status == models.ItemPending || it.Status == models.ItemProcessing) {
			return nil
		}
	}
	item := &models.QueueItem{
		ID:           uuid.New(),
		RegistrantID: registrant,
		Disease:      disease,
		Status:       models.ItemPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	q.items[item.ID] = item
	return nil
}

func (q *InMemoryQueue) ClaimBatch(ctx context.Context, limit int) ([]*models.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := requestcontext.Now(ctx)

	pending := make([]*models.QueueItem, 0, limit)
	for _, it := range q.items {
		if it.Status == models.ItemPending {
			pending = append(pending, it)
		}
	}
	// Claim order follows enqueue order; no external observer may rely on
	// it, but deterministic order keeps tests stable.
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID.String() < pending[j].ID.String()
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	claimed := make([]*models.QueueItem, 0, len(pending))
	for _, it := range pending {
		it.Status = models.ItemProcessing
		it.UpdatedAt = now
		copied := *it
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (q *InMemoryQueue) MarkSuccess(ctx context.Context, item *models.QueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[item.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	it.Status = models.ItemSucceeded
	it.LastError = ""
	it.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

func (q *InMemoryQueue) MarkFailed(ctx context.Context, item *models.QueueItem, reason string, retryable bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[item.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	it.RetryCount++
	it.LastError = reason
	it.UpdatedAt = requestcontext.Now(ctx)
	if !retryable || it.RetryCount >= q.maxTries {
		it.Status = models.ItemFailed
	} else {
		it.Status = models.ItemPending
	}
	return nil
}

func (q *InMemoryQueue) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := requestcontext.Now(ctx).Add(-olderThan)

	reclaimed := 0
	for _, it := range q.items {
		if it.Status == models.ItemProcessing && it.UpdatedAt.Before(cutoff) {
			it.Status = models.ItemPending
			reclaimed++
		}
	}
	return reclaimed, nil
}

// Snapshot returns a copy of an item for assertions in tests.
func (q *InMemoryQueue) Snapshot(itemID uuid.UUID) (models.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[itemID]
	if !ok {
		return models.QueueItem{}, false
	}
	return *it, true
}

var _ ports.RecalcQueue = (*InMemoryQueue)(nil)
