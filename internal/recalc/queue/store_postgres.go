// Package queue implements the durable recalculation work queue.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"immuna/internal/recalc/models"
	"immuna/internal/recalc/ports"
	id "immuna/pkg/domain"
)

// PostgresQueue persists queue items in PostgreSQL. Claims use
// FOR UPDATE SKIP LOCKED so concurrent claimants never receive the same item.
type PostgresQueue struct {
	pool     *pgxpool.Pool
	maxTries int
}

// NewPostgres constructs a PostgreSQL-backed queue with the given retry
// ceiling.
func NewPostgres(pool *pgxpool.Pool, maxTries int) *PostgresQueue {
	if maxTries <= 0 {
		maxTries = DefaultMaxTries
	}
	return &PostgresQueue{pool: pool, maxTries: maxTries}
}

var _ ports.RecalcQueue = (*PostgresQueue)(nil)

// Schema is the DDL for the queue table. Deployments apply it through their
// migration tooling; tests apply it directly.
const Schema = `
CREATE TABLE IF NOT EXISTS recalc_queue (
	id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	registrant_id  UUID        NOT NULL,
	disease_id     TEXT        NOT NULL,
	status         TEXT        NOT NULL DEFAULT 'pending',
	retry_count    INT         NOT NULL DEFAULT 0,
	last_error     TEXT        NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (registrant_id, disease_id)
);
CREATE INDEX IF NOT EXISTS recalc_queue_pending_idx
	ON recalc_queue (created_at) WHERE status = 'pending';
`

func (q *PostgresQueue) Enqueue(ctx context.Context, registrant id.RegistrantID, disease id.DiseaseID) error {
	// Re-enqueueing a finished pair resets it to pending; an in-flight pair
	// is left alone, the upcoming run already covers the new fact.
	_, err := q.pool.Exec(ctx, `
		INSERT INTO recalc_queue (registrant_id, disease_id, status)
		VALUES ($1, $2, 'pending')
		ON CONFLICT (registrant_id, disease_id) DO UPDATE
		SET status = 'pending', retry_count = 0, last_error = '', updated_at = now()
		WHERE recalc_queue.status IN ('succeeded', 'failed')`,
		registrant.String(), disease.String(),
	)
	if err != nil {
		return fmt.Errorf("enqueue recalculation: %w", err)
	}
	return nil
}

func (q *PostgresQueue) ClaimBatch(ctx context.Context, limit int) ([]*models.QueueItem, error) {
	rows, err := q.pool.Query(ctx, `
		WITH claimed AS (
			SELECT id FROM recalc_queue
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE recalc_queue q
		SET status = 'processing', updated_at = now()
		FROM claimed
		WHERE q.id = claimed.id
		RETURNING q.id, q.registrant_id, q.disease_id, q.status, q.retry_count,
		          q.last_error, q.created_at, q.updated_at`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	return items, nil
}

func (q *PostgresQueue) MarkSuccess(ctx context.Context, item *models.QueueItem) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE recalc_queue
		SET status = 'succeeded', last_error = '', updated_at = now()
		WHERE id = $1`,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("mark success: %w", err)
	}
	return nil
}

func (q *PostgresQueue) MarkFailed(ctx context.Context, item *models.QueueItem, reason string, retryable bool) error {
	// A retryable failure goes back to pending until the ceiling converts it
	// to a terminal failure; non-retryable failures are terminal at once.
	_, err := q.pool.Exec(ctx, `
		UPDATE recalc_queue
		SET retry_count = retry_count + 1,
		    last_error  = $2,
		    status      = CASE
		        WHEN NOT $3::bool OR retry_count + 1 >= $4::int THEN 'failed'
		        ELSE 'pending'
		    END,
		    updated_at  = now()
		WHERE id = $1`,
		item.ID, reason, retryable, q.maxTries,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (q *PostgresQueue) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	// Items stranded in processing by a claimant that died between claim and
	// mark go back to pending. The retry count is left alone; the strand is
	// an infrastructure death, not a processing failure.
	tag, err := q.pool.Exec(ctx, `
		UPDATE recalc_queue
		SET status = 'pending', updated_at = now()
		WHERE status = 'processing'
		  AND updated_at < now() - ($1 * interval '1 second')`,
		olderThan.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanItems(rows pgx.Rows) ([]*models.QueueItem, error) {
	var items []*models.QueueItem
	for rows.Next() {
		var (
			it            models.QueueItem
			registrantRaw string
			diseaseRaw    string
			statusRaw     string
		)
		if err := rows.Scan(&it.ID, &registrantRaw, &diseaseRaw, &statusRaw,
			&it.RetryCount, &it.LastError, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		registrant, err := id.ParseRegistrantID(registrantRaw)
		if err != nil {
			return nil, err
		}
		it.RegistrantID = registrant
		it.Disease = id.DiseaseID(diseaseRaw)
		it.Status = models.ItemStatus(statusRaw)
		items = append(items, &it)
	}
	return items, rows.Err()
}
