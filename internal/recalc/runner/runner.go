// Package runner drains the recalculation queue in partitioned batches.
//
// Items are partitioned by a stable hash of their partition key, one worker
// goroutine per non-empty partition. Partitions are disjoint by construction,
// so no two workers ever touch the same dossier; within a partition items run
// strictly sequentially in claim order.
package runner

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"immuna/internal/recalc/metrics"
	"immuna/internal/recalc/models"
	"immuna/internal/recalc/ports"
)

// ItemProcessor handles one queue item end to end. The runner marks the
// queue item from the returned error.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, item *models.QueueItem) error
}

// RetryClassifier decides whether a processing error is retryable.
type RetryClassifier func(error) bool

// Report aggregates one run. Work still in flight when a partition wait
// timed out is not counted; the next run picks it up, which the idempotent
// state machine makes harmless.
type Report struct {
	Claimed   int
	Succeeded int
	Failed    int
}

// DefaultPartitionTimeout bounds the wait for the partition workers.
const DefaultPartitionTimeout = 3 * time.Minute

// Runner executes recalculation batches.
type Runner struct {
	queue     ports.RecalcQueue
	processor ItemProcessor
	retryable RetryClassifier

	partitionTimeout time.Duration
	logger           *slog.Logger
	metrics          *metrics.Metrics
	tracer           trace.Tracer
}

// Option configures the runner.
type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithPartitionTimeout(d time.Duration) Option {
	return func(r *Runner) { r.partitionTimeout = d }
}

// New constructs a runner. retryable classifies processing errors; nil means
// every failure is retryable.
func New(queue ports.RecalcQueue, processor ItemProcessor, retryable RetryClassifier, opts ...Option) (*Runner, error) {
	if queue == nil {
		return nil, fmt.Errorf("recalc queue is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("item processor is required")
	}
	if retryable == nil {
		retryable = func(error) bool { return true }
	}
	r := &Runner{
		queue:            queue,
		processor:        processor,
		retryable:        retryable,
		partitionTimeout: DefaultPartitionTimeout,
		logger:           slog.Default(),
		tracer:           otel.Tracer("immuna/recalc/runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunRecalculation claims up to batchSize pending items and processes them
// across partitionCount concurrent partitions. partitionCount of zero or one
// processes the batch sequentially in-process, the deliberate low-traffic
// fallback.
func (r *Runner) RunRecalculation(ctx context.Context, batchSize, partitionCount int) (Report, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "recalc.run",
		trace.WithAttributes(
			attribute.Int("batch_size", batchSize),
			attribute.Int("partition_count", partitionCount),
		))
	defer span.End()

	if r.metrics != nil {
		r.metrics.RunsTotal.Inc()
		defer func() { r.metrics.RunDuration.Observe(time.Since(start).Seconds()) }()
	}

	// Items stranded in processing by a dead claimant rejoin pending before
	// the claim. A reclaim failure never blocks the run.
	if reclaimed, err := r.queue.ReclaimStale(ctx, r.partitionTimeout); err != nil {
		r.logger.WarnContext(ctx, "reclaim stale items failed", "error", err)
	} else if reclaimed > 0 {
		r.logger.InfoContext(ctx, "reclaimed stale processing items", "count", reclaimed)
	}

	items, err := r.queue.ClaimBatch(ctx, batchSize)
	if err != nil {
		span.RecordError(err)
		return Report{}, fmt.Errorf("claim batch: %w", err)
	}
	span.SetAttributes(attribute.Int("claimed", len(items)))
	if r.metrics != nil {
		r.metrics.ItemsClaimed.Add(float64(len(items)))
	}
	if len(items) == 0 {
		return Report{}, nil
	}

	report := Report{Claimed: len(items)}

	if partitionCount <= 1 {
		succeeded, failed := r.processPartition(ctx, 0, items)
		report.Succeeded = int(succeeded)
		report.Failed = int(failed)
		r.logRun(ctx, report, time.Since(start))
		return report, nil
	}

	partitions := partition(items, partitionCount)

	var succeeded, failed atomic.Int64
	var g errgroup.Group
	for idx, part := range partitions {
		if len(part) == 0 {
			continue
		}
		g.Go(func() error {
			pStart := time.Now()
			s, f := r.processPartition(ctx, idx, part)
			succeeded.Add(s)
			failed.Add(f)
			if r.metrics != nil {
				r.metrics.PartitionDuration.Observe(time.Since(pStart).Seconds())
			}
			return nil
		})
	}

	// Bounded wait. On timeout the runner stops waiting but does not cancel
	// in-flight items: they finish, persist and are simply not counted here.
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(r.partitionTimeout):
		span.AddEvent("partition wait timed out")
		if r.metrics != nil {
			r.metrics.PartitionTimeouts.Inc()
		}
		r.logger.WarnContext(ctx, "partition wait timed out, report may undercount late completions",
			"timeout", r.partitionTimeout)
	}

	report.Succeeded = int(succeeded.Load())
	report.Failed = int(failed.Load())
	r.logRun(ctx, report, time.Since(start))
	return report, nil
}

// processPartition handles the items of one partition strictly sequentially.
// Failures are item-granular: one bad item never aborts its partition.
func (r *Runner) processPartition(ctx context.Context, idx int, items []*models.QueueItem) (succeeded, failed int64) {
	for _, item := range items {
		if err := r.processOne(ctx, item); err != nil {
			failed++
			r.logger.ErrorContext(ctx, "queue item failed",
				"partition", idx,
				"registrant_id", item.RegistrantID,
				"disease", item.Disease,
				"retry_count", item.RetryCount,
				"error", err,
			)
		} else {
			succeeded++
		}
	}
	if r.metrics != nil {
		r.metrics.ItemsSucceeded.Add(float64(succeeded))
		r.metrics.ItemsFailed.Add(float64(failed))
	}
	return succeeded, failed
}

func (r *Runner) processOne(ctx context.Context, item *models.QueueItem) error {
	err := r.processor.ProcessItem(ctx, item)
	if err == nil {
		if markErr := r.queue.MarkSuccess(ctx, item); markErr != nil {
			// The work is done; a failed success-mark means the item will be
			// reprocessed, which idempotent transitions tolerate.
			r.logger.WarnContext(ctx, "mark success failed", "item_id", item.ID, "error", markErr)
		}
		return nil
	}
	if markErr := r.queue.MarkFailed(ctx, item, err.Error(), r.retryable(err)); markErr != nil {
		r.logger.WarnContext(ctx, "mark failed failed", "item_id", item.ID, "error", markErr)
	}
	return err
}

func (r *Runner) logRun(ctx context.Context, report Report, elapsed time.Duration) {
	r.logger.InfoContext(ctx, "recalculation run finished",
		"claimed", report.Claimed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"elapsed", elapsed,
	)
}

// partition distributes items into n buckets by stable hash of the partition
// key. The same item always lands in the same bucket for a given n and never
// in more than one.
func partition(items []*models.QueueItem, n int) [][]*models.QueueItem {
	out := make([][]*models.QueueItem, n)
	for _, item := range items {
		idx := partitionIndex(item.PartitionKey(), n)
		out[idx] = append(out[idx], item)
	}
	return out
}

func partitionIndex(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
