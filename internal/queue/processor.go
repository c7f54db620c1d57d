// Package queue drains the inbound webhook job table. Jobs are claimed in
// batches, parsed, and handed to the shipment applier item by item.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gvanweelden/fulfilsync/internal/models"
	"github.com/gvanweelden/fulfilsync/pkg/metrics"
)

// Store claims and settles webhook jobs. ClaimJobs must move the rows to
// processing atomically so two worker instances never share a job.
type Store interface {
	ClaimJobs(ctx context.Context, limit int) ([]models.WebhookJob, error)
	MarkJobDone(ctx context.Context, id int64) error
	MarkJobFailed(ctx context.Context, id int64, errMsg string) error
}

// OrderResolver matches one reference against the carrier order number,
// the order name and the client reference in a single lookup.
type OrderResolver interface {
	FindOrderByAny(ctx context.Context, ref string) (*models.Order, error)
}

// ShipmentApplier merges one status item into a resolved order.
type ShipmentApplier interface {
	ApplyItem(ctx context.Context, order *models.Order, meta models.EventMeta, item models.OrderStatusItem) error
}

// Processor runs the webhook queue. Sequential by design: jobs within a
// batch are handled one at a time, a failing job never stops the batch.
type Processor struct {
	store    Store
	resolver OrderResolver
	applier  ShipmentApplier
	logger   *slog.Logger
}

func NewProcessor(store Store, resolver OrderResolver, applier ShipmentApplier, logger *slog.Logger) *Processor {
	return &Processor{store: store, resolver: resolver, applier: applier, logger: logger}
}

// ProcessBatch claims up to limit jobs and works through them. Returns the
// number of jobs that finished in done.
func (p *Processor) ProcessBatch(ctx context.Context, limit int) (int, error) {
	start := time.Now()

	jobs, err := p.store.ClaimJobs(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("claim webhook jobs: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	metrics.BatchSize.Observe(float64(len(jobs)))

	done := 0
	for i := range jobs {
		job := &jobs[i]
		l := p.logger.With("job_id", job.ID, "correlation_id", job.CorrelationID, "attempt", job.Attempts)

		eventType, err := p.processJob(ctx, job, l)
		if err != nil {
			l.Error("Webhook job failed", "error", err)
			if markErr := p.store.MarkJobFailed(ctx, job.ID, err.Error()); markErr != nil {
				l.Error("Failed to mark job failed", "error", markErr)
			}
			metrics.WebhookJobsProcessed.WithLabelValues("failed", eventType).Inc()
			continue
		}

		if err := p.store.MarkJobDone(ctx, job.ID); err != nil {
			l.Error("Failed to mark job done", "error", err)
			continue
		}
		done++
		metrics.WebhookJobsProcessed.WithLabelValues("done", eventType).Inc()
	}

	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("Webhook batch finished", "claimed", len(jobs), "done", done)
	return done, nil
}

// processJob parses and applies one job. The returned event type feeds the
// metrics label even when parsing failed.
func (p *Processor) processJob(ctx context.Context, job *models.WebhookJob, l *slog.Logger) (string, error) {
	var payload models.ShipmentEventPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "unknown", &models.StructuralPayloadError{Err: err}
	}

	meta := payload.Meta()
	eventType := meta.Type
	if eventType == "" {
		eventType = "unknown"
	}

	var applyErrs []string
	for _, item := range payload.OrderStatus {
		order, err := p.resolver.FindOrderByAny(ctx, item.OrderNo)
		if err != nil {
			applyErrs = append(applyErrs, fmt.Sprintf("resolve %s: %v", item.OrderNo, err))
			continue
		}
		if order == nil {
			// Unknown orders are skipped, not a job failure.
			l.Warn("Status item references unknown order", "order_no", item.OrderNo)
			continue
		}

		if err := p.applier.ApplyItem(ctx, order, meta, item); err != nil {
			applyErrs = append(applyErrs, fmt.Sprintf("apply %s: %v", item.OrderNo, err))
		}
	}

	if len(applyErrs) > 0 {
		return eventType, fmt.Errorf("%d of %d items failed: %s",
			len(applyErrs), len(payload.OrderStatus), strings.Join(applyErrs, "; "))
	}
	return eventType, nil
}
