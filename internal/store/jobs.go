package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

// EnqueueJob stores one inbound webhook delivery as a new job.
func (s *Store) EnqueueJob(ctx context.Context, job *models.WebhookJob) (int64, error) {
	query := `
		INSERT INTO webhook_jobs
			(correlation_id, state, attempts, payload, merchant_code, message_no, event_date, event_time)
		VALUES ($1, 'new', 0, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		job.CorrelationID, job.Payload, job.MerchantCode,
		job.MessageNo, job.EventDate, job.EventTime,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueue webhook job: %w", err)
	}
	return id, nil
}

// ClaimJobs atomically moves up to limit new or failed jobs to processing
// and returns them. Concurrent workers never receive the same row: the
// selection locks with SKIP LOCKED and the state flip happens in the same
// statement. The attempt counter moves on every claim.
func (s *Store) ClaimJobs(ctx context.Context, limit int) ([]models.WebhookJob, error) {
	query := `
		UPDATE webhook_jobs
		SET state = 'processing', attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id IN (
			SELECT id FROM webhook_jobs
			WHERE state IN ('new', 'failed')
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, correlation_id, state, attempts, payload, last_error,
			merchant_code, message_no, event_date, event_time, created_at
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim webhook jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.WebhookJob
	for rows.Next() {
		var j models.WebhookJob
		err := rows.Scan(
			&j.ID,
			&j.CorrelationID,
			&j.State,
			&j.Attempts,
			&j.Payload,
			&j.LastError,
			&j.MerchantCode,
			&j.MessageNo,
			&j.EventDate,
			&j.EventTime,
			&j.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan webhook job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *Store) MarkJobDone(ctx context.Context, id int64) error {
	query := `
		UPDATE webhook_jobs
		SET state = 'done', last_error = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, query, id)
	return err
}

func (s *Store) MarkJobFailed(ctx context.Context, id int64, errMsg string) error {
	query := `
		UPDATE webhook_jobs
		SET state = 'failed', last_error = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, query, id, errMsg)
	return err
}

// CountBacklog feeds the queue lag gauge: jobs still waiting for a worker.
func (s *Store) CountBacklog(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM webhook_jobs WHERE state IN ('new', 'failed')`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count webhook backlog: %w", err)
	}
	return n, nil
}

// ResetStaleJobs returns jobs stuck in processing to failed so the next
// batch retries them. A job only stays in processing when a worker died
// mid-flight.
func (s *Store) ResetStaleJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE webhook_jobs
		SET state = 'failed',
		    last_error = 'reset: stuck in processing',
		    updated_at = CURRENT_TIMESTAMP
		WHERE state = 'processing'
		  AND updated_at < CURRENT_TIMESTAMP - $1::interval
	`
	tag, err := s.pool.Exec(ctx, query, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
