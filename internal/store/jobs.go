// ABOUTME: Postgres-backed job queue: enqueue, SKIP LOCKED claim, completion,
// ABOUTME: retry with exponential backoff, and stale-lock recovery.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Job is a claimed job ready for execution by the worker pool.
type Job struct {
	ID       uuid.UUID
	Queue    string
	Payload  json.RawMessage
	Attempts int32
}

// EnqueueJob inserts a new job into the named queue and returns its ID.
// runAfter defaults to now() when nil.
func (s *Store) EnqueueJob(
	ctx context.Context,
	queue string,
	priority int32,
	payload json.RawMessage,
	maxAttempts int32,
	runAfter *time.Time,
) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO job_queue (queue, priority, payload, max_attempts, run_after)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		RETURNING id`,
		queue, priority, payload, maxAttempts, runAfter,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

// ClaimJob atomically claims one pending job from the named queue for the
// given workerID using FOR UPDATE SKIP LOCKED. Returns (nil, nil) when no
// job is currently available.
func (s *Store) ClaimJob(ctx context.Context, queue, workerID string) (*Job, error) {
	var job Job
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT id, queue, payload, attempts
			FROM job_queue
			WHERE queue = $1 AND status = 'pending' AND run_after <= now()
			ORDER BY priority DESC, run_after
			LIMIT 1
			FOR UPDATE SKIP LOCKED`, queue)
		if err := row.Scan(&job.ID, &job.Queue, &job.Payload, &job.Attempts); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE job_queue
			SET status = 'running', attempts = attempts + 1,
			    locked_by = $2, locked_at = now(), updated_at = now()
			WHERE id = $1`, job.ID, workerID)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	job.Attempts++
	return &job, nil
}

// CompleteJob marks a job as succeeded.
func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE job_queue
		SET status = 'done', locked_by = NULL, locked_at = NULL, updated_at = now()
		WHERE id = $1`, id); err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return nil
}

// FailJob marks a job as failed, applying exponential backoff for retry or
// moving it to 'dead' status if max_attempts is exhausted.
func (s *Store) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE job_queue
		SET status = CASE WHEN attempts >= max_attempts THEN 'dead' ELSE 'pending' END,
		    run_after = now() + make_interval(secs => power(2, attempts) * 30),
		    last_error = NULLIF($2, ''),
		    locked_by = NULL, locked_at = NULL, updated_at = now()
		WHERE id = $1`, id, errMsg); err != nil {
		return fmt.Errorf("fail job %s: %w", id, err)
	}
	return nil
}

// RecoverStaleJobs resets jobs stuck in 'running' state longer than staleAfter
// back to 'pending'. Returns the number of jobs recovered.
func (s *Store) RecoverStaleJobs(ctx context.Context, staleAfter time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE job_queue
		SET status = 'pending', locked_by = NULL, locked_at = NULL, updated_at = now()
		WHERE status = 'running' AND locked_at < now() - make_interval(secs => $1)`,
		int64(staleAfter.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
