package queue

import (
	"context"
	"fmt"
	"time"
)

// ResetStuckProcessing rolls items left in a processing status back to
// pending. Runs restart from the source, so a crash mid-stage loses only
// temporary artifacts.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	args := make([]any, 0, len(processingStatuses)+2)
	args = append(args, StatusPending, time.Now().UTC().Format(time.RFC3339Nano))
	for status := range processingStatuses {
		args = append(args, status)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, error_message = NULL, started_at = NULL, updated_at = ?
        WHERE status IN (`+makePlaceholders(len(processingStatuses))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck processing: %w", err)
	}
	return res.RowsAffected()
}

// MarkProcessing transitions an item into the given stage's processing
// status and stamps the start time on the first stage.
func (s *Store) MarkProcessing(ctx context.Context, item *Item, stage string) error {
	status, ok := StatusForStage(stage)
	if !ok {
		return fmt.Errorf("unknown stage %q", stage)
	}
	item.Status = status
	if item.StartedAt == nil {
		now := time.Now().UTC()
		item.StartedAt = &now
	}
	return s.Update(ctx, item)
}

// RetryFailed resets failed items back to pending. With no ids, every
// failed item is reset. Returns the number of items transitioned.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_items SET status = ?, error_message = NULL, started_at = NULL, completed_at = NULL, updated_at = ?
            WHERE status = ?`,
			StatusPending, timestamp, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, timestamp, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, error_message = NULL, started_at = NULL, completed_at = NULL, updated_at = ?
        WHERE status = ? AND id IN (`+makePlaceholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}
