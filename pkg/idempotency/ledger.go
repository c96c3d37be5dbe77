// Package idempotency implements the processed-event ledger (C2): a
// record-and-test of processed event IDs committed in the same transaction
// as the store writer's side effects.
package idempotency

import (
	"context"
	"database/sql"
	"fmt"
)

// WasProcessed reports whether eventID already has a ledger entry, run
// within tx so the check is consistent with the writer's own transaction.
func WasProcessed(ctx context.Context, tx *sql.Tx, eventID string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)`, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking processed_events for %q: %w", eventID, err)
	}
	return exists, nil
}

// MarkProcessed records eventID as processed. It is insert-if-absent: a
// re-insert of an already-processed ID is a no-op, never an error.
func MarkProcessed(ctx context.Context, tx *sql.Tx, eventID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO processed_events (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`, eventID,
	)
	if err != nil {
		return fmt.Errorf("marking %q processed: %w", eventID, err)
	}
	return nil
}
