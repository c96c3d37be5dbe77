// Package store implements the store writer (C6): a single transaction per
// event that upserts the enriched ticket row, marks the event processed,
// and commits — plus a best-effort independent failed-status write used
// when retrieval, the LLM call, or the writer's commit fails.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/prabuddhasl/support-intel-enricher/pkg/codec"
	"github.com/prabuddhasl/support-intel-enricher/pkg/idempotency"
	"github.com/prabuddhasl/support-intel-enricher/pkg/normalize"
)

// Writer owns the long-lived connection pool and performs the
// transactional upsert described in spec §4.6.
type Writer struct {
	db *sql.DB
}

// New constructs a Writer over db.
func New(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// BeginTx opens the transaction that spans the duplicate check (C2) through
// the final commit, mirroring the single-connection scope of the source
// implementation: the same transaction that tested was_processed is the one
// that commits the upsert and the ledger insert.
func (w *Writer) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", ErrStoreFailed, err)
	}
	return tx, nil
}

// CommitEnriched upserts the enriched ticket row, marks eventID processed,
// and commits tx. On any failure the caller must roll back and call
// MarkFailed.
func (w *Writer) CommitEnriched(ctx context.Context, tx *sql.Tx, ticket codec.TicketEvent, eventID string, result normalize.Result) error {
	citationsJSON, err := json.Marshal(result.Citations)
	if err != nil {
		return fmt.Errorf("%w: marshaling citations: %v", ErrStoreFailed, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO enriched_tickets
			(ticket_id, last_event_id, subject, body, channel, priority, customer_id,
			 status, summary, category, sentiment, risk, suggested_reply, citations, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'enriched',$8,$9,$10,$11,$12,$13,NOW())
		ON CONFLICT (ticket_id) DO UPDATE SET
			last_event_id = EXCLUDED.last_event_id,
			subject = EXCLUDED.subject,
			body = EXCLUDED.body,
			channel = EXCLUDED.channel,
			priority = EXCLUDED.priority,
			customer_id = EXCLUDED.customer_id,
			status = 'enriched',
			summary = EXCLUDED.summary,
			category = EXCLUDED.category,
			sentiment = EXCLUDED.sentiment,
			risk = EXCLUDED.risk,
			suggested_reply = EXCLUDED.suggested_reply,
			citations = EXCLUDED.citations,
			updated_at = NOW()`,
		ticket.TicketID, eventID, ticket.Subject, ticket.Body, ticket.Channel, ticket.Priority, nullableString(ticket.CustomerID),
		result.Summary, string(result.Category), string(result.Sentiment), result.Risk, result.SuggestedReply, citationsJSON,
	)
	if err != nil {
		return fmt.Errorf("%w: upserting enriched_tickets: %v", ErrStoreFailed, err)
	}

	if err := idempotency.MarkProcessed(ctx, tx, eventID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", ErrStoreFailed, err)
	}
	return nil
}

// MarkFailed attempts, in a fresh transaction, to set status='failed' for
// ticketID. It is best-effort: any error is swallowed after rollback,
// matching the source's `_mark_failed` behavior.
func (w *Writer) MarkFailed(ctx context.Context, ticketID string) {
	if ticketID == "" {
		return
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE enriched_tickets SET status = 'failed', updated_at = NOW() WHERE ticket_id = $1`, ticketID)
	if err != nil {
		_ = tx.Rollback()
		return
	}
	_ = tx.Commit()
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
