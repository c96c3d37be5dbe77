package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSearchIndexes ensures the indexes that support hybrid retrieval
// exist: a GIN index for full-text search over kb_chunks.content_tsv and an
// IVFFlat index for approximate nearest-neighbor search over
// kb_chunks.embedding. The versioned migration already creates both, so on a
// migrated database this call is a no-op: it never rebuilds an existing
// index, and the ivfflat "lists" parameter is fixed at 100.
func CreateSearchIndexes(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_kb_chunks_content_tsv_gin
		ON kb_chunks USING gin(content_tsv)`); err != nil {
		return fmt.Errorf("creating content_tsv GIN index: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_kb_chunks_embedding_ivfflat
		ON kb_chunks USING ivfflat (embedding vector_l2_ops) WITH (lists = 100)`); err != nil {
		return fmt.Errorf("creating embedding ANN index: %w", err)
	}

	return nil
}
