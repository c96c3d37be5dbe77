package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/prabuddhasl/support-intel-enricher/pkg/chunker"
)

// InsertDocument inserts a KB document row and returns its generated ID.
// Grounded on the ingestion surface's document-creation step, which the
// core doesn't run but whose schema it owns.
func InsertDocument(ctx context.Context, db *sql.DB, filename, title, contentType, sha256, source, sourceURL string, sizeBytes int64) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO kb_documents (filename, title, content_type, sha256, size_bytes, source, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		filename, title, contentType, sha256, sizeBytes, source, nullableString(sourceURL),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting kb_documents: %w", err)
	}
	return id, nil
}

// InsertChunksWithEmbeddings inserts chunker output paired with their
// embeddings, one row per chunk, in chunk order. Grounded on
// services/common/vector_store.py's insert_kb_chunks_with_embeddings.
func InsertChunksWithEmbeddings(ctx context.Context, db *sql.DB, docID int64, chunks []chunker.Piece, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunks and embeddings length mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	for idx, c := range chunks {
		_, err := db.ExecContext(ctx, `
			INSERT INTO kb_chunks (doc_id, chunk_index, heading_path, content, embedding)
			VALUES ($1, $2, $3, $4, $5::vector)`,
			docID, idx, nullableString(c.HeadingPath), c.Content, vectorLiteral(embeddings[idx]),
		)
		if err != nil {
			return fmt.Errorf("inserting kb_chunks[%d]: %w", idx, err)
		}
	}
	return nil
}

// UpdateChunkEmbedding replaces chunkID's embedding, used when a model swap
// requires re-embedding existing chunks. Grounded on
// services/common/vector_store.py's update_chunk_embedding.
func UpdateChunkEmbedding(ctx context.Context, db *sql.DB, chunkID int64, embedding []float32) error {
	_, err := db.ExecContext(ctx,
		`UPDATE kb_chunks SET embedding = $1::vector WHERE id = $2`, vectorLiteral(embedding), chunkID)
	if err != nil {
		return fmt.Errorf("updating kb_chunks[%d] embedding: %w", chunkID, err)
	}
	return nil
}

func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%g", f)
	}
	sb.WriteByte(']')
	return sb.String()
}
