// Package retrieval implements the hybrid retriever (C3): dense ANN +
// keyword full-text search with deterministic merge and optional
// cross-encoder rerank.
package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/prabuddhasl/support-intel-enricher/pkg/kb"
)

// Config is the retriever's tunable surface (spec §4.3).
type Config struct {
	KBCandidates        int
	KBTopK              int
	RerankEnabled       bool
	HybridSearchEnabled bool
	HybridKeywordMax    int
}

// Retriever runs the hybrid dense+keyword search and optional rerank stage
// against a Postgres pool holding kb_chunks/kb_documents.
type Retriever struct {
	db       *sql.DB
	registry *Registry
	cfg      Config
}

// New constructs a Retriever.
func New(db *sql.DB, registry *Registry, cfg Config) *Retriever {
	return &Retriever{db: db, registry: registry, cfg: cfg}
}

// Retrieve embeds query, fetches dense and keyword candidates, merges them
// deterministically, optionally reranks, and returns up to cfg.KBTopK chunks.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]kb.Chunk, error) {
	dense, err := r.denseCandidates(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: dense candidates: %v", ErrRetrievalFailed, err)
	}

	var keyword []kb.Chunk
	if r.cfg.HybridSearchEnabled {
		keyword, err = r.keywordCandidates(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: keyword candidates: %v", ErrRetrievalFailed, err)
		}
	}

	merged := merge(dense, keyword, r.cfg.KBCandidates, r.cfg.HybridKeywordMax)
	if len(merged) == 0 {
		return nil, nil
	}

	if r.cfg.RerankEnabled {
		return r.rerank(ctx, query, merged)
	}

	if len(merged) > r.cfg.KBTopK {
		merged = merged[:r.cfg.KBTopK]
	}
	return merged, nil
}

func (r *Retriever) denseCandidates(ctx context.Context, query string) ([]kb.Chunk, error) {
	vectors, err := r.registry.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	literal := vectorLiteral(vectors[0])

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.doc_id, c.chunk_index, c.heading_path, c.content, d.title, d.source, d.source_url
		FROM kb_chunks c
		JOIN kb_documents d ON d.id = c.doc_id
		WHERE c.embedding IS NOT NULL
		ORDER BY c.embedding <-> $1::vector
		LIMIT $2`, literal, r.cfg.KBCandidates)
	if err != nil {
		return nil, fmt.Errorf("querying dense candidates: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func (r *Retriever) keywordCandidates(ctx context.Context, query string) ([]kb.Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.doc_id, c.chunk_index, c.heading_path, c.content, d.title, d.source, d.source_url
		FROM kb_chunks c
		JOIN kb_documents d ON d.id = c.doc_id
		WHERE c.content_tsv @@ plainto_tsquery('english', $1)
		ORDER BY ts_rank_cd(c.content_tsv, plainto_tsquery('english', $1)) DESC, c.id ASC
		LIMIT $2`, query, r.cfg.HybridKeywordMax)
	if err != nil {
		return nil, fmt.Errorf("querying keyword candidates: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func (r *Retriever) rerank(ctx context.Context, query string, candidates []kb.Chunk) ([]kb.Chunk, error) {
	contents := make([]string, len(candidates))
	for i, c := range candidates {
		contents[i] = c.Content
	}

	scores, err := r.registry.Rerank(ctx, query, contents)
	if err != nil {
		return nil, fmt.Errorf("%w: rerank: %v", ErrRetrievalFailed, err)
	}

	ranked := make([]kb.Chunk, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].Score = scores[i]
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > r.cfg.KBTopK {
		ranked = ranked[:r.cfg.KBTopK]
	}
	return ranked, nil
}

// merge deterministically combines dense and keyword candidate lists: dense
// first in order, then keyword entries skipping duplicate IDs, stopping
// once the merged list reaches kbCandidates or hybridKeywordMax keyword
// entries have been appended, whichever comes first (spec §4.3 step 3).
func merge(dense, keyword []kb.Chunk, kbCandidates, hybridKeywordMax int) []kb.Chunk {
	seen := make(map[int64]struct{}, len(dense))
	merged := make([]kb.Chunk, 0, len(dense)+len(keyword))

	for _, c := range dense {
		merged = append(merged, c)
		seen[c.ID] = struct{}{}
	}

	keywordAdded := 0
	for _, c := range keyword {
		if len(merged) >= kbCandidates || keywordAdded >= hybridKeywordMax {
			break
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		merged = append(merged, c)
		seen[c.ID] = struct{}{}
		keywordAdded++
	}

	return merged
}

func scanChunks(rows *sql.Rows) ([]kb.Chunk, error) {
	var chunks []kb.Chunk
	for rows.Next() {
		var c kb.Chunk
		var headingPath, title, source, sourceURL sql.NullString
		if err := rows.Scan(&c.ID, &c.DocID, &c.ChunkIndex, &headingPath, &c.Content, &title, &source, &sourceURL); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		c.HeadingPath = headingPath.String
		c.Title = title.String
		c.Source = source.String
		c.SourceURL = sourceURL.String
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk rows: %w", err)
	}
	return chunks, nil
}

// vectorLiteral renders a float32 vector as a pgvector input literal, e.g.
// "[0.1,0.2,0.3]".
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
