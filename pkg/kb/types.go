// Package kb holds the data shapes shared between the retriever and the
// store layer for knowledge-base chunks and documents (spec §3, read-only
// to the core enrichment pipeline).
package kb

// Chunk is a retrieved knowledge-base chunk, joined with its parent
// document's display metadata.
type Chunk struct {
	ID          int64
	DocID       int64
	ChunkIndex  int
	HeadingPath string
	Content     string
	Title       string
	Source      string
	SourceURL   string

	// Score is set by the rerank stage; zero when reranking is disabled.
	Score float32
}

// Document is a KB source document.
type Document struct {
	ID          int64
	Filename    string
	Title       string
	ContentType string
	SHA256      string
	SizeBytes   int64
	Source      string
	SourceURL   string
}
