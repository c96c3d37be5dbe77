package retrieval

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prabuddhasl/support-intel-enricher/pkg/inference"
)

// Registry is the process-scoped model-handle cache described in spec §9:
// embedding and rerank backends are acquired once at startup and addressed
// by model name; changing a model name evicts and rebuilds the cached
// handle rather than silently mixing dimensions or model versions. It holds
// no ambient global state — callers construct one Registry per process and
// pass it explicitly to the retriever.
type Registry struct {
	embed  inference.EmbeddingBackend
	rerank inference.RerankBackend

	mu           sync.RWMutex
	embedModel   string
	rerankModel  string
	embedDim     int
	embedDimSet  bool
}

// NewRegistry binds concrete backends and the initially-configured model
// names.
func NewRegistry(embed inference.EmbeddingBackend, rerank inference.RerankBackend, embedModel, rerankModel string) *Registry {
	return &Registry{embed: embed, rerank: rerank, embedModel: embedModel, rerankModel: rerankModel}
}

// SetEmbeddingModel evicts the cached embedding dimensionality and switches
// to a new model name for subsequent calls.
func (r *Registry) SetEmbeddingModel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == r.embedModel {
		return
	}
	slog.Info("embedding model changed, evicting cached handle", "old_model", r.embedModel, "new_model", name)
	r.embedModel = name
	r.embedDimSet = false
	r.embedDim = 0
}

// SetRerankModel switches the rerank model name for subsequent calls.
func (r *Registry) SetRerankModel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == r.rerankModel {
		return
	}
	slog.Info("rerank model changed", "old_model", r.rerankModel, "new_model", name)
	r.rerankModel = name
}

// Embed embeds texts with the currently-configured embedding model. On the
// first call it records the returned dimensionality; any later call whose
// result has a different dimension is a fatal ErrDimensionMismatch — a
// model swap must go through SetEmbeddingModel, not a silent change.
func (r *Registry) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	r.mu.RLock()
	model := r.embedModel
	r.mu.RUnlock()

	vectors, err := r.embed.Embed(ctx, model, texts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range vectors {
		if !r.embedDimSet {
			r.embedDim = len(v)
			r.embedDimSet = true
			continue
		}
		if len(v) != r.embedDim {
			return nil, &ErrDimensionMismatch{Expected: r.embedDim, Got: len(v)}
		}
	}
	return vectors, nil
}

// Rerank scores candidates against query with the currently-configured
// rerank model.
func (r *Registry) Rerank(ctx context.Context, query string, candidates []string) ([]float32, error) {
	r.mu.RLock()
	model := r.rerankModel
	r.mu.RUnlock()
	return r.rerank.Score(ctx, model, query, candidates)
}
