package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prabuddhasl/support-intel-enricher/pkg/kb"
)

func TestMerge_DenseFirstThenKeywordSkippingDuplicates(t *testing.T) {
	dense := []kb.Chunk{{ID: 1}, {ID: 2}}
	keyword := []kb.Chunk{{ID: 2}, {ID: 3}, {ID: 4}}

	merged := merge(dense, keyword, 10, 10)

	ids := idsOf(merged)
	assert.Equal(t, []int64{1, 2, 3, 4}, ids)
}

func TestMerge_CapsAtKBCandidates(t *testing.T) {
	dense := []kb.Chunk{{ID: 1}, {ID: 2}}
	keyword := []kb.Chunk{{ID: 3}, {ID: 4}, {ID: 5}}

	merged := merge(dense, keyword, 3, 10)

	assert.Equal(t, []int64{1, 2, 3}, idsOf(merged))
}

func TestMerge_CapsAtHybridKeywordMax(t *testing.T) {
	dense := []kb.Chunk{{ID: 1}}
	keyword := []kb.Chunk{{ID: 2}, {ID: 3}, {ID: 4}}

	merged := merge(dense, keyword, 100, 2)

	assert.Equal(t, []int64{1, 2, 3}, idsOf(merged))
}

func idsOf(chunks []kb.Chunk) []int64 {
	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

type fakeEmbedBackend struct {
	vector []float32
}

func (f *fakeEmbedBackend) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

type fakeRerankBackend struct {
	scores []float32
}

func (f *fakeRerankBackend) Score(_ context.Context, _, _ string, candidates []string) ([]float32, error) {
	return f.scores[:len(candidates)], nil
}

func TestRegistry_DimensionMismatchIsFatal(t *testing.T) {
	registry := NewRegistry(&fakeEmbedBackend{vector: make([]float32, 384)}, &fakeRerankBackend{}, "m1", "r1")

	_, err := registry.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)

	registry2 := NewRegistry(&variableDimEmbed{}, &fakeRerankBackend{}, "m1", "r1")
	_, err = registry2.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	var mismatch *ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
}

type variableDimEmbed struct{ call int }

func (v *variableDimEmbed) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v.call++
		if v.call == 1 {
			out[i] = make([]float32, 384)
		} else {
			out[i] = make([]float32, 256)
		}
	}
	return out, nil
}

func TestRerank_StableSortPreservesMergeOrderOnTies(t *testing.T) {
	r := &Retriever{registry: NewRegistry(&fakeEmbedBackend{}, &fakeRerankBackend{scores: []float32{1, 1, 1}}, "m1", "r1"),
		cfg: Config{KBTopK: 3}}

	candidates := []kb.Chunk{{ID: 1}, {ID: 2}, {ID: 3}}
	out, err := r.rerank(context.Background(), "q", candidates)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, idsOf(out))
}
