package embed

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/chatwrapped/internal/ai"
	"github.com/xxxsen/chatwrapped/internal/model"
	"github.com/xxxsen/chatwrapped/internal/pkg/errs"
)

// fakeEmbedder records batch sizes and can fail its first n calls with
// a scripted error.
type fakeEmbedder struct {
	dims      int
	batches   []int
	failFirst int
	failWith  error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, len(texts))
	if f.failFirst > 0 {
		f.failFirst--
		return nil, f.failWith
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dims)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake" }
func (f *fakeEmbedder) Dimensions() int   { return f.dims }

func embedCompression(cleaned ...string) *model.CompressionResult {
	bucket := model.MonthlyBucket{Month: "2025-04"}
	for i, text := range cleaned {
		bucket.Messages = append(bucket.Messages, model.CompressedMessage{
			ID:      fmt.Sprintf("m%d", i),
			Role:    model.RoleUser,
			Cleaned: text,
		})
	}
	return &model.CompressionResult{Buckets: []model.MonthlyBucket{bucket}}
}

func TestEmbedCoverage(t *testing.T) {
	backend := &fakeEmbedder{dims: 4}
	entries := []ai.EmbedderEntry{{Name: "fake", Embedder: backend}}
	compression := embedCompression("alpha", "", "beta")

	result, err := New(entries, Options{}).Embed(context.Background(), compression)
	require.NoError(t, err)
	require.Equal(t, "fake", result.Provider)
	require.Equal(t, 4, result.Dimensions)
	require.Len(t, result.Embeddings, 3)

	// Empty cleaned text gets a zero placeholder, never a gap.
	require.Equal(t, "m1", result.Embeddings[1].MessageID)
	require.True(t, result.Embeddings[1].Placeholder)
	require.Equal(t, make([]float32, 4), result.Embeddings[1].Vector)
	require.False(t, result.Embeddings[0].Placeholder)
}

func TestEmbedBatchSplit(t *testing.T) {
	backend := &splitEmbedder{dims: 2}
	vecs, err := New(nil, Options{}).embedBatch(context.Background(), backend, []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	// One failed full batch, then two halves.
	require.Equal(t, []int{4, 2, 2}, backend.batches)
}

// splitEmbedder fails any batch larger than 2 with resource exhaustion.
type splitEmbedder struct {
	dims    int
	batches []int
}

func (s *splitEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.batches = append(s.batches, len(texts))
	if len(texts) > 2 {
		return nil, errs.ErrResourceExhausted
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (s *splitEmbedder) ModelName() string { return "split" }
func (s *splitEmbedder) Dimensions() int   { return s.dims }

func TestEmbedProviderFallback(t *testing.T) {
	broken := &fakeEmbedder{dims: 2, failFirst: 100, failWith: fmt.Errorf("backend down")}
	healthy := &fakeEmbedder{dims: 2}
	entries := []ai.EmbedderEntry{
		{Name: "broken", Embedder: broken},
		{Name: "healthy", Embedder: healthy},
	}

	result, err := New(entries, Options{}).Embed(context.Background(), embedCompression("alpha"))
	require.NoError(t, err)
	require.Equal(t, "healthy", result.Provider)
}

// flakyEmbedder answers its first few calls and then goes dark,
// mimicking a backend that passes the capability check but dies mid-run.
type flakyEmbedder struct {
	dims  int
	limit int
	calls int
}

func (f *flakyEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls > f.limit {
		return nil, fmt.Errorf("backend gone")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 1}
	}
	return out, nil
}

func (f *flakyEmbedder) ModelName() string { return "flaky" }
func (f *flakyEmbedder) Dimensions() int   { return f.dims }

func TestEmbedMidRunFallback(t *testing.T) {
	// Survives the capability check and one batch, then fails.
	flaky := &flakyEmbedder{dims: 2, limit: 2}
	steady := &fakeEmbedder{dims: 2}
	entries := []ai.EmbedderEntry{
		{Name: "flaky", Embedder: flaky},
		{Name: "steady", Embedder: steady},
	}

	result, err := New(entries, Options{BatchSize: 2}).Embed(context.Background(),
		embedCompression("alpha", "beta", "gamma", "delta"))
	require.NoError(t, err)
	require.Equal(t, "flaky", result.Provider)
	require.Len(t, result.Embeddings, 4)
	for _, emb := range result.Embeddings {
		require.False(t, emb.Placeholder)
		require.Len(t, emb.Vector, 2)
	}
	// The second batch fell through to the next entry in the chain.
	require.Equal(t, []int{2}, steady.batches)
}

func TestEmbedNoProvider(t *testing.T) {
	_, err := New(nil, Options{}).Embed(context.Background(), embedCompression("alpha"))
	require.ErrorIs(t, err, errs.ErrProviderUnavailable)
}
