package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/chatwrapped/internal/ai"
)

type countingEmbedder struct {
	calls int
	texts int
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts += len(texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) ModelName() string { return "counting" }
func (c *countingEmbedder) Dimensions() int   { return 2 }

func TestCacheAvoidsRepeatWork(t *testing.T) {
	backend := &countingEmbedder{}
	cached := WrapLruCacheToEmbedder(backend, 16, time.Minute)
	ctx := context.Background()

	first, err := cached.EmbedBatch(ctx, []string{"aa", "bbb"})
	require.NoError(t, err)
	require.Equal(t, 1, backend.calls)

	second, err := cached.EmbedBatch(ctx, []string{"aa", "bbb"})
	require.NoError(t, err)
	require.Equal(t, 1, backend.calls, "fully cached batch must not hit the backend")
	require.Equal(t, first, second)
}

func TestCachePartialHit(t *testing.T) {
	backend := &countingEmbedder{}
	cached := WrapLruCacheToEmbedder(backend, 16, time.Minute)
	ctx := context.Background()

	_, err := cached.EmbedBatch(ctx, []string{"aa"})
	require.NoError(t, err)

	out, err := cached.EmbedBatch(ctx, []string{"aa", "cccc"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, []float32{2, 1}, out[0])
	require.Equal(t, []float32{4, 1}, out[1])
	// Only the miss went to the backend.
	require.Equal(t, 2, backend.calls)
	require.Equal(t, 2, backend.texts)
}

func TestCacheReturnsCopies(t *testing.T) {
	backend := &countingEmbedder{}
	cached := WrapLruCacheToEmbedder(backend, 16, time.Minute)
	ctx := context.Background()

	first, err := cached.EmbedBatch(ctx, []string{"aa"})
	require.NoError(t, err)
	first[0][0] = 999

	second, err := cached.EmbedBatch(ctx, []string{"aa"})
	require.NoError(t, err)
	require.Equal(t, []float32{2, 1}, second[0], "cached vector must not alias caller slices")
}

func TestWrapDisabled(t *testing.T) {
	backend := &countingEmbedder{}
	require.Equal(t, ai.IEmbedder(backend), WrapLruCacheToEmbedder(backend, 0, time.Minute))
	require.Equal(t, ai.IEmbedder(backend), WrapLruCacheToEmbedder(backend, 16, 0))
}
