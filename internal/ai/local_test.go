package ai

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	e, err := NewEmbedder("local", EmbedArgs{Dimensions: 64})
	require.NoError(t, err)
	require.Equal(t, 64, e.Dimensions())

	a, err := e.EmbedBatch(context.Background(), []string{"docker volume mount"})
	require.NoError(t, err)
	b, err := e.EmbedBatch(context.Background(), []string{"docker volume mount"})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestLocalEmbedderUnitNorm(t *testing.T) {
	e, err := NewEmbedder("local", EmbedArgs{})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"hello world", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	require.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	// Empty text stays a zero vector rather than NaN.
	for _, v := range vecs[1] {
		require.Zero(t, v)
	}
}

func TestLocalEmbedderTokenOverlap(t *testing.T) {
	e, err := NewEmbedder("local", EmbedArgs{Dimensions: 128})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{
		"docker compose network",
		"docker compose volume",
		"sourdough starter feeding",
	})
	require.NoError(t, err)

	dot := func(a, b []float32) float64 {
		var sum float64
		for i := range a {
			sum += float64(a[i]) * float64(b[i])
		}
		return sum
	}
	// Shared tokens should make the first pair more similar than either
	// is to the unrelated text.
	require.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
	require.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[1], vecs[2]))
}

func TestNewEmbedderUnknown(t *testing.T) {
	_, err := NewEmbedder("nope", EmbedArgs{})
	require.Error(t, err)
	_, err = NewEmbedder("", EmbedArgs{})
	require.Error(t, err)
}

func TestProbeSelectsFirstHealthy(t *testing.T) {
	local, err := NewEmbedder("local", EmbedArgs{Dimensions: 32})
	require.NoError(t, err)

	selected, name, err := Probe(context.Background(), []EmbedderEntry{
		{Name: "missing", Embedder: nil},
		{Name: "local", Embedder: local},
	})
	require.NoError(t, err)
	require.Equal(t, "local", name)
	require.Equal(t, 32, selected.Dimensions())
}

func TestProbeAllDown(t *testing.T) {
	_, _, err := Probe(context.Background(), nil)
	require.Error(t, err)
}
