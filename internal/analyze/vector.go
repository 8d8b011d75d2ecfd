package analyze

import (
	"math"

	"github.com/xxxsen/chatwrapped/internal/model"
)

// Matrix is the run-scoped embedding matrix: one flat backing slice that
// every worker reads through subslice views, never per-worker copies.
// Rows are unit-normalized at build time; zero placeholder rows stay
// zero and are reported as absent by Row.
type Matrix struct {
	data  []float32
	dims  int
	index map[string]int
	live  []bool
}

// NewMatrix builds the shared matrix from an embedding artifact.
func NewMatrix(result *model.EmbeddingResult) *Matrix {
	m := &Matrix{
		data:  make([]float32, len(result.Embeddings)*result.Dimensions),
		dims:  result.Dimensions,
		index: make(map[string]int, len(result.Embeddings)),
		live:  make([]bool, len(result.Embeddings)),
	}
	for i := range result.Embeddings {
		emb := &result.Embeddings[i]
		m.index[emb.MessageID] = i
		row := m.data[i*m.dims : (i+1)*m.dims]
		copy(row, emb.Vector)
		if !emb.Placeholder && normalize(row) {
			m.live[i] = true
		}
	}
	return m
}

// Row returns a read-only view of the vector for one message id, or
// false when the message has no usable embedding.
func (m *Matrix) Row(id string) ([]float32, bool) {
	i, ok := m.index[id]
	if !ok || !m.live[i] {
		return nil, false
	}
	return m.data[i*m.dims : (i+1)*m.dims], true
}

func (m *Matrix) Dims() int {
	return m.dims
}

// Cosine of two unit vectors reduces to their dot product.
func Cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Centroid accumulates rows into a fresh unit-normalized mean vector.
type Centroid struct {
	sum   []float64
	count int
}

func NewCentroid(dims int) *Centroid {
	return &Centroid{sum: make([]float64, dims)}
}

func (c *Centroid) Add(vec []float32) {
	for i := range vec {
		c.sum[i] += float64(vec[i])
	}
	c.count++
}

// Unit returns the normalized centroid, or nil when empty or degenerate.
func (c *Centroid) Unit() []float32 {
	if c.count == 0 {
		return nil
	}
	out := make([]float32, len(c.sum))
	for i := range c.sum {
		out[i] = float32(c.sum[i] / float64(c.count))
	}
	if !normalize(out) {
		return nil
	}
	return out
}

func normalize(vec []float32) bool {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return false
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return true
}
