package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const defaultLocalDimensions = 256

// localEmbedder is the fallback path used when no remote backend is
// reachable: a deterministic signed feature-hash of the token stream,
// L2-normalized to the same unit sphere the remote vectors live on.
// Quality is far below a trained model, but the output shape and the
// distance semantics match, which is what downstream thresholds need.
type localEmbedder struct {
	dimensions int
}

func (p *localEmbedder) ModelName() string {
	return "feature-hash"
}

func (p *localEmbedder) Dimensions() int {
	return p.dimensions
}

func (p *localEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.embedOne(text)
	}
	return out, nil
}

func (p *localEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, p.dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dimensions))
		if (sum>>63)&1 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

func createLocalEmbedder(args EmbedArgs) (IEmbedder, error) {
	dims := args.Dimensions
	if dims <= 0 {
		dims = defaultLocalDimensions
	}
	return &localEmbedder{dimensions: dims}, nil
}

func init() {
	RegisterEmbed("local", createLocalEmbedder)
}
