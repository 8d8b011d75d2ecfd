package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

type groupEmbedder struct {
	items []EmbedderEntry
}

// NewGroupEmbedder chains embedders in preference order; a batch is
// served by the first entry that succeeds. All entries must share the
// same dimensionality, checked at selection time by Probe.
func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	if len(items) == 0 {
		return nil
	}
	return &groupEmbedder{items: items}
}

func (g *groupEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Embedder == nil {
			continue
		}
		res, err := item.Embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return nil, lastErr
}

func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	return strings.Join(names, "|")
}

func (g *groupEmbedder) Dimensions() int {
	for _, item := range g.items {
		if item.Embedder != nil {
			return item.Embedder.Dimensions()
		}
	}
	return 0
}

// Probe selects the first embedder that can actually serve a request,
// checked once at stage start with a one-item batch. This is the
// capability probe behind accelerated-vs-fallback selection: callers get
// back a single concrete embedder, not the whole chain.
func Probe(ctx context.Context, items []EmbedderEntry) (IEmbedder, string, error) {
	var lastErr error
	for _, item := range items {
		if item.Embedder == nil {
			continue
		}
		vecs, err := item.Embedder.EmbedBatch(ctx, []string{"probe"})
		if err != nil {
			lastErr = err
			logutil.GetLogger(ctx).Warn("embedder probe failed", zap.String("name", item.Name), zap.Error(err))
			continue
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			lastErr = fmt.Errorf("probe returned empty vector from %s", item.Name)
			continue
		}
		logutil.GetLogger(ctx).Info("embedder selected",
			zap.String("name", item.Name),
			zap.String("model", item.Embedder.ModelName()),
			zap.Int("dimensions", len(vecs[0])),
		)
		return item.Embedder, item.Name, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no embedder configured")
	}
	return nil, "", lastErr
}
