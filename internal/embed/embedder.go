package embed

import (
	"context"
	"fmt"

	"github.com/xxxsen/chatwrapped/internal/ai"
	"github.com/xxxsen/chatwrapped/internal/model"
	"github.com/xxxsen/chatwrapped/internal/pkg/errs"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultBatchSize = 64

type Options struct {
	// BatchSize bounds peak memory per inference call.
	BatchSize int
}

// Embedder runs the optional embedding stage: it probes the configured
// backends once, picks the most capable one that answers, and embeds
// every compressed message in deterministic bucket order.
type Embedder struct {
	entries []ai.EmbedderEntry
	opts    Options
}

func New(entries []ai.EmbedderEntry, opts Options) *Embedder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Embedder{entries: entries, opts: opts}
}

// Embed produces one vector per compressed message. Messages whose
// cleaned text is empty get a zero placeholder vector so identifier
// coverage stays one-to-one with the compression output; that property
// is checked before returning.
func (e *Embedder) Embed(ctx context.Context, compression *model.CompressionResult) (*model.EmbeddingResult, error) {
	backend, name, err := ai.Probe(ctx, e.entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrProviderUnavailable, err)
	}
	chain := e.fallbackChain(backend, name)

	ids := make([]string, 0, compression.MessageCount())
	texts := make([]string, 0, compression.MessageCount())
	for bi := range compression.Buckets {
		for mi := range compression.Buckets[bi].Messages {
			msg := &compression.Buckets[bi].Messages[mi]
			ids = append(ids, msg.ID)
			texts = append(texts, msg.Cleaned)
		}
	}

	liveIdx := make([]int, 0, len(texts))
	liveTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		if text != "" {
			liveIdx = append(liveIdx, i)
			liveTexts = append(liveTexts, text)
		}
	}

	vectors := make([][]float32, len(texts))
	dims := backend.Dimensions()
	for start := 0; start < len(liveTexts); start += e.opts.BatchSize {
		end := start + e.opts.BatchSize
		if end > len(liveTexts) {
			end = len(liveTexts)
		}
		batch, err := e.embedBatch(ctx, chain, liveTexts[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range batch {
			if dims == 0 {
				dims = len(vec)
			}
			if len(vec) != dims {
				return nil, fmt.Errorf("mixed vector dimensionality: got %d, want %d", len(vec), dims)
			}
			vectors[liveIdx[start+j]] = vec
		}
	}

	result := &model.EmbeddingResult{
		Model:      backend.ModelName(),
		Provider:   name,
		Dimensions: dims,
		Embeddings: make([]model.MessageEmbedding, len(ids)),
	}
	for i, id := range ids {
		if vectors[i] == nil {
			result.Embeddings[i] = model.MessageEmbedding{
				MessageID:   id,
				Vector:      make([]float32, dims),
				Placeholder: true,
			}
			continue
		}
		result.Embeddings[i] = model.MessageEmbedding{MessageID: id, Vector: vectors[i]}
	}

	if err := checkCoverage(compression, result); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("embedding complete",
		zap.String("provider", name),
		zap.String("model", backend.ModelName()),
		zap.Int("messages", len(result.Embeddings)),
		zap.Int("dimensions", dims),
	)
	return result, nil
}

// fallbackChain wraps the probed backend together with the entries
// behind it in preference order. A backend that answered the probe can
// still go dark mid-run; batches then fall through to the next entry
// instead of sinking the whole stage.
func (e *Embedder) fallbackChain(backend ai.IEmbedder, name string) ai.IEmbedder {
	for i := range e.entries {
		if e.entries[i].Name != name {
			continue
		}
		if group := ai.NewGroupEmbedder(e.entries[i:]); group != nil {
			return group
		}
		break
	}
	return backend
}

// embedBatch tries the batch whole; on resource exhaustion it retries
// once at half size before surfacing the failure to the orchestrator.
func (e *Embedder) embedBatch(ctx context.Context, backend ai.IEmbedder, texts []string) ([][]float32, error) {
	vecs, err := backend.EmbedBatch(ctx, texts)
	if err == nil {
		return vecs, nil
	}
	if !errs.IsResourceExhausted(err) || len(texts) < 2 {
		return nil, err
	}
	logutil.GetLogger(ctx).Warn("batch failed, retrying at half size",
		zap.Int("batch", len(texts)), zap.Error(err))
	mid := len(texts) / 2
	out := make([][]float32, 0, len(texts))
	for _, half := range [][]string{texts[:mid], texts[mid:]} {
		vecs, err := backend.EmbedBatch(ctx, half)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func checkCoverage(compression *model.CompressionResult, result *model.EmbeddingResult) error {
	if len(result.Embeddings) != compression.MessageCount() {
		return fmt.Errorf("%w: %d embeddings for %d messages",
			errs.ErrCoverageMismatch, len(result.Embeddings), compression.MessageCount())
	}
	ids := result.IDSet()
	for bi := range compression.Buckets {
		for mi := range compression.Buckets[bi].Messages {
			if _, ok := ids[compression.Buckets[bi].Messages[mi].ID]; !ok {
				return fmt.Errorf("%w: message %s has no embedding",
					errs.ErrCoverageMismatch, compression.Buckets[bi].Messages[mi].ID)
			}
		}
	}
	return nil
}
