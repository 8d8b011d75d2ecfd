package analyze

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xxxsen/chatwrapped/internal/ai"
	"github.com/xxxsen/chatwrapped/internal/model"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Labeler assigns a representative label to one topic segment. The only
// contract is a non-empty string; the strategy is pluggable.
type Labeler interface {
	Label(ctx context.Context, msgs []*model.CompressedMessage) string
}

type LabelerFactory func(args interface{}) (Labeler, error)

var labelerRegistry = map[string]LabelerFactory{}

func RegisterLabeler(name string, factory LabelerFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	labelerRegistry[key] = factory
}

func NewLabeler(name string, args interface{}) (Labeler, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "keyword"
	}
	factory := labelerRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported labeler: %s", name)
	}
	return factory(args)
}

// keywordLabeler joins the most frequent cleaned tokens of the segment.
// Cleaned text is already stopword-free, so plain frequency works.
type keywordLabeler struct {
	maxWords int
}

func (l *keywordLabeler) Label(_ context.Context, msgs []*model.CompressedMessage) string {
	freq := map[string]int{}
	order := map[string]int{}
	next := 0
	for _, msg := range msgs {
		for _, tok := range strings.Fields(msg.Cleaned) {
			if _, ok := order[tok]; !ok {
				order[tok] = next
				next++
			}
			freq[tok]++
		}
	}
	if len(freq) == 0 {
		return "general chat"
	}
	tokens := make([]string, 0, len(freq))
	for tok := range freq {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if freq[tokens[i]] != freq[tokens[j]] {
			return freq[tokens[i]] > freq[tokens[j]]
		}
		return order[tokens[i]] < order[tokens[j]]
	})
	if len(tokens) > l.maxWords {
		tokens = tokens[:l.maxWords]
	}
	return strings.Join(tokens, " ")
}

// genLabeler asks a text generator for a short label and falls back to
// the keyword labeler on any failure, keeping the non-empty contract.
type genLabeler struct {
	gen      ai.IGenerator
	fallback Labeler
}

func (l *genLabeler) Label(ctx context.Context, msgs []*model.CompressedMessage) string {
	var sb strings.Builder
	for _, msg := range msgs {
		if msg.Role != model.RoleUser || msg.Cleaned == "" {
			continue
		}
		sb.WriteString(msg.Cleaned)
		sb.WriteByte('\n')
		if sb.Len() > 2000 {
			break
		}
	}
	if sb.Len() == 0 {
		return l.fallback.Label(ctx, msgs)
	}
	prompt := fmt.Sprintf(`Give a 2-4 word topic label for this chat excerpt.
Output ONLY the label, no punctuation.

EXCERPT:
%s`, sb.String())
	label, err := l.gen.Generate(ctx, prompt)
	if err != nil || strings.TrimSpace(label) == "" {
		logutil.GetLogger(ctx).Warn("generator labeler failed, using keyword fallback", zap.Error(err))
		return l.fallback.Label(ctx, msgs)
	}
	return strings.TrimSpace(label)
}

// NewGenLabeler wraps a generator as a labeler.
func NewGenLabeler(gen ai.IGenerator) Labeler {
	return &genLabeler{gen: gen, fallback: &keywordLabeler{maxWords: 3}}
}

func init() {
	RegisterLabeler("keyword", func(_ interface{}) (Labeler, error) {
		return &keywordLabeler{maxWords: 3}, nil
	})
}
