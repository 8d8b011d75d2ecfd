package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/chatwrapped/internal/pkg/errs"
	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey string `json:"api_key"`
}

type geminiEmbedder struct {
	apiKey     string
	model      string
	dimensions int
}

func (p *geminiEmbedder) ModelName() string {
	return p.model
}

func (p *geminiEmbedder) Dimensions() int {
	return p.dimensions
}

func (p *geminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if p.apiKey == "" {
		return nil, errs.ErrProviderUnavailable
	}
	if len(texts) == 0 {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	dims := int32(p.dimensions)
	resp, err := client.Models.EmbedContent(ctx, p.model, contents, &genai.EmbedContentConfig{
		TaskType:             "CLUSTERING",
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, classifyEmbedError(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding values returned for item %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

// classifyEmbedError maps quota/memory style failures onto the sentinel
// the embed stage keys its halve-and-retry policy on.
func classifyEmbedError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "quota", "resource", "exhausted", "overloaded", "too large"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", errs.ErrResourceExhausted, err)
		}
	}
	return err
}

type geminiGenerator struct {
	apiKey string
	model  string
}

func (p *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if p.apiKey == "" {
		return "", errs.ErrProviderUnavailable
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(
		ctx,
		p.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		nil,
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

func createGeminiEmbedder(args EmbedArgs) (IEmbedder, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args.Data, cfg); err != nil {
		return nil, err
	}
	if args.Model == "" {
		return nil, fmt.Errorf("gemini embed model is required")
	}
	return &geminiEmbedder{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      args.Model,
		dimensions: args.Dimensions,
	}, nil
}

func createGeminiGenerator(model string, data interface{}) (IGenerator, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(data, cfg); err != nil {
		return nil, err
	}
	if model == "" {
		return nil, fmt.Errorf("gemini generator model is required")
	}
	return &geminiGenerator{apiKey: strings.TrimSpace(cfg.APIKey), model: model}, nil
}

func init() {
	RegisterEmbed("gemini", createGeminiEmbedder)
	RegisterGen("gemini", createGeminiGenerator)
}
