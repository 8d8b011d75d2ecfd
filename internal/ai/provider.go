package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// IEmbedder turns a batch of texts into unit-normalized vectors of a
// fixed dimensionality. Implementations behind different backends must
// keep the same output shape so downstream thresholds stay valid.
type IEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimensions() int
}

// IGenerator produces free-form text for best-effort capabilities such
// as topic labeling.
type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedArgs is the common constructor input for embedder factories.
type EmbedArgs struct {
	Model      string
	Dimensions int
	Data       interface{}
}

type EmbedFactory func(args EmbedArgs) (IEmbedder, error)

type GenFactory func(model string, data interface{}) (IGenerator, error)

var (
	embedRegistry = map[string]EmbedFactory{}
	genRegistry   = map[string]GenFactory{}
)

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func RegisterGen(name string, factory GenFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	genRegistry[key] = factory
}

func NewEmbedder(name string, args EmbedArgs) (IEmbedder, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embed provider: %s", name)
	}
	return factory(args)
}

func NewGenerator(name string, model string, data interface{}) (IGenerator, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := genRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported generator provider: %s", name)
	}
	return factory(model, data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
