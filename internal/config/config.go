package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	LogConfig logger.LogConfig `json:"log_config"`
	Artifact  ArtifactConfig   `json:"artifact"`
	Compress  CompressConfig   `json:"compress"`
	Embed     EmbedConfig      `json:"embed"`
	Analyze   AnalyzeConfig    `json:"analyze"`
	Timeouts  TimeoutConfig    `json:"timeouts"`
	Retention RetentionConfig  `json:"retention"`
}

type ArtifactConfig struct {
	Dir    string       `json:"dir"`
	Mirror MirrorConfig `json:"mirror"`
}

// MirrorConfig optionally duplicates every saved artifact to a second
// store backend, selected by registered type name. An empty type
// disables mirroring.
type MirrorConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type CostConfig struct {
	GPUPerHour         float64 `json:"gpu_per_hour"`
	ElectricityPerHour float64 `json:"electricity_per_hour"`
	DevelopmentPerHour float64 `json:"development_per_hour"`
}

type CompressConfig struct {
	IdleThresholdMin int         `json:"idle_threshold_min"`
	TailPaddingMin   int         `json:"tail_padding_min"`
	Cost             *CostConfig `json:"cost"`
}

// ProviderConfig names one embedding backend. Entries are tried in
// declaration order, so put the preferred backend first and a fallback
// such as the local feature-hash embedder last.
type ProviderConfig struct {
	Name       string      `json:"name"`
	Model      string      `json:"model"`
	Dimensions int         `json:"dimensions"`
	Data       interface{} `json:"data"`
}

type CacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

type EmbedConfig struct {
	Enabled   bool             `json:"enabled"`
	Providers []ProviderConfig `json:"providers"`
	BatchSize int              `json:"batch_size"`
	Cache     CacheConfig      `json:"cache"`
}

type LabelerConfig struct {
	Type     string      `json:"type"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AnalyzeConfig struct {
	Enabled   bool          `json:"enabled"`
	Threshold float64       `json:"threshold"`
	Workers   int           `json:"workers"`
	Neighbors int           `json:"neighbors"`
	Window    int           `json:"window"`
	Labeler   LabelerConfig `json:"labeler"`
}

// TimeoutConfig holds per-stage wall clock budgets in seconds. Zero
// means no budget for compression and the stage default for the rest.
type TimeoutConfig struct {
	CompressSec int `json:"compress_sec"`
	EmbedSec    int `json:"embed_sec"`
	AnalyzeSec  int `json:"analyze_sec"`
	ExtractSec  int `json:"extract_sec"`
}

type RetentionConfig struct {
	Enabled  bool   `json:"enabled"`
	CronSpec string `json:"cron_spec"`
	KeepDays int    `json:"keep_days"`
	MaxRuns  int    `json:"max_runs"`
}

// Load reads the JSON config from path, applies defaults and validates
// cross-field constraints. The zero config (everything optional off) is
// the fast path: compress and extract only, no embeddings.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Artifact.Dir == "" {
		return fmt.Errorf("artifact.dir is required")
	}
	if c.Embed.Enabled && len(c.Embed.Providers) == 0 {
		return fmt.Errorf("embed.providers is required when embed is enabled")
	}
	if c.Embed.Cache.Size < 0 || c.Embed.Cache.TTLSeconds < 0 {
		return fmt.Errorf("embed.cache values must not be negative")
	}
	if c.Embed.Cache.Size == 0 {
		c.Embed.Cache.Size = 4096
	}
	if c.Embed.Cache.TTLSeconds == 0 {
		c.Embed.Cache.TTLSeconds = 3600
	}
	if c.Analyze.Enabled && !c.Embed.Enabled {
		return fmt.Errorf("analyze requires embed to be enabled")
	}
	if c.Analyze.Labeler.Type == "" {
		c.Analyze.Labeler.Type = "keyword"
	}
	// Compression deliberately has no default budget: it is the one
	// mandatory stage and is bounded by input size alone.
	if c.Timeouts.EmbedSec == 0 {
		c.Timeouts.EmbedSec = 1800
	}
	if c.Timeouts.AnalyzeSec == 0 {
		c.Timeouts.AnalyzeSec = 900
	}
	if c.Timeouts.ExtractSec == 0 {
		c.Timeouts.ExtractSec = 60
	}
	if c.Retention.Enabled {
		if c.Retention.CronSpec == "" {
			c.Retention.CronSpec = "0 3 * * *"
		}
		if c.Retention.KeepDays == 0 && c.Retention.MaxRuns == 0 {
			c.Retention.KeepDays = 30
		}
	}
	return nil
}
