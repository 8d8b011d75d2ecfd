package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/chatwrapped/internal/ai"
	"github.com/xxxsen/chatwrapped/internal/analyze"
	"github.com/xxxsen/chatwrapped/internal/artifact"
	"github.com/xxxsen/chatwrapped/internal/compress"
	"github.com/xxxsen/chatwrapped/internal/config"
	"github.com/xxxsen/chatwrapped/internal/embed"
	"github.com/xxxsen/chatwrapped/internal/embedcache"
	"github.com/xxxsen/chatwrapped/internal/export"
	"github.com/xxxsen/chatwrapped/internal/insight"
	"github.com/xxxsen/chatwrapped/internal/model"
	"github.com/xxxsen/chatwrapped/internal/pkg/errs"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Run states. Compression is the only mandatory stage, so only a
// compression (or extraction) failure moves a run to StateFailed;
// embedding and analysis failures degrade the run and it continues.
type State string

const (
	StateCreated     State = "created"
	StateCompressing State = "compressing"
	StateEmbedding   State = "embedding"
	StateAnalyzing   State = "analyzing"
	StateExtracting  State = "extracting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// RunStatus is persisted per run so a later process can tell what
// happened without replaying logs.
type RunStatus struct {
	RunID      string    `json:"run_id"`
	State      State     `json:"state"`
	Degraded   []string  `json:"degraded,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Result is the in-memory outcome of one run.
type Result struct {
	RunID    string
	State    State
	Degraded []string
	Insights []model.InsightRecord
}

// Pipeline wires the stages together over one artifact store. It is
// safe to create once and reuse across runs.
type Pipeline struct {
	cfg   *config.Config
	store artifact.Store
}

func New(cfg *config.Config) (*Pipeline, error) {
	store, err := artifact.New("local", map[string]interface{}{"dir": cfg.Artifact.Dir})
	if err != nil {
		return nil, fmt.Errorf("init artifact store: %w", err)
	}
	if cfg.Artifact.Mirror.Type != "" {
		mirror, err := artifact.New(cfg.Artifact.Mirror.Type, cfg.Artifact.Mirror.Data)
		if err != nil {
			return nil, fmt.Errorf("init artifact mirror: %w", err)
		}
		store = artifact.NewMirrored(store, mirror)
	}
	return &Pipeline{cfg: cfg, store: store}, nil
}

// Store exposes the underlying artifact store for listing and cleanup.
func (p *Pipeline) Store() artifact.Store {
	return p.store
}

// Run executes the full pipeline on one archive file. An empty runID
// allocates a fresh one; passing an existing id overwrites that run's
// artifacts stage by stage.
func (p *Pipeline) Run(ctx context.Context, archivePath, runID string) (*Result, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := logutil.GetLogger(ctx).With(zap.String("run_id", runID))
	status := &RunStatus{RunID: runID, State: StateCreated, StartedAt: time.Now().UTC()}
	result := &Result{RunID: runID, State: StateCreated}

	fail := func(err error) (*Result, error) {
		status.State = StateFailed
		status.Error = err.Error()
		status.FinishedAt = time.Now().UTC()
		result.State = StateFailed
		if serr := p.store.SaveJSON(ctx, artifact.StatusKey(runID), status); serr != nil {
			logger.Error("persist run status failed", zap.Error(serr))
		}
		return result, err
	}
	degrade := func(stage string, err error) {
		logger.Warn("stage degraded, continuing without it",
			zap.String("stage", stage), zap.Error(err))
		status.Degraded = append(status.Degraded, stage)
		result.Degraded = append(result.Degraded, stage)
	}

	status.State = StateCompressing
	result.State = StateCompressing
	compression, err := p.RunCompress(ctx, archivePath, runID)
	if err != nil {
		return fail(stageErr("compress", err))
	}

	var embeddings *model.EmbeddingResult
	if p.cfg.Embed.Enabled {
		status.State = StateEmbedding
		result.State = StateEmbedding
		embeddings, err = p.runEmbedStage(ctx, runID, compression)
		if err != nil {
			degrade("embed", stageErr("embed", err))
			embeddings = nil
		}
	}

	var analysis *model.AnalysisResult
	if p.cfg.Analyze.Enabled && embeddings != nil {
		status.State = StateAnalyzing
		result.State = StateAnalyzing
		analysis, err = p.runAnalyzeStage(ctx, runID, compression, embeddings)
		if err != nil {
			degrade("analyze", stageErr("analyze", err))
			analysis = nil
		}
	}

	status.State = StateExtracting
	result.State = StateExtracting
	insights, err := p.runExtractStage(ctx, runID, compression, embeddings, analysis)
	if err != nil {
		return fail(stageErr("extract", err))
	}

	status.State = StateDone
	status.FinishedAt = time.Now().UTC()
	result.State = StateDone
	result.Insights = insights
	if err := p.store.SaveJSON(ctx, artifact.StatusKey(runID), status); err != nil {
		logger.Error("persist run status failed", zap.Error(err))
	}
	logger.Info("run complete",
		zap.Int("insights", len(insights)),
		zap.Strings("degraded", status.Degraded),
	)
	return result, nil
}

// RunCompress parses and compresses one archive, persisting the
// compression artifact and the standalone analytics document.
func (p *Pipeline) RunCompress(ctx context.Context, archivePath, runID string) (*model.CompressionResult, error) {
	ctx, cancel := stageContext(ctx, p.cfg.Timeouts.CompressSec)
	defer cancel()

	archive, err := export.ParseFile(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	compressor := compress.New(compress.Options{
		IdleThresholdMin: p.cfg.Compress.IdleThresholdMin,
		TailPaddingMin:   p.cfg.Compress.TailPaddingMin,
		Cost:             costModel(p.cfg.Compress.Cost),
	})
	compression, err := compressor.Compress(ctx, archive)
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveJSON(ctx, artifact.CompressedKey(runID), compression); err != nil {
		return nil, err
	}
	if err := p.store.SaveJSON(ctx, artifact.AnalyticsKey(runID), compression.Analytics); err != nil {
		return nil, err
	}
	return compression, nil
}

// RunEmbed loads the run's compression artifact and executes the
// embedding stage against it. Used by the standalone subcommand.
func (p *Pipeline) RunEmbed(ctx context.Context, runID string) (*model.EmbeddingResult, error) {
	compression := &model.CompressionResult{}
	if err := p.store.LoadJSON(ctx, artifact.CompressedKey(runID), compression); err != nil {
		return nil, err
	}
	return p.runEmbedStage(ctx, runID, compression)
}

func (p *Pipeline) runEmbedStage(ctx context.Context, runID string, compression *model.CompressionResult) (*model.EmbeddingResult, error) {
	ctx, cancel := stageContext(ctx, p.cfg.Timeouts.EmbedSec)
	defer cancel()

	entries, err := p.buildEmbedders()
	if err != nil {
		return nil, err
	}
	embedder := embed.New(entries, embed.Options{BatchSize: p.cfg.Embed.BatchSize})
	embeddings, err := embedder.Embed(ctx, compression)
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveJSON(ctx, artifact.EmbeddingsKey(runID), embeddings); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// RunAnalyze loads the compression and embedding artifacts and executes
// the analysis stage. Used by the standalone subcommand.
func (p *Pipeline) RunAnalyze(ctx context.Context, runID string) (*model.AnalysisResult, error) {
	compression := &model.CompressionResult{}
	if err := p.store.LoadJSON(ctx, artifact.CompressedKey(runID), compression); err != nil {
		return nil, err
	}
	embeddings := &model.EmbeddingResult{}
	if err := p.store.LoadJSON(ctx, artifact.EmbeddingsKey(runID), embeddings); err != nil {
		return nil, err
	}
	return p.runAnalyzeStage(ctx, runID, compression, embeddings)
}

func (p *Pipeline) runAnalyzeStage(ctx context.Context, runID string, compression *model.CompressionResult, embeddings *model.EmbeddingResult) (*model.AnalysisResult, error) {
	ctx, cancel := stageContext(ctx, p.cfg.Timeouts.AnalyzeSec)
	defer cancel()

	labeler, err := p.buildLabeler()
	if err != nil {
		return nil, err
	}
	analyzer := analyze.New(analyze.Options{
		Threshold: p.cfg.Analyze.Threshold,
		Workers:   p.cfg.Analyze.Workers,
		Neighbors: p.cfg.Analyze.Neighbors,
		Window:    p.cfg.Analyze.Window,
		Labeler:   labeler,
	})
	analysis, err := analyzer.Analyze(ctx, compression, embeddings)
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveJSON(ctx, artifact.AnalysisKey(runID), analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}

// RunExtract loads whatever artifacts the run has and produces the
// insight records; absent optional artifacts yield placeholder slides.
func (p *Pipeline) RunExtract(ctx context.Context, runID string) ([]model.InsightRecord, error) {
	compression := &model.CompressionResult{}
	if err := p.store.LoadJSON(ctx, artifact.CompressedKey(runID), compression); err != nil {
		return nil, err
	}
	embeddings := &model.EmbeddingResult{}
	if err := p.store.LoadJSON(ctx, artifact.EmbeddingsKey(runID), embeddings); err != nil {
		embeddings = nil
	}
	analysis := &model.AnalysisResult{}
	if err := p.store.LoadJSON(ctx, artifact.AnalysisKey(runID), analysis); err != nil {
		analysis = nil
	}
	return p.runExtractStage(ctx, runID, compression, embeddings, analysis)
}

func (p *Pipeline) runExtractStage(ctx context.Context, runID string, compression *model.CompressionResult, embeddings *model.EmbeddingResult, analysis *model.AnalysisResult) ([]model.InsightRecord, error) {
	ctx, cancel := stageContext(ctx, p.cfg.Timeouts.ExtractSec)
	defer cancel()

	insights := insight.Extract(compression, embeddings, analysis)
	if err := p.store.SaveJSON(ctx, artifact.InsightsKey(runID), insights); err != nil {
		return nil, err
	}
	for i := range insights {
		key := artifact.InsightKey(runID, insights[i].Slide)
		if err := p.store.SaveJSON(ctx, key, insights[i]); err != nil {
			return nil, err
		}
	}
	return insights, nil
}

func (p *Pipeline) buildEmbedders() ([]ai.EmbedderEntry, error) {
	cacheTTL := time.Duration(p.cfg.Embed.Cache.TTLSeconds) * time.Second
	entries := make([]ai.EmbedderEntry, 0, len(p.cfg.Embed.Providers))
	for _, pc := range p.cfg.Embed.Providers {
		backend, err := ai.NewEmbedder(pc.Name, ai.EmbedArgs{
			Model:      pc.Model,
			Dimensions: pc.Dimensions,
			Data:       pc.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("init embedder %s: %w", pc.Name, err)
		}
		backend = embedcache.WrapLruCacheToEmbedder(backend, p.cfg.Embed.Cache.Size, cacheTTL)
		entries = append(entries, ai.EmbedderEntry{Name: pc.Name, Embedder: backend})
	}
	return entries, nil
}

func (p *Pipeline) buildLabeler() (analyze.Labeler, error) {
	lc := p.cfg.Analyze.Labeler
	if lc.Type == "gen" {
		gen, err := ai.NewGenerator(lc.Provider, lc.Model, lc.Data)
		if err != nil {
			return nil, fmt.Errorf("init labeler generator: %w", err)
		}
		return analyze.NewGenLabeler(gen), nil
	}
	return analyze.NewLabeler(lc.Type, lc.Data)
}

// stageErr maps a deadline hit to the stage timeout sentinel so callers
// can tell budget exhaustion apart from stage logic failures.
func stageErr(stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", errs.ErrStageTimeout, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

func stageContext(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	if seconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

func costModel(cc *config.CostConfig) *compress.CostModel {
	if cc == nil {
		return nil
	}
	return &compress.CostModel{
		GPUPerHour:         cc.GPUPerHour,
		ElectricityPerHour: cc.ElectricityPerHour,
		DevelopmentPerHour: cc.DevelopmentPerHour,
	}
}
