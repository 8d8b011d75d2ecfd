package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/chatwrapped/internal/analyze"
	"github.com/xxxsen/chatwrapped/internal/artifact"
	"github.com/xxxsen/chatwrapped/internal/config"
	"github.com/xxxsen/chatwrapped/internal/model"
	"github.com/xxxsen/chatwrapped/internal/pkg/errs"
)

func writeArchive(t *testing.T) string {
	t.Helper()
	base := time.Date(2025, time.June, 10, 21, 0, 0, 0, time.UTC).Unix()
	archive := fmt.Sprintf(`[
		{"id":"conv-a","title":"docker help","messages":[
			{"id":"m1","role":"user","content":"my docker compose network keeps failing","timestamp":%d},
			{"id":"m2","role":"assistant","content":"check the bridge network configuration first","timestamp":%d},
			{"id":"m3","role":"user","content":"that fixed it, thanks","timestamp":%d}
		]},
		{"id":"conv-b","title":"baking","messages":[
			{"id":"m1","role":"user","content":"how often should i feed a sourdough starter","timestamp":%d},
			{"id":"m2","role":"assistant","content":"roughly every twelve hours at room temperature","timestamp":%d}
		]}
	]`, base, base+120, base+300, base-35*86400, base-35*86400+60)
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(archive), 0o644))
	return path
}

func fastConfig(dir string) *config.Config {
	return &config.Config{Artifact: config.ArtifactConfig{Dir: dir}}
}

func fullConfig(dir string) *config.Config {
	cfg := fastConfig(dir)
	cfg.Embed = config.EmbedConfig{
		Enabled:   true,
		Providers: []config.ProviderConfig{{Name: "local", Dimensions: 64}},
		Cache:     config.CacheConfig{Size: 128, TTLSeconds: 60},
	}
	cfg.Analyze = config.AnalyzeConfig{Enabled: true}
	return cfg
}

func TestRunFastPath(t *testing.T) {
	dir := t.TempDir()
	p, err := New(fastConfig(dir))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), writeArchive(t), "")
	require.NoError(t, err)
	require.Equal(t, StateDone, result.State)
	require.Empty(t, result.Degraded)
	require.NotEmpty(t, result.RunID)
	require.Len(t, result.Insights, 11)

	// Optional stages were off, so topic slides are placeholders.
	for _, rec := range result.Insights {
		switch rec.Slide {
		case model.SlideTopTopics, model.SlideHardestQuestion, model.SlideEasiestQuestion:
			require.True(t, rec.Placeholder, "slide %d", rec.Slide)
		case model.SlideTotalHours, model.SlideLongestConversation:
			require.False(t, rec.Placeholder, "slide %d", rec.Slide)
		}
	}

	var status RunStatus
	require.NoError(t, p.Store().LoadJSON(context.Background(), artifact.StatusKey(result.RunID), &status))
	require.Equal(t, StateDone, status.State)
	require.Empty(t, status.Error)
}

func TestRunFullPath(t *testing.T) {
	dir := t.TempDir()
	p, err := New(fullConfig(dir))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), writeArchive(t), "run-full")
	require.NoError(t, err)
	require.Equal(t, StateDone, result.State)
	require.Empty(t, result.Degraded)
	require.Equal(t, "run-full", result.RunID)

	ctx := context.Background()
	compression := &model.CompressionResult{}
	require.NoError(t, p.Store().LoadJSON(ctx, artifact.CompressedKey("run-full"), compression))
	require.Equal(t, 5, compression.MessageCount())
	require.Equal(t, 2, compression.Analytics.TotalConversations)

	embeddings := &model.EmbeddingResult{}
	require.NoError(t, p.Store().LoadJSON(ctx, artifact.EmbeddingsKey("run-full"), embeddings))
	require.Equal(t, "local", embeddings.Provider)
	require.Len(t, embeddings.Embeddings, 5)

	analysis := &model.AnalysisResult{}
	require.NoError(t, p.Store().LoadJSON(ctx, artifact.AnalysisKey("run-full"), analysis))
	require.NotEmpty(t, analysis.Segments)
	require.NotNil(t, analysis.Hardest)
	require.NotNil(t, analysis.Easiest)

	// Per-slide artifacts exist alongside the combined document.
	for slide := model.SlideIntro; slide <= model.SlideOutro; slide++ {
		var rec model.InsightRecord
		require.NoError(t, p.Store().LoadJSON(ctx, artifact.InsightKey("run-full", slide), &rec))
		require.Equal(t, slide, rec.Slide)
	}
}

// stallLabeler blocks until the stage budget runs out, standing in for
// a labeler backend that stops answering.
type stallLabeler struct{}

func (stallLabeler) Label(ctx context.Context, _ []*model.CompressedMessage) string {
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
	}
	return "stalled"
}

func init() {
	analyze.RegisterLabeler("stall", func(_ interface{}) (analyze.Labeler, error) {
		return stallLabeler{}, nil
	})
}

func TestRunAnalyzeBudgetDegrades(t *testing.T) {
	dir := t.TempDir()
	cfg := fullConfig(dir)
	cfg.Analyze.Labeler.Type = "stall"
	cfg.Timeouts.AnalyzeSec = 1
	p, err := New(cfg)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), writeArchive(t), "run-budget")
	require.NoError(t, err)
	require.Equal(t, StateDone, result.State)
	require.Contains(t, result.Degraded, "analyze")
	require.Len(t, result.Insights, 11)
	for _, rec := range result.Insights {
		if rec.Slide == model.SlideTopTopics {
			require.True(t, rec.Placeholder)
		}
	}

	ctx := context.Background()

	// The interrupted stage must leave no truncated artifact behind.
	analysis := &model.AnalysisResult{}
	err = p.Store().LoadJSON(ctx, artifact.AnalysisKey("run-budget"), analysis)
	require.ErrorIs(t, err, errs.ErrArtifactNotFound)

	var status RunStatus
	require.NoError(t, p.Store().LoadJSON(ctx, artifact.StatusKey("run-budget"), &status))
	require.Equal(t, StateDone, status.State)
	require.Contains(t, status.Degraded, "analyze")
}

func TestRunIdempotentOverwrite(t *testing.T) {
	dir := t.TempDir()
	p, err := New(fastConfig(dir))
	require.NoError(t, err)
	archivePath := writeArchive(t)

	first, err := p.Run(context.Background(), archivePath, "run-x")
	require.NoError(t, err)
	second, err := p.Run(context.Background(), archivePath, "run-x")
	require.NoError(t, err)

	require.Equal(t, first.Insights, second.Insights)
	runs, err := p.Store().ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestRunFailsOnMissingArchive(t *testing.T) {
	dir := t.TempDir()
	p, err := New(fastConfig(dir))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), filepath.Join(dir, "missing.json"), "run-bad")
	require.Error(t, err)
	require.Equal(t, StateFailed, result.State)

	var status RunStatus
	require.NoError(t, p.Store().LoadJSON(context.Background(), artifact.StatusKey("run-bad"), &status))
	require.Equal(t, StateFailed, status.State)
	require.NotEmpty(t, status.Error)
}

func TestStandaloneStages(t *testing.T) {
	dir := t.TempDir()
	p, err := New(fullConfig(dir))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.RunCompress(ctx, writeArchive(t), "run-s")
	require.NoError(t, err)

	embeddings, err := p.RunEmbed(ctx, "run-s")
	require.NoError(t, err)
	require.Len(t, embeddings.Embeddings, 5)

	analysis, err := p.RunAnalyze(ctx, "run-s")
	require.NoError(t, err)
	require.NotEmpty(t, analysis.Segments)

	insights, err := p.RunExtract(ctx, "run-s")
	require.NoError(t, err)
	require.Len(t, insights, 11)
	for _, rec := range insights {
		if rec.Slide == model.SlideTopTopics {
			require.False(t, rec.Placeholder)
		}
	}
}

func TestStandaloneEmbedWithoutCompression(t *testing.T) {
	dir := t.TempDir()
	p, err := New(fullConfig(dir))
	require.NoError(t, err)

	_, err = p.RunEmbed(context.Background(), "never-ran")
	require.Error(t, err)
}
