package artifact

import (
	"fmt"
	"path"
)

// Stage artifact file names under runs/<run-id>/.
const (
	FileCompressed = "compressed.json"
	FileAnalytics  = "analytics.json"
	FileEmbeddings = "embeddings.json"
	FileAnalysis   = "analysis.json"
	FileInsights   = "insights.json"
	FileStatus     = "status.json"
)

func runKey(runID, name string) string {
	return path.Join("runs", runID, name)
}

func CompressedKey(runID string) string { return runKey(runID, FileCompressed) }
func AnalyticsKey(runID string) string  { return runKey(runID, FileAnalytics) }
func EmbeddingsKey(runID string) string { return runKey(runID, FileEmbeddings) }
func AnalysisKey(runID string) string   { return runKey(runID, FileAnalysis) }
func InsightsKey(runID string) string   { return runKey(runID, FileInsights) }
func StatusKey(runID string) string     { return runKey(runID, FileStatus) }

// InsightKey addresses the standalone copy of a single slide record.
// Slide indices start at -1, so the intro lives at insights/-1.json.
func InsightKey(runID string, slide int) string {
	return runKey(runID, path.Join("insights", fmt.Sprintf("%d.json", slide)))
}
