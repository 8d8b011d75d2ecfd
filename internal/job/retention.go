package job

import (
	"context"
	"sort"
	"time"

	"github.com/xxxsen/chatwrapped/internal/artifact"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// RetentionJob expires old pipeline runs from the artifact store. Runs
// are dropped when older than keepDays, then trimmed to maxRuns newest
// by modification time. A zero value disables the matching rule.
type RetentionJob struct {
	store    artifact.Store
	keepDays int
	maxRuns  int
	now      func() time.Time
}

func NewRetentionJob(store artifact.Store, keepDays, maxRuns int) *RetentionJob {
	return &RetentionJob{store: store, keepDays: keepDays, maxRuns: maxRuns, now: time.Now}
}

func (j *RetentionJob) Name() string {
	return "artifact-retention"
}

func (j *RetentionJob) Run(ctx context.Context) error {
	runs, err := j.store.ListRuns(ctx)
	if err != nil {
		return err
	}

	expired := map[string]struct{}{}
	if j.keepDays > 0 {
		cutoff := j.now().Add(-time.Duration(j.keepDays) * 24 * time.Hour)
		for _, run := range runs {
			if run.ModTime.Before(cutoff) {
				expired[run.ID] = struct{}{}
			}
		}
	}
	if j.maxRuns > 0 {
		kept := make([]artifact.RunInfo, 0, len(runs))
		for _, run := range runs {
			if _, ok := expired[run.ID]; !ok {
				kept = append(kept, run)
			}
		}
		sort.Slice(kept, func(a, b int) bool { return kept[a].ModTime.After(kept[b].ModTime) })
		for _, run := range kept[min(j.maxRuns, len(kept)):] {
			expired[run.ID] = struct{}{}
		}
	}

	ids := make([]string, 0, len(expired))
	for id := range expired {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := j.store.DeleteRun(ctx, id); err != nil {
			logutil.GetLogger(ctx).Error("delete expired run failed",
				zap.String("run_id", id), zap.Error(err))
			continue
		}
		logutil.GetLogger(ctx).Info("expired run deleted", zap.String("run_id", id))
	}
	return nil
}
