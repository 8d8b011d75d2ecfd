package artifact

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type mirroredStore struct {
	primary Store
	mirror  Store
}

// NewMirrored writes every artifact to both stores but treats the
// mirror as best effort: a mirror failure is logged and never fails the
// save. Reads, listing and deletion go to the primary only.
func NewMirrored(primary, mirror Store) Store {
	if mirror == nil {
		return primary
	}
	return &mirroredStore{primary: primary, mirror: mirror}
}

func (m *mirroredStore) SaveJSON(ctx context.Context, key string, v interface{}) error {
	if err := m.primary.SaveJSON(ctx, key, v); err != nil {
		return err
	}
	if err := m.mirror.SaveJSON(ctx, key, v); err != nil {
		logutil.GetLogger(ctx).Warn("artifact mirror save failed",
			zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (m *mirroredStore) LoadJSON(ctx context.Context, key string, dst interface{}) error {
	return m.primary.LoadJSON(ctx, key, dst)
}

func (m *mirroredStore) ListRuns(ctx context.Context) ([]RunInfo, error) {
	return m.primary.ListRuns(ctx)
}

func (m *mirroredStore) DeleteRun(ctx context.Context, runID string) error {
	return m.primary.DeleteRun(ctx, runID)
}
