package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Store persists per-run pipeline artifacts as JSON documents. Keys are
// slash-separated paths relative to the store root, e.g.
// runs/<run-id>/compressed.json. Saving an existing key overwrites it,
// so re-running a stage for the same run id is idempotent.
type Store interface {
	SaveJSON(ctx context.Context, key string, v interface{}) error
	LoadJSON(ctx context.Context, key string, dst interface{}) error
	ListRuns(ctx context.Context) ([]RunInfo, error)
	DeleteRun(ctx context.Context, runID string) error
}

// RunInfo describes one persisted run for listing and retention.
type RunInfo struct {
	ID      string
	ModTime time.Time
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

// New builds a store from its registered type name and opaque config
// payload, the same way providers are selected elsewhere.
func New(typ string, args interface{}) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" {
		return nil, fmt.Errorf("artifact store type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported artifact store type: %s", typ)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
