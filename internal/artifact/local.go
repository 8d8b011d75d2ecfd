package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xxxsen/chatwrapped/internal/pkg/errs"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	dir string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	return &localStore{dir: config.Dir}, nil
}

// SaveJSON writes through a temp file and renames it into place, so a
// reader never observes a half-written artifact and overwrites are
// atomic on the same filesystem.
func (s *localStore) SaveJSON(ctx context.Context, key string, v interface{}) error {
	_ = ctx
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func (s *localStore) LoadJSON(ctx context.Context, key string, dst interface{}) error {
	_ = ctx
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errs.ErrArtifactNotFound, key)
		}
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode artifact %s: %w", key, err)
	}
	return nil
}

func (s *localStore) ListRuns(ctx context.Context) ([]RunInfo, error) {
	_ = ctx
	entries, err := os.ReadDir(filepath.Join(s.dir, "runs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	runs := make([]RunInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		runs = append(runs, RunInfo{ID: entry.Name(), ModTime: info.ModTime()})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID < runs[j].ID })
	return runs, nil
}

func (s *localStore) DeleteRun(ctx context.Context, runID string) error {
	_ = ctx
	if runID == "" || strings.ContainsAny(runID, "/\\") || runID == "." || runID == ".." {
		return fmt.Errorf("invalid run id: %q", runID)
	}
	return os.RemoveAll(filepath.Join(s.dir, "runs", runID))
}

// resolve maps a store key to a path under the root, rejecting keys
// that would escape it.
func (s *localStore) resolve(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", fmt.Errorf("artifact key is required")
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("invalid artifact key: %q", key)
		}
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}
