package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	commons3 "github.com/xxxsen/common/s3"
)

type s3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

// s3Store mirrors artifacts to an S3-compatible bucket. It is a
// write-only sink; runs are read back, listed and expired through the
// local store.
type s3Store struct {
	client *commons3.S3Client
	prefix string
}

func init() {
	Register("s3", createS3Store)
}

func createS3Store(args interface{}) (Store, error) {
	config := &s3Config{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Endpoint == "" || config.Bucket == "" || config.SecretID == "" || config.SecretKey == "" {
		return nil, fmt.Errorf("s3 endpoint/bucket/secret_id/secret_key are required")
	}
	if config.Region == "" {
		config.Region = "cn"
	}
	client, err := commons3.New(
		commons3.WithEndpoint(config.Endpoint),
		commons3.WithSecret(config.SecretID, config.SecretKey),
		commons3.WithBucket(config.Bucket),
		commons3.WithRegion(config.Region),
		commons3.WithSSL(config.UseSSL),
	)
	if err != nil {
		return nil, err
	}
	return &s3Store{client: client, prefix: strings.Trim(config.Prefix, "/")}, nil
}

func (s *s3Store) SaveJSON(ctx context.Context, key string, v interface{}) error {
	if key == "" {
		return fmt.Errorf("artifact key is required")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", key, err)
	}
	objectKey := key
	if s.prefix != "" {
		objectKey = path.Join(s.prefix, key)
	}
	if _, err := s.client.Upload(ctx, objectKey, bytes.NewReader(data), int64(len(data))); err != nil {
		return err
	}
	return nil
}

func (s *s3Store) LoadJSON(ctx context.Context, key string, dst interface{}) error {
	_ = ctx
	_ = key
	_ = dst
	return fmt.Errorf("s3 store does not support load")
}

func (s *s3Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	_ = ctx
	return nil, fmt.Errorf("s3 store does not support listing")
}

func (s *s3Store) DeleteRun(ctx context.Context, runID string) error {
	_ = ctx
	_ = runID
	return fmt.Errorf("s3 store does not support deletion")
}
