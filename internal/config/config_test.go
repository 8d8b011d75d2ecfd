package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"artifact":{"dir":"/tmp/wrapped"}}`))
	require.NoError(t, err)

	require.Equal(t, "info", cfg.LogConfig.Level)
	require.False(t, cfg.Embed.Enabled)
	require.False(t, cfg.Analyze.Enabled)
	require.Equal(t, "keyword", cfg.Analyze.Labeler.Type)
	require.Equal(t, 4096, cfg.Embed.Cache.Size)
	require.Zero(t, cfg.Timeouts.CompressSec)
	require.Equal(t, 1800, cfg.Timeouts.EmbedSec)
}

func TestLoadRequiresArtifactDir(t *testing.T) {
	_, err := Load(writeConfig(t, `{}`))
	require.Error(t, err)
}

func TestLoadEmbedNeedsProviders(t *testing.T) {
	_, err := Load(writeConfig(t, `{"artifact":{"dir":"/tmp/x"},"embed":{"enabled":true}}`))
	require.Error(t, err)
}

func TestLoadAnalyzeNeedsEmbed(t *testing.T) {
	_, err := Load(writeConfig(t, `{"artifact":{"dir":"/tmp/x"},"analyze":{"enabled":true}}`))
	require.Error(t, err)
}

func TestLoadRetentionDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"artifact":{"dir":"/tmp/x"},"retention":{"enabled":true}}`))
	require.NoError(t, err)
	require.Equal(t, "0 3 * * *", cfg.Retention.CronSpec)
	require.Equal(t, 30, cfg.Retention.KeepDays)
}

func TestLoadFullEmbedConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"artifact":{"dir":"/tmp/x"},
		"embed":{"enabled":true,"providers":[
			{"name":"gemini","model":"gemini-embedding-001","dimensions":768,"data":{"api_key":"k"}},
			{"name":"local","dimensions":256}
		]},
		"analyze":{"enabled":true,"threshold":0.7}
	}`))
	require.NoError(t, err)
	require.Len(t, cfg.Embed.Providers, 2)
	require.Equal(t, "gemini", cfg.Embed.Providers[0].Name)
	require.InDelta(t, 0.7, cfg.Analyze.Threshold, 0.001)
}
