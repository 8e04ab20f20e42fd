package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purc-run/purcvariant/internal/config"
)

func TestDefault(t *testing.T) {
	d := config.Default()
	assert.Equal(t, 512*1024, d.Stream.ThrottleThresholdBytes)
	assert.Equal(t, 4096, d.Heap.RevWalkCacheSize)
}

func TestLoadFillsMissingFieldsFromDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[stream]
throttle_threshold_bytes = 1024
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Stream.ThrottleThresholdBytes)
	assert.Equal(t, 4*1024, cfg.Stream.MaxFramePayloadBytes)
	assert.Equal(t, 4096, cfg.Heap.CloneCacheSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
