package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridguard/config"
)

func TestNewWritesToFile(t *testing.T) {
	cfg := config.Default().Log
	cfg.File.Path = filepath.Join(t.TempDir(), "gridguard.log")

	log, err := New(cfg)
	require.NoError(t, err)
	log.Infow("model loaded", "path", "transformer_failure_model.json")
	_ = log.Sync()

	data, err := os.ReadFile(cfg.File.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"model loaded"`)
	assert.Contains(t, string(data), `"path":"transformer_failure_model.json"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	cfg := config.Default().Log
	cfg.Level = "chatty"
	_, err := New(cfg)
	assert.Error(t, err)
}
