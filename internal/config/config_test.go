package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := NewConfig()
	cfg.WorkspaceID = "ws1"
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.True(t, cfg.Hybrid.Enabled)
	assert.Equal(t, 10, cfg.Hybrid.Limit)
}

func TestValidateRejectsMissingWorkspaceID(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := NewConfig()
	cfg.WorkspaceID = "ws1"
	cfg.Storage.Backend = "ftp"
	assert.ErrorContains(t, cfg.Validate(), "unknown storage backend")
}

func TestValidateObjectBackendNeedsCredentials(t *testing.T) {
	cfg := NewConfig()
	cfg.WorkspaceID = "ws1"
	cfg.Storage.Backend = BackendObject
	assert.Error(t, cfg.Validate())

	cfg.Storage.Object.Endpoint = "localhost:9000"
	cfg.Storage.Object.Bucket = "artifacts"
	cfg.Storage.Object.AccessKeyID = "key"
	cfg.Storage.Object.SecretAccessKey = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := NewConfig()
	cfg.WorkspaceID = "ws1"
	cfg.Hybrid.Threshold = 1.5
	assert.ErrorContains(t, cfg.Validate(), "threshold")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
workspace_id: ws-file
storage:
  backend: local
  local_path: /tmp/ws-data
chunking:
  chunk_size: 256
  chunk_overlap: 32
hybrid_search:
  enabled: false
  limit: 5
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws-file", cfg.WorkspaceID)
	assert.Equal(t, "/tmp/ws-data", cfg.Storage.LocalPath)
	assert.Equal(t, 256, cfg.Chunking.ChunkSize)
	assert.Equal(t, 32, cfg.Chunking.ChunkOverlap)
	assert.False(t, cfg.Hybrid.Enabled)
	assert.Equal(t, 5, cfg.Hybrid.Limit)
	// Untouched sections keep defaults.
	assert.Equal(t, 0.8, cfg.Hybrid.Threshold)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("WORKSPACEX_WORKSPACE_ID", "ws-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ws-env", cfg.WorkspaceID)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workspace_id: ws-file\n"), 0o644))

	t.Setenv("WORKSPACEX_WORKSPACE_ID", "ws-env")
	t.Setenv("WORKSPACEX_EMBEDDINGS_MODEL", "bge-m3")
	t.Setenv("WORKSPACEX_HYBRID_ENABLED", "false")
	t.Setenv("WORKSPACEX_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws-env", cfg.WorkspaceID)
	assert.Equal(t, "bge-m3", cfg.Embeddings.Model)
	assert.False(t, cfg.Hybrid.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
