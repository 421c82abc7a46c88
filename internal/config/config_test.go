package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobops/jobops/internal/storage"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load(Options{DataDir: dir})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(dir, "jobops.db"), cfg.Storage.Path)
	assert.True(t, cfg.Storage.SeedDemo)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 4*time.Second, cfg.Notifications.TTL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Empty(t, cfg.File)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
storage:
  driver: memory
  seed_demo: false
remote:
  endpoint: https://example.test/exec
  timeout: 5s
server:
  port: 9000
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobops.yaml"), []byte(yaml), 0644))
	t.Setenv("JOBOPS_SERVER_PORT", "9100")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(Options{DataDir: dir})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "jobops.yaml"), cfg.File)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.False(t, cfg.Storage.SeedDemo)
	assert.Equal(t, "https://example.test/exec", cfg.Remote.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "sk-test", cfg.Assistant.APIKey)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JOBOPS_ASSISTANT_MODEL=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("JOBOPS_ASSISTANT_MODEL") })

	cfg, err := Load(Options{DataDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Assistant.Model)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml"), DataDir: t.TempDir()})
	assert.Error(t, err)
}

func TestLoad_InvalidDriver(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("JOBOPS_STORAGE_DRIVER", "etcd")
	_, err := Load(Options{DataDir: dir})
	assert.ErrorContains(t, err, "storage.driver")
}

func TestEndpointResolution(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	cfg := &Config{}

	ep, err := cfg.Endpoint(ctx, kv)
	require.NoError(t, err)
	assert.Empty(t, ep)

	require.NoError(t, SaveEndpoint(ctx, kv, " https://saved.test/exec "))
	ep, err = cfg.Endpoint(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.test/exec", ep)

	cfg.Remote.Endpoint = "https://configured.test/exec"
	ep, err = cfg.Endpoint(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, "https://configured.test/exec", ep)

	require.NoError(t, SaveEndpoint(ctx, kv, ""))
	saved, err := SavedEndpoint(ctx, kv)
	require.NoError(t, err)
	assert.Empty(t, saved)
}
