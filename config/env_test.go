package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datajunction/djqs/config"
)

func TestDefaults(t *testing.T) {
	t.Setenv("DOTENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.json"))
	config.Reset()
	t.Cleanup(config.Reset)

	require.NoError(t, config.Load())
	assert.Equal(t, "8001", config.AppPort())
	assert.Equal(t, "memory", config.ResultsBackend())
	assert.Equal(t, time.Duration(0), config.ResultsTTL())
	assert.Equal(t, "", config.ResultsPrefix())
	assert.Equal(t, "", config.GRPCPort())
	assert.Equal(t, []string{"*"}, config.CORSOrigins())
}

func TestDotEnvFileFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "djqs.env")
	require.NoError(t, os.WriteFile(envPath, []byte(
		"# comment\nINDEX=postgresql://dj:dj@postgres-roads:5432/djqs\nRESULTS_BACKEND=redis\nRESULTS_TTL=\"60\"\n",
	), 0o644))

	t.Setenv("DOTENV_FILE", envPath)
	t.Setenv("CONFIG_FILE", filepath.Join(dir, "missing.json"))
	config.Reset()
	t.Cleanup(config.Reset)

	require.NoError(t, config.Load())
	assert.Equal(t, "postgresql://dj:dj@postgres-roads:5432/djqs", config.Index())
	assert.Equal(t, "redis", config.ResultsBackend())
	assert.Equal(t, time.Minute, config.ResultsTTL())
}

func TestPrecedence(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "djqs.json")
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"app_port": "9000", "queue_workers": 8, "app_name": "from-json"}`), 0o644))
	require.NoError(t, os.WriteFile(envPath, []byte("APP_PORT=9001\n"), 0o644))

	t.Setenv("CONFIG_FILE", jsonPath)
	t.Setenv("DOTENV_FILE", envPath)
	t.Setenv("APP_NAME", "from-env")
	config.Reset()
	t.Cleanup(config.Reset)

	assert.Equal(t, "9001", config.AppPort())
	assert.Equal(t, 8, config.QueueWorkers())
	assert.Equal(t, "from-env", config.AppName())

	config.Set("APP_PORT", "9002")
	assert.Equal(t, "9002", config.AppPort())
}

func TestUnknownBackendFallsBack(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	config.Set("RESULTS_BACKEND", "memcached")
	config.Set("QUEUE_DRIVER", "kafka")
	assert.Equal(t, "memory", config.ResultsBackend())
	assert.Equal(t, "memory", config.QueueDriver())
}
