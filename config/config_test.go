package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Addr())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "itemstore.yaml")
	src := `server:
  port: 8080
  allowed_origins: ["https://a.example"]
  shutdown_timeout: 5s
store:
  backend: sqlite
  data_dir: /var/lib/items
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://b.example, https://c.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/var/lib/items", cfg.Store.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	cfg := Default()
	env := map[string]string{"PORT": "http"}
	err := cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	assert.Error(t, err)

	env = map[string]string{"METRICS_ENABLED": "maybe"}
	err = cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]func(*Config){
		"unknown backend": func(c *Config) { c.Store.Backend = "redis" },
		"port range":      func(c *Config) { c.Server.Port = 70000 },
		"no origins":      func(c *Config) { c.Server.AllowedOrigins = nil },
		"log level":       func(c *Config) { c.Log.Level = "trace" },
		"no data dir":     func(c *Config) { c.Store.DataDir = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Store.Backend = "memory"
	cfg.Store.DataDir = ""
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
