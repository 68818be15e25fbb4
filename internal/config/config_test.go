package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  app_env: staging
storage:
  driver: postgres
  dsn: postgres://rags@localhost/rags
rags:
  skew_window: 2m
multisig:
  loopback_networks: [ethereum, bitcoin]
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.App.Env)
	assert.Equal(t, "postgres", c.Storage.Driver)
	assert.Equal(t, 2*time.Minute, c.RAGS.SkewWindow)
	assert.Equal(t, 5*time.Minute, c.RAGS.NonceTTL)
	assert.Equal(t, 16, c.RAGS.NonceBytes)
	assert.Equal(t, []string{"ethereum", "bitcoin"}, c.Multisig.LoopbackNetworks)
	assert.Equal(t, ":8080", c.Server.Addr)
	require.NoError(t, c.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("NONCE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RAGS_NONCE_TTL", "10m")
	t.Setenv("MULTISIG_LOOPBACK_NETWORKS", "ethereum, solana")
	t.Setenv("RATE_ENABLED", "true")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "redis", c.Nonce.Backend)
	assert.Equal(t, 10*time.Minute, c.RAGS.NonceTTL)
	assert.Equal(t, []string{"ethereum", "solana"}, c.Multisig.LoopbackNetworks)
	assert.True(t, c.Rate.Enabled)
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(c *Config)
	}{
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }},
		{"redis nonce without addr", func(c *Config) { c.Nonce.Backend = "redis" }},
		{"nonce ttl shorter than skew", func(c *Config) { c.RAGS.NonceTTL = time.Minute }},
		{"short nonces", func(c *Config) { c.RAGS.NonceBytes = 8 }},
		{"prod without jwt secret", func(c *Config) { c.App.Env = "prod" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mut(c)
			assert.Error(t, c.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}
