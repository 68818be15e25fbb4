package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/ragsig/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Vault.Dir = t.TempDir()
	cfg.Vault.MasterKey = strings.Repeat("k", 32)
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Multisig.LoopbackNetworks = []string{"loopnet", " "}
	cfg.Metrics.Enabled = true
	cfg.Rate.Enabled = true
	return cfg
}

func TestBuildMemory(t *testing.T) {
	c, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, []string{"loopnet"}, c.Networks.Networks())
	assert.NotNil(t, c.Issuer)
	assert.NotNil(t, c.Limiter)
	assert.Len(t, c.Sweeper().Tasks(), 2)

	h, err := c.Handler(prometheus.NewRegistry())
	require.NoError(t, err)

	for _, path := range []string{"/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestBuildRequiresMasterKey(t *testing.T) {
	t.Setenv(MasterKeyEnv, "")
	cfg := testConfig(t)
	cfg.Vault.MasterKey = ""
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestHandlerRequiresJWTSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = ""
	c, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Handler(nil)
	assert.Error(t, err)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "cassandra"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}
