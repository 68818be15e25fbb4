package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/ragsig/internal/app"
	"github.com/dropDatabas3/ragsig/internal/config"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

func newTestCLI(t *testing.T) (*cli, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	dir := t.TempDir()
	c := &cli{
		out:  out,
		open: app.Build,
		loadConfig: func(string) (*config.Config, error) {
			cfg := config.Default()
			cfg.Vault.Dir = dir
			cfg.Vault.MasterKey = strings.Repeat("m", 32)
			cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
			return cfg, nil
		},
	}
	t.Cleanup(c.close)
	return c, out
}

// run ejecuta args y devuelve lo impreso.
func run(t *testing.T, c *cli, out *bytes.Buffer, stdin string, args ...string) (string, error) {
	t.Helper()
	out.Reset()
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetContext(context.Background())
	err := root.Execute()
	return out.String(), err
}

func TestCLIAccountKeySignVerify(t *testing.T) {
	c, out := newTestCLI(t)

	got, err := run(t, c, out, "", "account", "create", "svc-billing", "--type", "system")
	require.NoError(t, err)
	var acct struct{ ID string }
	require.NoError(t, json.Unmarshal([]byte(got), &acct))
	require.NotEmpty(t, acct.ID)

	got, err = run(t, c, out, "", "key", "provision", "--account", acct.ID, "--alg", string(types.AlgPQCA))
	require.NoError(t, err)
	var key keyView
	require.NoError(t, json.Unmarshal([]byte(got), &key))
	assert.Equal(t, types.AlgPQCA, key.Algorithm)
	assert.Len(t, key.Address, 64)

	envelope, err := run(t, c, out, "", "sign", "--service", "svc-billing", "--message", "close period", "--alg", string(types.AlgPQCA), "--meta", "period=2026-09")
	require.NoError(t, err)

	got, err = run(t, c, out, envelope, "verify")
	require.NoError(t, err)
	assert.Contains(t, got, `"valid": true`)
	assert.Contains(t, got, acct.ID)

	_, err = run(t, c, out, envelope, "verify")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindReplayDetected))

	got, err = run(t, c, out, "", "key", "list", "--account", acct.ID)
	require.NoError(t, err)
	var keys []keyView
	require.NoError(t, json.Unmarshal([]byte(got), &keys))
	assert.Len(t, keys, 1)
}

func TestCLITokenSweepMigrate(t *testing.T) {
	c, out := newTestCLI(t)

	got, err := run(t, c, out, "", "account", "create", "alice")
	require.NoError(t, err)
	var acct struct{ ID string }
	require.NoError(t, json.Unmarshal([]byte(got), &acct))

	got, err = run(t, c, out, "", "token", "--account", acct.ID)
	require.NoError(t, err)
	var tok struct{ Token string }
	require.NoError(t, json.Unmarshal([]byte(got), &tok))
	claims, err := c.container.Issuer.Parse(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, claims.Subject)

	_, err = run(t, c, out, "", "token", "--account", "nobody")
	assert.True(t, types.IsKind(err, types.KindUnknownSigner))

	got, err = run(t, c, out, "", "sweep")
	require.NoError(t, err)
	var swept map[string]int64
	require.NoError(t, json.Unmarshal([]byte(got), &swept))
	assert.Contains(t, swept, "nonces")
	assert.Contains(t, swept, "reconcile_broadcasting")

	got, err = run(t, c, out, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, got, `"driver": "memory"`)
}

func TestCLIRejectsBadOwnerType(t *testing.T) {
	c, out := newTestCLI(t)
	_, err := run(t, c, out, "", "account", "create", "x", "--type", "robot")
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}
