// ragsctl es el CLI de operación: migraciones, cuentas, claves, sweep y
// firma/verificación RAGS contra el mismo store que usa ragsd.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/ragsig/internal/app"
	"github.com/dropDatabas3/ragsig/internal/config"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
)

// cli guarda el estado compartido por los subcomandos.
type cli struct {
	configPath string
	out        io.Writer
	open       func(ctx context.Context, cfg *config.Config) (*app.Container, error)
	loadConfig func(path string) (*config.Config, error)

	cfg       *config.Config
	container *app.Container
}

// ensure abre el contenedor una sola vez por ejecución.
func (c *cli) ensure(ctx context.Context) (*app.Container, error) {
	if c.container != nil {
		return c.container, nil
	}
	cfg, err := c.loadConfig(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	c.cfg = cfg
	ct, err := c.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.container = ct
	return ct, nil
}

func (c *cli) close() {
	if c.container != nil {
		_ = c.container.Close()
	}
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "ragsctl",
		Short:         "CLI de operación para ragsd (RAGS + multisig)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			c.close()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("CONFIG_PATH"), "Path to YAML config (env CONFIG_PATH)")

	root.AddCommand(
		newMigrateCmd(c),
		newAccountCmd(c),
		newKeyCmd(c),
		newSweepCmd(c),
		newSignCmd(c),
		newVerifyCmd(c),
		newTokenCmd(c),
	)
	return root
}

func main() {
	_ = godotenv.Load()
	logger.Init(logger.Config{Env: "dev", Level: envOr("LOG_LEVEL", "warn"), ServiceName: "ragsctl"})
	defer func() { _ = logger.Sync() }()

	c := &cli{out: os.Stdout, open: app.Build, loadConfig: config.Load}
	if err := newRootCmd(c).Execute(); err != nil {
		c.close()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
