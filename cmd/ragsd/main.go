// ragsd sirve la API RAGS + multisig y corre el sweeper de nonces y
// reconciliación en el mismo proceso.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/ragsig/internal/app"
	"github.com/dropDatabas3/ragsig/internal/config"
	httpserver "github.com/dropDatabas3/ragsig/internal/http"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config (opcional)")
	flag.Parse()
	if err := run(*configPath); err != nil {
		logger.L().Error("ragsd stopped with error", logger.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(configPath string) error {
	// .env es opcional; las variables del sistema tienen prioridad.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "ragsd",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wiring: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn("close failed", logger.Err(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := c.Handler(reg)
	if err != nil {
		return fmt.Errorf("http wiring: %w", err)
	}

	log.Info("ragsd starting",
		logger.String("addr", cfg.Server.Addr),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("nonce_backend", cfg.Nonce.Backend),
		logger.Any("networks", c.Networks.Networks()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.NewServer(cfg.Server.Addr, handler, cfg.Server.ShutdownTimeout).Run(gctx)
	})
	g.Go(func() error {
		return c.Sweeper().Run(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("ragsd stopped")
	return nil
}
