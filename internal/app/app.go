// Package app arma el contenedor de dependencias a partir de la config.
// Lo usan ragsd (servidor) y ragsctl (operaciones locales).
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dropDatabas3/ragsig/internal/config"
	"github.com/dropDatabas3/ragsig/internal/http/controllers"
	mw "github.com/dropDatabas3/ragsig/internal/http/middlewares"
	"github.com/dropDatabas3/ragsig/internal/http/router"
	jwtx "github.com/dropDatabas3/ragsig/internal/jwt"
	"github.com/dropDatabas3/ragsig/internal/keys"
	"github.com/dropDatabas3/ragsig/internal/metrics"
	"github.com/dropDatabas3/ragsig/internal/multisig"
	"github.com/dropDatabas3/ragsig/internal/network"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
	"github.com/dropDatabas3/ragsig/internal/rags"
	"github.com/dropDatabas3/ragsig/internal/rate"
	"github.com/dropDatabas3/ragsig/internal/security/secretbox"
	"github.com/dropDatabas3/ragsig/internal/sigcodec"
	"github.com/dropDatabas3/ragsig/internal/store/dal"
	"github.com/dropDatabas3/ragsig/internal/sweeper"
	"github.com/dropDatabas3/ragsig/internal/vault"
)

// MasterKeyEnv es la variable con la clave maestra del vault si
// vault.master_key no está en la config.
const MasterKeyEnv = "VAULT_MASTER_KEY"

// Container es el contenedor DI simple que usan los binarios.
type Container struct {
	Config    *config.Config
	Data      *dal.Layer
	Codec     *sigcodec.Codec
	Vault     *vault.Vault
	Keys      *keys.Manager
	Signer    *rags.Signer
	Validator *rags.Validator
	Networks  *network.Registry
	Multisig  *multisig.Orchestrator

	// Issuer es nil si no hay auth.jwt_secret: las rutas con bearer quedan cerradas.
	Issuer *jwtx.Issuer
	// Limiter es nil si rate.enabled es false.
	Limiter rate.Limiter
}

// Build abre la capa de datos y construye todos los servicios.
func Build(ctx context.Context, cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	master, err := masterKey(cfg)
	if err != nil {
		return nil, err
	}

	data, err := dal.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Data: data, Codec: sigcodec.Default()}
	c.Vault, err = vault.New(vault.Config{Dir: cfg.Vault.Dir, MasterKey: master}, c.Codec)
	if err != nil {
		_ = data.Close()
		return nil, err
	}

	conn := data.Conn
	cache := keys.NewRegistryCache(conn.Keys(), cfg.Keys.CacheTTL)
	c.Keys = keys.NewManager(conn.Accounts(), conn.Keys(), c.Vault, cache, keys.Config{RotationGrace: cfg.Keys.RotationGrace})

	rcfg := rags.Config{
		SkewWindow: cfg.RAGS.SkewWindow,
		NonceTTL:   cfg.RAGS.NonceTTL,
		NonceBytes: cfg.RAGS.NonceBytes,
	}
	c.Signer = rags.NewSigner(conn.Accounts(), conn.Keys(), cache, c.Vault, c.Codec, rcfg)
	c.Validator = rags.NewValidator(conn.Accounts(), conn.Keys(), data.Nonces, cache, c.Codec, rcfg)

	c.Networks = network.NewRegistry()
	for _, n := range cfg.Multisig.LoopbackNetworks {
		if n = strings.TrimSpace(n); n != "" {
			c.Networks.Register(n, network.NewLoopback())
		}
	}
	c.Multisig = multisig.New(conn.Accounts(), conn.Wallets(), conn.Transactions(), c.Validator, c.Networks,
		multisig.Config{BroadcastTimeout: cfg.Multisig.BroadcastTimeout})

	if cfg.Auth.JWTSecret != "" {
		c.Issuer, err = jwtx.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0)
		if err != nil {
			_ = data.Close()
			return nil, err
		}
	}

	if cfg.Rate.Enabled {
		if data.Redis != nil {
			c.Limiter = rate.NewRedisLimiter(data.Redis, cfg.Redis.Prefix+"rl:", cfg.Rate.MaxRequests, cfg.Rate.Window)
		} else {
			c.Limiter = rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.Rate.Window)
		}
	}

	algs := make([]string, 0, 3)
	for _, a := range c.Codec.Supported() {
		algs = append(algs, string(a))
	}
	logger.From(ctx).Info("container ready",
		logger.Component("app"),
		zap.Strings("algorithms", algs),
		zap.Strings("networks", c.Networks.Networks()),
		zap.Bool("rate_limit", c.Limiter != nil))
	return c, nil
}

func masterKey(cfg *config.Config) ([]byte, error) {
	if cfg.Vault.MasterKey != "" {
		return secretbox.ParseKey(cfg.Vault.MasterKey)
	}
	return secretbox.KeyFromEnv(MasterKeyEnv)
}

// Handler construye el router HTTP. Registra las métricas en reg si
// metrics.enabled.
func (c *Container) Handler(reg *prometheus.Registry) (http.Handler, error) {
	issuer := c.Issuer
	if issuer == nil {
		return nil, errors.New("auth.jwt_secret is required to serve the API")
	}

	var metricsHandler http.Handler
	if c.Config.Metrics.Enabled && reg != nil {
		if err := metrics.Register(reg); err != nil {
			return nil, err
		}
		if err := mw.RegisterMetrics(reg); err != nil {
			return nil, err
		}
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	checks := map[string]controllers.HealthCheck{"store": c.Data.Conn.Ping}
	if c.Data.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return c.Data.Redis.Ping(ctx).Err() }
	}

	return router.New(router.Deps{
		Controllers: controllers.New(controllers.Deps{
			Signer:    c.Signer,
			Validator: c.Validator,
			Multisig:  c.Multisig,
			Checks:    checks,
		}),
		Issuer:  issuer,
		Limiter: c.Limiter,
		Metrics: metricsHandler,
	}), nil
}

// Sweeper arma las tareas periódicas: purga de nonces y reconciliación.
func (c *Container) Sweeper() *sweeper.Sweeper {
	return sweeper.New(
		sweeper.NonceTask(c.Data.Nonces, c.Config.Sweeper.Interval, nil),
		sweeper.Task{
			Name:     "reconcile_broadcasting",
			Interval: c.Config.Sweeper.ReconcileInterval,
			Run:      c.Multisig.ReconcileStale,
		},
	)
}

// Close espera la telemetría pendiente y cierra la capa de datos.
func (c *Container) Close() error {
	c.Validator.Wait()
	return c.Data.Close()
}
