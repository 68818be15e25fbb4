// Package dal arma la capa de datos desde la config: abre el adapter de
// store, corre migraciones si corresponde y elige el backend de nonces.
//
// Importa todos los adapters para que se auto-registren.
package dal

import (
	"context"
	"fmt"

	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/ragsig/internal/config"
	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
	"github.com/dropDatabas3/ragsig/internal/store"
	"github.com/dropDatabas3/ragsig/internal/store/redisnonce"
	"github.com/dropDatabas3/ragsig/migrations/postgres"

	_ "github.com/dropDatabas3/ragsig/internal/store/memory"
	_ "github.com/dropDatabas3/ragsig/internal/store/pg"
)

// Layer agrupa la conexión del store y los backends auxiliares.
type Layer struct {
	Conn   store.AdapterConnection
	Nonces repository.NonceRepository
	// Redis es nil si no hay redis.addr configurado.
	Redis *rdb.Client
}

// Open abre la capa de datos descripta por cfg.
func Open(ctx context.Context, cfg *config.Config) (*Layer, error) {
	conn, err := store.OpenAdapter(ctx, store.AdapterConfig{
		Name:         cfg.Storage.Driver,
		DSN:          cfg.Storage.DSN,
		Schema:       cfg.Storage.Schema,
		MaxOpenConns: cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns: cfg.Storage.Postgres.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	l := &Layer{Conn: conn, Nonces: conn.Nonces()}

	if cfg.Flags.Migrate {
		if _, err := Migrate(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	if cfg.Redis.Addr != "" {
		l.Redis = rdb.NewClient(&rdb.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB, Password: cfg.Redis.Password})
	}
	if cfg.Nonce.Backend == "redis" {
		if l.Redis == nil {
			_ = conn.Close()
			return nil, fmt.Errorf("nonce backend redis requires redis.addr")
		}
		if err := l.Redis.Ping(ctx).Err(); err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		l.Nonces = redisnonce.New(l.Redis, cfg.Redis.Prefix+"nonce:")
	}

	logger.From(ctx).Info("data layer ready",
		logger.Component("dal"), zap.String("driver", conn.Name()), zap.String("nonce_backend", cfg.Nonce.Backend))
	return l, nil
}

// Migrate aplica las migraciones embebidas si el adapter lo soporta.
// Devuelve las versiones aplicadas (vacío si no hay nada que migrar).
func Migrate(ctx context.Context, conn store.AdapterConnection) ([]int, error) {
	mc, ok := conn.(store.MigratableConnection)
	if !ok {
		return nil, nil
	}
	res, err := store.NewMigrator(migrations.PostgresFS, migrations.PostgresDir).Run(ctx, mc.MigrationExecutor())
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.From(ctx).Info("migrations applied",
		logger.Component("dal"), zap.Ints("applied", res.Applied), zap.Int("skipped", len(res.Skipped)))
	return res.Applied, nil
}

func (l *Layer) Close() error {
	if l.Redis != nil {
		_ = l.Redis.Close()
	}
	return l.Conn.Close()
}
