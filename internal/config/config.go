package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		Schema   string `yaml:"schema"`
		Postgres struct {
			MaxOpenConns int `yaml:"max_open_conns"`
			MaxIdleConns int `yaml:"max_idle_conns"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Nonce struct {
		// store: misma base que las claves. redis: SET NX compartido.
		Backend string `yaml:"backend"`
	} `yaml:"nonce"`

	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
		Password string `yaml:"password"`
	} `yaml:"redis"`

	RAGS struct {
		SkewWindow time.Duration `yaml:"skew_window"`
		NonceTTL   time.Duration `yaml:"nonce_ttl"`
		NonceBytes int           `yaml:"nonce_bytes"`
	} `yaml:"rags"`

	Keys struct {
		RotationGrace time.Duration `yaml:"rotation_grace"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
	} `yaml:"keys"`

	Sweeper struct {
		Interval          time.Duration `yaml:"interval"`
		ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	} `yaml:"sweeper"`

	Multisig struct {
		BroadcastTimeout time.Duration `yaml:"broadcast_timeout"`
		// Networks con adapter loopback (desarrollo).
		LoopbackNetworks []string `yaml:"loopback_networks"`
	} `yaml:"multisig"`

	Rate struct {
		Enabled     bool          `yaml:"enabled"`
		Window      time.Duration `yaml:"window"`
		MaxRequests int           `yaml:"max_requests"`
	} `yaml:"rate"`

	Vault struct {
		Dir       string `yaml:"dir"`
		MasterKey string `yaml:"master_key"` // base64/hex de 32 bytes; mejor por env
	} `yaml:"vault"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"auth"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`
}

// Load lee path (si no es vacío), aplica defaults y overrides de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	return &c, nil
}

// Default devuelve la config sin archivo ni entorno.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 20
	}
	if c.Nonce.Backend == "" {
		c.Nonce.Backend = "store"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "rags:"
	}
	if c.RAGS.SkewWindow == 0 {
		c.RAGS.SkewWindow = 5 * time.Minute
	}
	if c.RAGS.NonceTTL == 0 {
		c.RAGS.NonceTTL = 5 * time.Minute
	}
	if c.RAGS.NonceBytes == 0 {
		c.RAGS.NonceBytes = 16
	}
	if c.Keys.RotationGrace == 0 {
		c.Keys.RotationGrace = 24 * time.Hour
	}
	if c.Keys.CacheTTL == 0 {
		c.Keys.CacheTTL = 30 * time.Second
	}
	if c.Sweeper.Interval == 0 {
		c.Sweeper.Interval = time.Minute
	}
	if c.Sweeper.ReconcileInterval == 0 {
		c.Sweeper.ReconcileInterval = time.Minute
	}
	if c.Multisig.BroadcastTimeout == 0 {
		c.Multisig.BroadcastTimeout = 30 * time.Second
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 600
	}
	if c.Vault.Dir == "" {
		c.Vault.Dir = "./data/vault"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "ragsig"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("STORAGE_SCHEMA"); ok {
		c.Storage.Schema = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}

	// NONCE / REDIS
	if v, ok := getEnvStr("NONCE_BACKEND"); ok {
		c.Nonce.Backend = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}

	// RAGS
	if v, ok := getEnvDur("RAGS_SKEW_WINDOW"); ok {
		c.RAGS.SkewWindow = v
	}
	if v, ok := getEnvDur("RAGS_NONCE_TTL"); ok {
		c.RAGS.NonceTTL = v
	}
	if v, ok := getEnvInt("RAGS_NONCE_BYTES"); ok {
		c.RAGS.NonceBytes = v
	}

	// KEYS
	if v, ok := getEnvDur("KEYS_ROTATION_GRACE"); ok {
		c.Keys.RotationGrace = v
	}
	if v, ok := getEnvDur("KEYS_CACHE_TTL"); ok {
		c.Keys.CacheTTL = v
	}

	// SWEEPER / MULTISIG
	if v, ok := getEnvDur("SWEEPER_INTERVAL"); ok {
		c.Sweeper.Interval = v
	}
	if v, ok := getEnvDur("SWEEPER_RECONCILE_INTERVAL"); ok {
		c.Sweeper.ReconcileInterval = v
	}
	if v, ok := getEnvDur("MULTISIG_BROADCAST_TIMEOUT"); ok {
		c.Multisig.BroadcastTimeout = v
	}
	if v, ok := getEnvCSV("MULTISIG_LOOPBACK_NETWORKS"); ok {
		c.Multisig.LoopbackNetworks = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvDur("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}

	// VAULT / AUTH / METRICS
	if v, ok := getEnvStr("VAULT_DIR"); ok {
		c.Vault.Dir = v
	}
	if v, ok := getEnvStr("VAULT_MASTER_KEY"); ok {
		c.Vault.MasterKey = v
	}
	if v, ok := getEnvStr("AUTH_JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}
	if v, ok := getEnvStr("AUTH_ISSUER"); ok {
		c.Auth.Issuer = v
	}
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
	if v, ok := getEnvBool("FLAGS_MIGRATE"); ok {
		c.Flags.Migrate = v
	}
}

// Validate rechaza combinaciones inválidas antes de levantar nada.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	switch c.Nonce.Backend {
	case "store":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for nonce.backend=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("nonce.backend %q is not supported", c.Nonce.Backend))
	}
	if c.RAGS.SkewWindow <= 0 {
		errs = append(errs, errors.New("rags.skew_window must be positive"))
	}
	if c.RAGS.NonceTTL < c.RAGS.SkewWindow {
		errs = append(errs, errors.New("rags.nonce_ttl must be >= rags.skew_window"))
	}
	if c.RAGS.NonceBytes < 16 {
		errs = append(errs, errors.New("rags.nonce_bytes must be at least 16"))
	}
	if c.Rate.Enabled && c.Rate.MaxRequests <= 0 {
		errs = append(errs, errors.New("rate.max_requests must be positive"))
	}
	if c.App.Env == "prod" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 bytes in prod"))
	}
	return errors.Join(errs...)
}
