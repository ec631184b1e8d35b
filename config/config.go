/*
Package config loads server settings.

PRECEDENCE (later wins):
  1. built-in defaults
  2. .env file in the working directory (optional)
  3. process environment
  4. command-line flags

ENVIRONMENT:
  PORT                   HTTP port (default 8080)
  DATABASE_DRIVER        sqlite | postgres (default sqlite)
  DATABASE_URL           SQLite path or PostgreSQL URL (default payroll.db)
  LOG_LEVEL              debug | info | warn | error (default info)
  LOG_FORMAT             json | console (default json)
  DB_MAX_OPEN_CONNS      pool size (default 20)
  DB_MAX_IDLE_CONNS      idle connections kept (default 5)
  DB_CONN_MAX_IDLE_TIME  e.g. 30s
  DB_CONN_MAX_LIFETIME   e.g. 1h
  DB_ACQUIRE_TIMEOUT     wait for a pooled connection, e.g. 2s
  MAX_TRANSACTION_AMOUNT sanity ceiling per transaction, 0 disables (default 100000)
  CORS_ALLOWED_ORIGINS   comma-separated (default *)
  SHUTDOWN_TIMEOUT       graceful shutdown grace period (default 30s)
  AUDIT_INTERVAL         ledger audit period, 0 disables (default 1h)

FLAGS:
  -port, -db, -driver, -log-level
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-ledger/payroll"
	"github.com/warp/payroll-ledger/store/sqlstore"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port            int
	Driver          string
	DatabaseURL     string
	LogLevel        string
	LogFormat       string
	Pool            sqlstore.Config
	MaxAmount       decimal.Decimal
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	AuditInterval   time.Duration
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:            8080,
		Driver:          DriverSQLite,
		DatabaseURL:     "payroll.db",
		LogLevel:        "info",
		LogFormat:       "json",
		Pool:            sqlstore.DefaultConfig(),
		MaxAmount:       payroll.DefaultMaxTransactionAmount,
		AllowedOrigins:  []string{"*"},
		ShutdownTimeout: 30 * time.Second,
		AuditInterval:   time.Hour,
	}
}

// Load reads .env, the environment, then args (without the program name).
func Load(args []string) (Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := Default()
	if err := cfg.fromEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.fromFlags(args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

type lookupFunc func(string) (string, bool)

func (c *Config) fromEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	num("PORT", &c.Port)
	str("DATABASE_DRIVER", &c.Driver)
	str("DATABASE_URL", &c.DatabaseURL)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	num("DB_MAX_OPEN_CONNS", &c.Pool.MaxOpenConns)
	num("DB_MAX_IDLE_CONNS", &c.Pool.MaxIdleConns)
	dur("DB_CONN_MAX_IDLE_TIME", &c.Pool.ConnMaxIdleTime)
	dur("DB_CONN_MAX_LIFETIME", &c.Pool.ConnMaxLifetime)
	dur("DB_ACQUIRE_TIMEOUT", &c.Pool.AcquireTimeout)
	dur("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
	dur("AUDIT_INTERVAL", &c.AuditInterval)

	if v, ok := lookup("MAX_TRANSACTION_AMOUNT"); ok && v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_TRANSACTION_AMOUNT: %w", err))
		} else {
			c.MaxAmount = d
		}
	}
	if v, ok := lookup("CORS_ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = splitList(v)
	}
	return errors.Join(errs...)
}

func (c *Config) fromFlags(args []string) error {
	fs := flag.NewFlagSet("payroll-server", flag.ContinueOnError)
	fs.IntVar(&c.Port, "port", c.Port, "HTTP server port")
	fs.StringVar(&c.DatabaseURL, "db", c.DatabaseURL, `database path or URL (":memory:" for in-memory SQLite)`)
	fs.StringVar(&c.Driver, "driver", c.Driver, "database driver: sqlite or postgres")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	return fs.Parse(args)
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Driver != DriverSQLite && c.Driver != DriverPostgres {
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Driver))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database URL is empty"))
	}
	if c.Pool.MaxOpenConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_OPEN_CONNS must be positive"))
	}
	if c.Pool.AcquireTimeout <= 0 {
		errs = append(errs, errors.New("DB_ACQUIRE_TIMEOUT must be positive"))
	}
	if c.MaxAmount.IsNegative() {
		errs = append(errs, errors.New("MAX_TRANSACTION_AMOUNT must not be negative"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
