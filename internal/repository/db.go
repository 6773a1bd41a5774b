package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	Driver           string // "sqlite" or "postgres"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Client wraps the Ent SQL driver. Repositories build queries with Ent's
// dialect-aware builders and run them through the client, which routes them
// to the active transaction when the context carries one.
type Client struct {
	drv     *entsql.Driver
	dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// Open connects to the configured database and returns a client.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "", "sqlite", dialect.SQLite:
		return openSQLite(cfg, logger)
	case dialect.Postgres, "postgresql":
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openSQLite(cfg Config, logger *slog.Logger) (*Client, error) {
	logger.Info("opening sqlite database", "dsn", cfg.DSN)
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, err
	}
	// SQLite allows a single writer; one connection also keeps in-memory
	// databases alive for the lifetime of the client.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	drv := entsql.OpenDB(dialect.SQLite, db)
	return &Client{drv: drv, dialect: dialect.SQLite, logger: logger}, nil
}

// openPostgres creates a pgx pool and wraps it for Ent.
func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "inspection-tracker"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for Ent
	db := stdlib.OpenDBFromPool(pool)
	drv := entsql.OpenDB(dialect.Postgres, db)

	logger.Info("successfully connected to database")
	return &Client{drv: drv, dialect: dialect.Postgres, pool: pool, logger: logger}, nil
}

// Dialect returns the Ent dialect name of the underlying database.
func (c *Client) Dialect() string {
	return c.dialect
}

// Close closes the database connections gracefully
func (c *Client) Close() {
	c.logger.Info("closing database connections")
	if err := c.drv.Close(); err != nil {
		c.logger.Error("failed to close database driver", "error", err)
	}
	if c.pool != nil {
		c.pool.Close()
	}
	c.logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (c *Client) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	c.logger.Debug("pinging database")
	if err := c.drv.DB().PingContext(ctx); err != nil {
		c.logger.Warn("database ping failed", "error", err)
		return err
	}
	c.logger.Debug("database ping successful")
	return nil
}

func (c *Client) builder() *entsql.DialectBuilder {
	return entsql.Dialect(c.dialect)
}
