package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AES-Git/DMG/db/migrations"
	"github.com/AES-Git/DMG/internal/app/migrate"
	"github.com/AES-Git/DMG/internal/dsn"
	"github.com/AES-Git/DMG/internal/repository/postgres"
	"github.com/AES-Git/DMG/internal/service/cart"
	"github.com/AES-Git/DMG/internal/service/inventory"
	"github.com/AES-Git/DMG/internal/service/order"
	"github.com/AES-Git/DMG/pkg/config"
)

// Connection is an open pool and how its connection string was obtained.
type Connection struct {
	Pool       *pgxpool.Pool
	Resolution Resolution
	Dialect    dsn.Dialect
}

// Close releases the pool.
func (c *Connection) Close() {
	c.Pool.Close()
}

// Connect resolves the connection string once and opens a pool on it. Nothing
// is dialed when no connection string is available.
func Connect(ctx context.Context, cfg config.Config, src SecretSource, log *slog.Logger) (*Connection, error) {
	if log == nil {
		log = slog.Default()
	}
	res, err := New(cfg, src, log).Resolve(ctx)
	if err != nil {
		return nil, err
	}

	desc, err := dsn.Parse(res.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse %s connection string: %w", res.Source, err)
	}
	log.Info("database connection resolved", "source", res.Source, "dialect", desc.Dialect, "target", desc.Redacted())

	poolCfg, err := desc.PoolConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Connection{Pool: pool, Resolution: res, Dialect: desc.Dialect}, nil
}

// App is the wired storefront: pool, unit-of-work factory and services.
type App struct {
	*Connection

	Contexts  *postgres.Factory
	Inventory inventory.Service
	Cart      cart.Service
	Orders    order.Service
}

// Open connects, applies pending migrations and builds the services. Any
// failure is fatal to startup; the pool is closed before returning an error.
func Open(ctx context.Context, cfg config.Config, src SecretSource, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := Connect(ctx, cfg, src, log)
	if err != nil {
		return nil, err
	}

	runner, err := migrate.New(conn.Pool, migrations.FS, cfg.Database.MigrationTimeout, log)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("configure migrations: %w", err)
	}
	err = runner.Ensure(ctx)
	_ = runner.Close()
	if err != nil {
		conn.Close()
		return nil, err
	}

	contexts := postgres.NewFactory(conn.Pool, log)
	return &App{
		Connection: conn,
		Contexts:   contexts,
		Inventory:  inventory.New(contexts, log),
		Cart:       cart.New(contexts, log),
		Orders:     order.New(contexts, log),
	}, nil
}
