// Package postgres manages the PostgreSQL connection pool used by the
// label record sink.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/label-traiter/internal/config"
	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/pkg/errors"
)

const (
	defaultMaxConns        = 4
	defaultMaxConnLifetime = 30 * time.Minute
	defaultMaxConnIdleTime = 5 * time.Minute
)

// Connection owns a pgx connection pool.
type Connection struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

func buildConnString(cfg config.PostgresConfig) string {
	return cfg.DSN()
}

func configurePool(poolCfg *pgxpool.Config, cfg config.PostgresConfig) {
	poolCfg.MaxConns = defaultMaxConns
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	poolCfg.MaxConnLifetime = defaultMaxConnLifetime
	poolCfg.MaxConnIdleTime = defaultMaxConnIdleTime
}

// NewConnection opens the pool and pings the server.
func NewConnection(ctx context.Context, cfg config.PostgresConfig, logger logging.Logger) (*Connection, error) {
	logger = logging.OrNop(logger)

	poolCfg, err := pgxpool.ParseConfig(buildConnString(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid postgres connection settings")
	}
	configurePool(poolCfg, cfg)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to create postgres pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "postgres connection failed")
	}

	logger.Info("Connected to PostgreSQL database",
		logging.String("host", cfg.Host),
		logging.Int("port", cfg.Port),
		logging.String("database", cfg.DBName))

	return &Connection{pool: pool, logger: logger}, nil
}

// Pool returns the underlying pool.
func (c *Connection) Pool() *pgxpool.Pool {
	return c.pool
}

// Close closes every connection in the pool.
func (c *Connection) Close() {
	c.pool.Close()
	c.logger.Info("Closed PostgreSQL database connection")
}
