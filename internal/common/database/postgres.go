package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"catalog-bff/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient holds the pool used by the catalog repository.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens a pool without dialing; call Ping to verify the server.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	lifetime := 5 * time.Minute
	if cfg.ConnMaxLife > 0 {
		lifetime = config.GetDuration(cfg.ConnMaxLife)
	}
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(lifetime)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
