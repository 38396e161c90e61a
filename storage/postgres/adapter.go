// Package postgres implements session.StorageAdapter as a keyed blob
// table, for enablePersistence sessions that must survive process
// restarts across machines.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds the PostgreSQL connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Adapter implements session.StorageAdapter against a
// phoenix_storage_items(key TEXT PRIMARY KEY, value TEXT) table.
type Adapter struct {
	pool *pgxpool.Pool
}

// NewAdapter opens a pool and verifies connectivity.
func NewAdapter(ctx context.Context, cfg *Config) (*Adapter, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("phoenix/storage/postgres: create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("phoenix/storage/postgres: ping database: %w", err)
	}

	return &Adapter{pool: pool}, nil
}

// Close releases the connection pool.
func (a *Adapter) Close() {
	a.pool.Close()
}

func (a *Adapter) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := a.pool.QueryRow(ctx,
		`SELECT value FROM phoenix_storage_items WHERE key = $1`, key,
	).Scan(&value)

	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("phoenix/storage/postgres: get %s: %w", key, err)
	}
	return value, true, nil
}

func (a *Adapter) SetItem(ctx context.Context, key, value string) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO phoenix_storage_items (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("phoenix/storage/postgres: set %s: %w", key, err)
	}
	return nil
}

func (a *Adapter) RemoveItem(ctx context.Context, key string) error {
	_, err := a.pool.Exec(ctx, `DELETE FROM phoenix_storage_items WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("phoenix/storage/postgres: remove %s: %w", key, err)
	}
	return nil
}
