// Package postgres opens the catalog database through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kailas-cloud/docfinder/internal/db"
)

//go:embed schema.sql
var schema string

// Config holds catalog database connection parameters.
type Config struct {
	DSN          string
	MaxOpenConns int
}

// Open creates a connection pool. It does not wait for the server.
func Open(cfg Config) (*sql.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	conn.SetConnMaxIdleTime(5 * time.Minute)
	return conn, nil
}

// WaitForReady polls Ping until the database responds or timeout expires.
func WaitForReady(ctx context.Context, conn *sql.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := conn.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for catalog db: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Migrate creates the catalog tables when missing.
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}
	return nil
}
