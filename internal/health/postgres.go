package health

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresChecker pings PostgreSQL through database/sql
type PostgresChecker struct {
	db *sql.DB
}

// NewPostgresChecker opens a small dedicated pool for health probes
func NewPostgresChecker(dsn string) (*PostgresChecker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &PostgresChecker{db: db}, nil
}

// NewPostgresCheckerFromDB wraps an existing handle
func NewPostgresCheckerFromDB(db *sql.DB) *PostgresChecker {
	return &PostgresChecker{db: db}
}

// HealthCheck verifies PostgreSQL connectivity
func (p *PostgresChecker) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}

	var one int
	if err := p.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("postgres query: %w", err)
	}
	return nil
}

// Close closes the underlying handle
func (p *PostgresChecker) Close() error {
	return p.db.Close()
}
