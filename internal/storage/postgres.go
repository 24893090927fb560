package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAudit implements AuditRepository using PostgreSQL
type PostgresAudit struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresAudit creates a new PostgreSQL audit repository
func NewPostgresAudit(ctx context.Context, cfg PostgresConfig) (*PostgresAudit, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 10
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 1
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresAudit{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresAudit) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresAudit) Close() error {
	r.pool.Close()
	return nil
}

// RecordSubmission inserts one submission attempt
func (r *PostgresAudit) RecordSubmission(ctx context.Context, rec *AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO application_audit (session_id, draft_id, university_id, student_name, email, outcome, http_status, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		rec.SessionID,
		rec.DraftID,
		rec.UniversityID,
		rec.StudentName,
		rec.Email,
		rec.Outcome,
		nullInt(rec.HTTPStatus),
		nullString(rec.Message),
		rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}

	return nil
}

// ListSubmissions returns the latest attempts for a session, newest first
func (r *PostgresAudit) ListSubmissions(ctx context.Context, sessionID string, limit int) ([]*AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, session_id, draft_id, university_id, student_name, email, outcome, http_status, message, created_at
		FROM application_audit
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var records []*AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var status sql.NullInt32
		var message sql.NullString

		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.DraftID,
			&rec.UniversityID,
			&rec.StudentName,
			&rec.Email,
			&rec.Outcome,
			&status,
			&message,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}

		rec.HTTPStatus = int(status.Int32)
		rec.Message = message.String
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int) sql.NullInt32 {
	return sql.NullInt32{Int32: int32(v), Valid: v != 0}
}
