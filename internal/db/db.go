package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"match-crawler/internal/storage"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS player_match_rows (
		match_id TEXT NOT NULL,
		region TEXT NOT NULL,
		match_length INTEGER NOT NULL,
		win BOOLEAN NOT NULL,
		team_position TEXT NOT NULL,
		kills INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		assists INTEGER NOT NULL,
		gold_at_15 INTEGER NOT NULL,
		cs_at_15 INTEGER NOT NULL,
		team_first_tower BOOLEAN NOT NULL,
		team_first_dragon BOOLEAN NOT NULL,
		team_first_baron BOOLEAN NOT NULL,
		team_first_inhibitor BOOLEAN NOT NULL,
		total_gold INTEGER NOT NULL,
		total_damage INTEGER NOT NULL,
		total_cs INTEGER NOT NULL,
		dragon_kills INTEGER NOT NULL,
		baron_kills INTEGER NOT NULL,
		tower_kills INTEGER NOT NULL,
		inhibitor_kills INTEGER NOT NULL,
		inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS player_match_rows_match_id_idx ON player_match_rows (match_id);
`

// pgxPool is the subset of *pgxpool.Pool the mirror uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// PostgresMirror copies flushed rows into PostgreSQL.
type PostgresMirror struct {
	pool pgxPool
}

// NewPostgresMirror connects to dsn and creates the table if needed.
func NewPostgresMirror(ctx context.Context, dsn string) (*PostgresMirror, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := NewPostgresMirrorWithPool(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

// NewPostgresMirrorWithPool builds a mirror over an existing pool.
func NewPostgresMirrorWithPool(ctx context.Context, pool pgxPool) (*PostgresMirror, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresMirror{pool: pool}, nil
}

// Name identifies the mirror in logs and metrics.
func (m *PostgresMirror) Name() string {
	return "postgres"
}

// WriteRows bulk-loads rows with COPY.
func (m *PostgresMirror) WriteRows(ctx context.Context, rows []storage.PlayerMatchRow) error {
	if len(rows) == 0 {
		return nil
	}
	n, err := m.pool.CopyFrom(ctx, pgx.Identifier{Table}, columns, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return rowValues(rows[i]), nil
	}))
	if err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copy rows: wrote %d of %d", n, len(rows))
	}
	return nil
}

// Close closes the connection pool.
func (m *PostgresMirror) Close() {
	m.pool.Close()
}
