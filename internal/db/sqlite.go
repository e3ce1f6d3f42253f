package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"match-crawler/internal/storage"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS player_match_rows (
		match_id TEXT NOT NULL,
		region TEXT NOT NULL,
		match_length INTEGER NOT NULL,
		win INTEGER NOT NULL,
		team_position TEXT NOT NULL,
		kills INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		assists INTEGER NOT NULL,
		gold_at_15 INTEGER NOT NULL,
		cs_at_15 INTEGER NOT NULL,
		team_first_tower INTEGER NOT NULL,
		team_first_dragon INTEGER NOT NULL,
		team_first_baron INTEGER NOT NULL,
		team_first_inhibitor INTEGER NOT NULL,
		total_gold INTEGER NOT NULL,
		total_damage INTEGER NOT NULL,
		total_cs INTEGER NOT NULL,
		dragon_kills INTEGER NOT NULL,
		baron_kills INTEGER NOT NULL,
		tower_kills INTEGER NOT NULL,
		inhibitor_kills INTEGER NOT NULL,
		inserted_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_player_match_rows_match_id ON player_match_rows (match_id);
`

// SQLiteMirror copies flushed rows into a local SQLite file.
type SQLiteMirror struct {
	db     *sql.DB
	insert string
}

// NewSQLiteMirror opens (or creates) the database at path.
func NewSQLiteMirror(path string) (*SQLiteMirror, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return &SQLiteMirror{
		db:     db,
		insert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", Table, strings.Join(columns, ", "), placeholders),
	}, nil
}

// Name identifies the mirror in logs and metrics.
func (m *SQLiteMirror) Name() string {
	return "sqlite"
}

// WriteRows inserts rows in a single transaction.
func (m *SQLiteMirror) WriteRows(ctx context.Context, rows []storage.PlayerMatchRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, m.insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, rowValues(row)...); err != nil {
			return fmt.Errorf("insert %s: %w", row.MatchID, err)
		}
	}
	return tx.Commit()
}

// CountMatches returns the number of distinct matches mirrored.
func (m *SQLiteMirror) CountMatches(ctx context.Context) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT match_id) FROM player_match_rows`).Scan(&count)
	return count, err
}

// Close closes the database.
func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}
