package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var sqliteSchema string

// SQLiteResultStore archives results in an embedded SQLite database.
type SQLiteResultStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens the database at path and applies the schema. ":memory:" is
// accepted for tests.
func OpenSQLite(path string) (*SQLiteResultStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single writer; also keeps an in-memory database alive on one connection.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteResultStore{sqlDB: sqlDB}, nil
}

func (s *SQLiteResultStore) SaveResult(ctx context.Context, r MatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return ErrNotConfigured
	}
	if strings.TrimSpace(r.GameID) == "" {
		return fmt.Errorf("game id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO match_results (
		   game_id, white_player_id, black_player_id, status, winner, win_reason, fullmoves, started_at, ended_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(game_id) DO UPDATE SET
		   status = excluded.status,
		   winner = excluded.winner,
		   win_reason = excluded.win_reason,
		   fullmoves = excluded.fullmoves,
		   ended_at = excluded.ended_at`,
		r.GameID, r.WhitePlayerID, r.BlackPlayerID, r.Status, r.Winner, r.WinReason,
		r.Fullmoves, toMillis(r.StartedAt), toMillis(r.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("save result %s: %w", r.GameID, err)
	}
	return nil
}

func (s *SQLiteResultStore) RecentResults(ctx context.Context, playerID string, limit int) ([]MatchResult, error) {
	if s == nil || s.sqlDB == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT game_id, white_player_id, black_player_id, status, winner, win_reason, fullmoves, started_at, ended_at
		   FROM match_results
		  WHERE white_player_id = ? OR black_player_id = ?
		  ORDER BY ended_at DESC, game_id
		  LIMIT ?`,
		playerID, playerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []MatchResult
	for rows.Next() {
		var (
			r                 MatchResult
			started, finished int64
		)
		if err := rows.Scan(&r.GameID, &r.WhitePlayerID, &r.BlackPlayerID, &r.Status, &r.Winner,
			&r.WinReason, &r.Fullmoves, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.StartedAt = fromMillis(started)
		r.EndedAt = fromMillis(finished)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// Close closes the SQLite handle.
func (s *SQLiteResultStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
