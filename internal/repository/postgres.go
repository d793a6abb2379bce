package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arcanechess/arcane-server-go/internal/config"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS match_results (
	game_id         TEXT PRIMARY KEY,
	white_player_id TEXT NOT NULL,
	black_player_id TEXT NOT NULL,
	status          TEXT NOT NULL,
	winner          TEXT NOT NULL DEFAULT '',
	win_reason      TEXT NOT NULL DEFAULT '',
	fullmoves       INTEGER NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	ended_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS match_results_white_idx ON match_results (white_player_id, ended_at DESC);
CREATE INDEX IF NOT EXISTS match_results_black_idx ON match_results (black_player_id, ended_at DESC);
`

// NewDB opens and pings a Postgres connection pool.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger != nil {
		logger.Info("connected to postgres",
			zap.String("host", poolCfg.ConnConfig.Host),
			zap.Int32("max_conns", poolCfg.MaxConns),
		)
	}
	return pool, nil
}

// PostgresResultStore archives results in Postgres.
type PostgresResultStore struct {
	pool *pgxpool.Pool
}

// NewPostgresResultStore creates the results table if needed.
func NewPostgresResultStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresResultStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresResultStore{pool: pool}, nil
}

func (s *PostgresResultStore) SaveResult(ctx context.Context, r MatchResult) error {
	if s == nil || s.pool == nil {
		return ErrNotConfigured
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO match_results
		   (game_id, white_player_id, black_player_id, status, winner, win_reason, fullmoves, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (game_id) DO UPDATE SET
		   status = EXCLUDED.status,
		   winner = EXCLUDED.winner,
		   win_reason = EXCLUDED.win_reason,
		   fullmoves = EXCLUDED.fullmoves,
		   ended_at = EXCLUDED.ended_at`,
		r.GameID, r.WhitePlayerID, r.BlackPlayerID, r.Status, r.Winner, r.WinReason,
		r.Fullmoves, r.StartedAt.UTC(), r.EndedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save result %s: %w", r.GameID, err)
	}
	return nil
}

func (s *PostgresResultStore) RecentResults(ctx context.Context, playerID string, limit int) ([]MatchResult, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.pool.Query(ctx,
		`SELECT game_id, white_player_id, black_player_id, status, winner, win_reason, fullmoves, started_at, ended_at
		   FROM match_results
		  WHERE white_player_id = $1 OR black_player_id = $1
		  ORDER BY ended_at DESC
		  LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MatchResult, error) {
		var r MatchResult
		err := row.Scan(&r.GameID, &r.WhitePlayerID, &r.BlackPlayerID, &r.Status, &r.Winner,
			&r.WinReason, &r.Fullmoves, &r.StartedAt, &r.EndedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan results: %w", err)
	}
	return results, nil
}

// Close releases the pool.
func (s *PostgresResultStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}
