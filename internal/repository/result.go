package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by stores that were never opened.
var ErrNotConfigured = errors.New("result store is not configured")

// MatchResult is the archived outcome of a finished match.
type MatchResult struct {
	GameID        string
	WhitePlayerID string
	BlackPlayerID string
	Status        string
	Winner        string
	WinReason     string
	Fullmoves     int
	StartedAt     time.Time
	EndedAt       time.Time
}

// ResultStore archives finished matches.
type ResultStore interface {
	SaveResult(ctx context.Context, result MatchResult) error
	RecentResults(ctx context.Context, playerID string, limit int) ([]MatchResult, error)
	Close() error
}

// NopStore discards results. It backs the "none" driver.
type NopStore struct{}

func (NopStore) SaveResult(context.Context, MatchResult) error { return nil }

func (NopStore) RecentResults(context.Context, string, int) ([]MatchResult, error) {
	return nil, nil
}

func (NopStore) Close() error { return nil }

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
