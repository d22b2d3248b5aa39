package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RouletteResult is one recorded spin outcome
type RouletteResult struct {
	ID          int64     `json:"id"`
	JoinCode    string    `json:"joinCode"`
	Winner      string    `json:"winner"`
	PlayerCount int       `json:"playerCount"`
	SpunAt      time.Time `json:"spunAt"`
}

// ResultStore persists roulette outcomes. Writes are best-effort from the
// caller's point of view: a spin that already committed is never rolled back
// because its history row failed.
type ResultStore struct {
	db *sql.DB
}

// NewResultStore creates a result store on db
func NewResultStore(db *sql.DB) *ResultStore {
	return &ResultStore{db: db}
}

// EnsureSchema creates the results table if it does not exist
func (s *ResultStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS roulette_results (
			id BIGSERIAL PRIMARY KEY,
			join_code TEXT NOT NULL,
			winner TEXT NOT NULL,
			player_count INT NOT NULL,
			spun_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create roulette_results table: %w", err)
	}
	return nil
}

// RecordWinner inserts one spin outcome
func (s *ResultStore) RecordWinner(ctx context.Context, joinCode, winner string, playerCount int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO roulette_results (join_code, winner, player_count) VALUES ($1, $2, $3)`,
		joinCode, winner, playerCount)
	if err != nil {
		return fmt.Errorf("failed to record roulette winner: %w", err)
	}
	return nil
}

// RecentWinners returns the latest spin outcomes, newest first
func (s *ResultStore) RecentWinners(ctx context.Context, limit int) ([]RouletteResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, join_code, winner, player_count, spun_at
		 FROM roulette_results ORDER BY spun_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query roulette winners: %w", err)
	}
	defer rows.Close()

	var results []RouletteResult
	for rows.Next() {
		var r RouletteResult
		if err := rows.Scan(&r.ID, &r.JoinCode, &r.Winner, &r.PlayerCount, &r.SpunAt); err != nil {
			return nil, fmt.Errorf("failed to scan roulette result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
