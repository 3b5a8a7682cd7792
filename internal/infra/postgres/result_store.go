package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"freefall-server/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	kindSession   = "session"
	kindChallenge = "challenge"
)

// ResultStore persists finished solo sessions and challenges into game_results.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) RecordSession(ctx context.Context, summary domain.SessionSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal session result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO game_results (kind, subject_id, score, payload, finished_at) VALUES ($1, $2, $3, $4, $5)`,
		kindSession, summary.PlayerID, summary.Score, payload, summary.EndedAt)
	if err != nil {
		return fmt.Errorf("insert session result: %w", err)
	}
	return nil
}

func (s *ResultStore) RecordChallenge(ctx context.Context, summary domain.ChallengeSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal challenge result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO game_results (kind, subject_id, winner, score, payload, finished_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		kindChallenge, summary.ChallengeID, summary.WinningTeamID, winningScore(summary), payload, summary.EndTime)
	if err != nil {
		return fmt.Errorf("insert challenge result: %w", err)
	}
	return nil
}

// RecentSessions returns the latest finished sessions of playerID, newest first.
func (s *ResultStore) RecentSessions(ctx context.Context, playerID string, limit int) ([]domain.SessionSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM game_results WHERE kind=$1 AND subject_id=$2 ORDER BY finished_at DESC LIMIT $3`,
		kindSession, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query session results: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan session result: %w", err)
		}
		var summary domain.SessionSummary
		if err := json.Unmarshal(raw, &summary); err != nil {
			return nil, fmt.Errorf("unmarshal session result: %w", err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

func winningScore(summary domain.ChallengeSummary) int {
	best := 0
	for _, t := range summary.Teams {
		if t.TeamID == summary.WinningTeamID {
			return t.TotalScore
		}
		best = max(best, t.TotalScore)
	}
	return best
}
