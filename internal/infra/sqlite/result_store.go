package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"freefall-server/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	player_id TEXT NOT NULL,
	score INTEGER NOT NULL DEFAULT 0,
	questions INTEGER NOT NULL DEFAULT 0,
	correct INTEGER NOT NULL DEFAULT 0,
	best_combo INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME,
	ended_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_results_player ON session_results(player_id, ended_at);

CREATE TABLE IF NOT EXISTS challenge_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	challenge_id TEXT NOT NULL UNIQUE,
	mode TEXT NOT NULL,
	winner_team TEXT NOT NULL DEFAULT '',
	duration REAL NOT NULL DEFAULT 0,
	summary TEXT NOT NULL,
	ended_at DATETIME NOT NULL
);
`

// ResultStore keeps finished sessions and challenges in a local SQLite file for single-node
// deployments.
type ResultStore struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path. ":memory:" is accepted for tests.
func Open(path string) (*ResultStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &ResultStore{conn: conn}, nil
}

func (s *ResultStore) Close() error {
	return s.conn.Close()
}

func (s *ResultStore) RecordSession(ctx context.Context, summary domain.SessionSummary) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO session_results (player_id, score, questions, correct, best_combo, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		summary.PlayerID, summary.Score, summary.QuestionsAnswered, summary.CorrectAnswers,
		summary.BestCombo, summary.StartedAt.UTC(), summary.EndedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session result: %w", err)
	}
	return nil
}

// RecordChallenge stores the summary. Recording the same challenge twice keeps the first row.
func (s *ResultStore) RecordChallenge(ctx context.Context, summary domain.ChallengeSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal challenge summary: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO challenge_results (challenge_id, mode, winner_team, duration, summary, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		summary.ChallengeID, string(summary.Mode), summary.WinningTeamID, summary.Duration, string(raw), summary.EndTime.UTC())
	if err != nil {
		return fmt.Errorf("insert challenge result: %w", err)
	}
	return nil
}

// SessionResults lists the finished sessions of playerID, newest first.
func (s *ResultStore) SessionResults(ctx context.Context, playerID string, limit int) ([]domain.SessionSummary, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT score, questions, correct, best_combo, started_at, ended_at
		 FROM session_results WHERE player_id = ? ORDER BY ended_at DESC, id DESC LIMIT ?`,
		playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query session results: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		summary := domain.SessionSummary{PlayerID: playerID}
		var started, ended time.Time
		if err := rows.Scan(&summary.Score, &summary.QuestionsAnswered, &summary.CorrectAnswers,
			&summary.BestCombo, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan session result: %w", err)
		}
		summary.StartedAt, summary.EndedAt = started, ended
		if summary.QuestionsAnswered > 0 {
			summary.Accuracy = float64(summary.CorrectAnswers) / float64(summary.QuestionsAnswered)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// ChallengeResult returns the stored summary of challengeID.
func (s *ResultStore) ChallengeResult(ctx context.Context, challengeID string) (domain.ChallengeSummary, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx,
		`SELECT summary FROM challenge_results WHERE challenge_id = ?`, challengeID).Scan(&raw)
	if err == sql.ErrNoRows {
		return domain.ChallengeSummary{}, domain.ErrChallengeNotFound
	}
	if err != nil {
		return domain.ChallengeSummary{}, fmt.Errorf("query challenge result: %w", err)
	}
	var summary domain.ChallengeSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return domain.ChallengeSummary{}, fmt.Errorf("unmarshal challenge summary: %w", err)
	}
	return summary, nil
}
