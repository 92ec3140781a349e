package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/cryptoheroes/internal/domain/model"
	"github.com/okian/cryptoheroes/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS standings (
	player_id   TEXT PRIMARY KEY,
	wins        INTEGER NOT NULL DEFAULT 0,
	losses      INTEGER NOT NULL DEFAULT 0,
	draws       INTEGER NOT NULL DEFAULT 0,
	score       INTEGER NOT NULL DEFAULT 0,
	last_played INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_standings_order ON standings(score DESC, player_id ASC);

CREATE TABLE IF NOT EXISTS battles (
	battle_id             TEXT PRIMARY KEY,
	player_id             TEXT NOT NULL,
	player_character_id   TEXT NOT NULL,
	opponent_character_id TEXT NOT NULL,
	outcome               TEXT NOT NULL,
	player_score          INTEGER NOT NULL DEFAULT 0,
	opponent_score        INTEGER NOT NULL DEFAULT 0,
	mode                  TEXT NOT NULL,
	played_at             INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_battles_player ON battles(player_id, played_at DESC);

CREATE TABLE IF NOT EXISTS character_usage (
	player_id    TEXT NOT NULL,
	character_id TEXT NOT NULL,
	uses         INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (player_id, character_id)
);
`

const standingColumns = `s.player_id, s.wins, s.losses, s.draws, s.score, s.last_played,
	COALESCE((SELECT u.character_id FROM character_usage u WHERE u.player_id = s.player_id
		ORDER BY u.uses DESC, u.character_id ASC LIMIT 1), '')`

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteClock injects the time source used for results without a timestamp.
func WithSQLiteClock(now func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// SQLiteStore is a durable Store backed by an embedded SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// one writer; SQLite serializes writes anyway
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ErrStoreUnavailable, err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record stores res and updates the player's standing in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, res model.GameResult) (model.Standing, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	res, err := normalize(res, s.now)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_result")
		return model.Standing{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Standing{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO battles
			(battle_id, player_id, player_character_id, opponent_character_id, outcome,
			 player_score, opponent_score, mode, played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.BattleID, res.PlayerID, res.PlayerCharacterID, res.OpponentCharacterID, string(res.Outcome),
		res.PlayerScore, res.OpponentScore, res.Mode, res.PlayedAt.UnixNano())
	if err != nil {
		return model.Standing{}, fmt.Errorf("%w: insert battle: %v", ErrStoreUnavailable, err)
	}
	if n, err := inserted.RowsAffected(); err != nil {
		return model.Standing{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	} else if n == 0 {
		metrics.RecordErrorByComponent("repository", "duplicate")
		return model.Standing{}, ErrDuplicateBattle
	}

	var delta model.Standing
	applyOutcome(&delta, res.Outcome, res.PlayedAt)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO standings (player_id, wins, losses, draws, score, last_played)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			draws = draws + excluded.draws,
			score = score + excluded.score,
			last_played = MAX(last_played, excluded.last_played)`,
		res.PlayerID, delta.Wins, delta.Losses, delta.Draws, delta.Score, res.PlayedAt.UnixNano()); err != nil {
		return model.Standing{}, fmt.Errorf("%w: update standing: %v", ErrStoreUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO character_usage (player_id, character_id, uses) VALUES (?, ?, 1)
		ON CONFLICT(player_id, character_id) DO UPDATE SET uses = uses + 1`,
		res.PlayerID, res.PlayerCharacterID); err != nil {
		return model.Standing{}, fmt.Errorf("%w: update usage: %v", ErrStoreUnavailable, err)
	}

	st, err := rankRow(ctx, tx, res.PlayerID)
	if err != nil {
		return model.Standing{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Standing{}, fmt.Errorf("%w: commit: %v", ErrStoreUnavailable, err)
	}
	return st, nil
}

// Rank returns the standing for playerID.
func (s *SQLiteStore) Rank(ctx context.Context, playerID string) (model.Standing, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	return rankRow(ctx, s.db, playerID)
}

// TopN returns the first n standings.
func (s *SQLiteStore) TopN(ctx context.Context, n int) ([]model.Standing, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+standingColumns+` FROM standings s ORDER BY s.score DESC, s.player_id ASC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make([]model.Standing, 0, n)
	for rows.Next() {
		st, err := scanStanding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	ranks(out, 1)
	return out, nil
}

// History returns up to limit results for playerID, newest first.
func (s *SQLiteStore) History(ctx context.Context, playerID string, limit int) ([]model.GameResult, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT battle_id, player_id, player_character_id, opponent_character_id, outcome,
		       player_score, opponent_score, mode, played_at
		FROM battles WHERE player_id = ?
		ORDER BY played_at DESC, rowid DESC LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []model.GameResult
	for rows.Next() {
		var (
			r       model.GameResult
			outcome string
			played  int64
		)
		if err := rows.Scan(&r.BattleID, &r.PlayerID, &r.PlayerCharacterID, &r.OpponentCharacterID,
			&outcome, &r.PlayerScore, &r.OpponentScore, &r.Mode, &played); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		r.Outcome = model.Outcome(outcome)
		r.PlayedAt = time.Unix(0, played).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Count returns the number of players; 0 if the database is unreachable.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM standings`).Scan(&n); err != nil {
		return 0
	}
	return n
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func rankRow(ctx context.Context, q queryer, playerID string) (model.Standing, error) {
	row := q.QueryRowContext(ctx, `SELECT `+standingColumns+`,
		(SELECT COUNT(*) FROM standings o WHERE o.score > s.score) + 1
		FROM standings s WHERE s.player_id = ?`, playerID)

	var (
		st     model.Standing
		played int64
	)
	err := row.Scan(&st.PlayerID, &st.Wins, &st.Losses, &st.Draws, &st.Score, &played,
		&st.FavoriteCharacter, &st.Rank)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Standing{}, ErrNotFound
	}
	if err != nil {
		return model.Standing{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	st.LastPlayed = time.Unix(0, played).UTC()
	return st, nil
}

func scanStanding(rows *sql.Rows) (model.Standing, error) {
	var (
		st     model.Standing
		played int64
	)
	if err := rows.Scan(&st.PlayerID, &st.Wins, &st.Losses, &st.Draws, &st.Score, &played,
		&st.FavoriteCharacter); err != nil {
		return model.Standing{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	st.LastPlayed = time.Unix(0, played).UTC()
	return st, nil
}
