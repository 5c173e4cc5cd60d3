// Package repository provides MySQL access to scores, users, and stats.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// MySQL driver registration.
	_ "github.com/go-sql-driver/mysql"

	"github.com/refx-online/omajinai/internal/domain/model"
	"github.com/refx-online/omajinai/pkg/logger"
)

// Connection pool defaults.
const (
	defaultMaxOpenConns    = 16
	defaultMaxIdleConns    = 4
	defaultConnMaxLifetime = 30 * time.Minute
)

// Store wraps the relational database. Streaming reads consume rows
// incrementally; every write is its own atomic statement.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open connects to MySQL at dsn with pooled connections.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	return db, nil
}

// New creates a Store over an open database handle.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: logger.Get().Named("repository"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// eligibleScoresQuery streams every best-status score for a mode joined to
// its beatmap, newest-format mod data included, ordered by descending
// rating. The ordering bounds nothing functionally; it gives stable
// progress semantics for long passes.
const eligibleScoresQuery = `
SELECT scores.score, scores.id, scores.mode, scores.mods, scores.map_md5,
       scores.pp, scores.acc, scores.max_combo,
       scores.ngeki, scores.n300, scores.nkatu, scores.n100, scores.n50, scores.nmiss,
       scores.userid,
       maps.id AS map_id,
       lazer_scores.mods_json,
       CASE WHEN lazer_scores.score_id IS NOT NULL THEN TRUE ELSE FALSE END AS lazer
FROM scores
INNER JOIN maps ON scores.map_md5 = maps.md5
LEFT JOIN lazer_scores ON lazer_scores.score_id = scores.id
WHERE scores.status = 2
  AND scores.mode = ?
ORDER BY scores.pp DESC`

// EachEligibleScore streams every eligible score for mode through fn,
// row by row. A row that fails to scan is logged and skipped; a cursor
// failure aborts the stream and is returned.
func (s *Store) EachEligibleScore(ctx context.Context, mode int, fn func(model.Score)) error {
	rows, err := s.db.QueryContext(ctx, eligibleScoresQuery, mode)
	if err != nil {
		return fmt.Errorf("querying eligible scores for mode %d: %w", mode, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sc       model.Score
			modsJSON sql.NullString
		)
		err := rows.Scan(
			&sc.TotalScore, &sc.ID, &sc.Mode, &sc.Mods, &sc.MapMD5,
			&sc.PP, &sc.Acc, &sc.MaxCombo,
			&sc.Geki, &sc.N300, &sc.Katu, &sc.N100, &sc.N50, &sc.Misses,
			&sc.UserID,
			&sc.MapID,
			&modsJSON,
			&sc.NewFormat,
		)
		if err != nil {
			s.logger.Warn(ctx, "skipping unscannable score row", logger.Error(err))
			continue
		}
		sc.ModsJSON = modsJSON.String
		fn(sc)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("streaming scores for mode %d: %w", mode, err)
	}
	return nil
}

// EachUserID streams every user id through fn.
func (s *Store) EachUserID(ctx context.Context, fn func(int64)) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM users")
	if err != nil {
		return fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			s.logger.Warn(ctx, "skipping unscannable user row", logger.Error(err))
			continue
		}
		fn(id)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("streaming users: %w", err)
	}
	return nil
}

// BestScores returns a user's eligible best scores for mode, ordered by
// descending rating. Only scores on ranked or approved beatmaps count.
func (s *Store) BestScores(ctx context.Context, userID int64, mode int) ([]model.BestScore, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT s.pp, s.acc FROM scores s
INNER JOIN maps m ON s.map_md5 = m.md5
WHERE s.userid = ? AND s.mode = ? AND s.status = 2 AND m.status IN (2, 3)
ORDER BY s.pp DESC`, userID, mode)
	if err != nil {
		return nil, fmt.Errorf("querying best scores for user %d mode %d: %w", userID, mode, err)
	}
	defer rows.Close()

	var best []model.BestScore
	for rows.Next() {
		var b model.BestScore
		if err := rows.Scan(&b.PP, &b.Acc); err != nil {
			return nil, fmt.Errorf("scanning best score: %w", err)
		}
		best = append(best, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("streaming best scores: %w", err)
	}
	return best, nil
}

// UpdateScorePP overwrites a score's rating.
func (s *Store) UpdateScorePP(ctx context.Context, id uint64, pp float64) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE scores SET pp = ? WHERE id = ?", pp, id); err != nil {
		return fmt.Errorf("updating score %d: %w", id, err)
	}
	return nil
}

// UpdateUserStats overwrites a user's aggregate rating and accuracy for mode.
func (s *Store) UpdateUserStats(ctx context.Context, userID int64, mode int, pp, acc float64) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE stats SET pp = ?, acc = ? WHERE id = ? AND mode = ?",
		pp, acc, userID, mode,
	); err != nil {
		return fmt.Errorf("updating stats for user %d mode %d: %w", userID, mode, err)
	}
	return nil
}

// UserInfo reads a user's country and privilege bitmask.
func (s *Store) UserInfo(ctx context.Context, userID int64) (model.UserInfo, error) {
	var info model.UserInfo
	err := s.db.QueryRowContext(ctx,
		"SELECT country, priv FROM users WHERE id = ?", userID,
	).Scan(&info.Country, &info.Privs)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserInfo{}, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return model.UserInfo{}, fmt.Errorf("reading user %d: %w", userID, err)
	}
	return info, nil
}
