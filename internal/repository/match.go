package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"scorekeeper/internal/constants"
	"scorekeeper/internal/domain"
	"scorekeeper/internal/gate"
)

// MatchRepository is the sole mutation path for matches and player stats.
// Every write goes through CompareAndSwap so the version precondition and
// the idempotency bookkeeping commit in the same transaction.
type MatchRepository struct {
	db     *sql.DB
	gate   *gate.MatchGate
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, g *gate.MatchGate, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		db:     sqlDB,
		gate:   g,
		logger: logger,
	}
}

// CASResult carries the committed snapshot; Replayed marks a request that was
// already applied, in which case Snapshot is the recorded prior result.
type CASResult struct {
	Snapshot domain.Snapshot
	Replayed bool
}

func (r *MatchRepository) Create(ctx context.Context, ownerID string) (*domain.Match, error) {
	id, err := gonanoid.New(constants.MatchIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate match id: %w", err)
	}

	now := time.Now().UTC()
	match := &domain.Match{
		ID:         id,
		OwnerID:    ownerID,
		Status:     domain.StatusScheduled,
		ScoreState: domain.Metrics{},
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO matches (id, owner_id, status, score_state, version, created_at, updated_at)
		VALUES (?, ?, ?, '{}', 0, ?, ?)
	`, match.ID, match.OwnerID, match.Status, match.CreatedAt, match.UpdatedAt)
	if err != nil {
		return nil, storageErr("insert match", err)
	}

	r.logger.Info().Str("match_id", match.ID).Str("owner_id", ownerID).Msg("match created")
	return match, nil
}

func (r *MatchRepository) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	match, err := scanMatch(r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, status, score_state, version, created_at, updated_at
		FROM matches WHERE id = ?
	`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", matchID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("select match", err)
	}
	return match, nil
}

func (r *MatchRepository) GetStats(ctx context.Context, matchID string) ([]domain.PlayerStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT match_id, player_id, metrics, version, created_at, updated_at
		FROM player_stats WHERE match_id = ? ORDER BY player_id
	`, matchID)
	if err != nil {
		return nil, storageErr("select player stats", err)
	}
	defer rows.Close()

	var stats []domain.PlayerStat
	for rows.Next() {
		var st domain.PlayerStat
		var metrics string
		if err := rows.Scan(&st.MatchID, &st.PlayerID, &metrics, &st.Version, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, storageErr("scan player stat", err)
		}
		if err := json.Unmarshal([]byte(metrics), &st.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics for player %s: %w", st.PlayerID, err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate player stats", err)
	}
	return stats, nil
}

func (r *MatchRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.MatchSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.status, m.score_state, m.version, m.created_at, m.updated_at,
		       (SELECT COUNT(*) FROM player_stats ps WHERE ps.match_id = m.id) AS roster_size
		FROM matches m
		WHERE m.owner_id = ?
		ORDER BY m.created_at DESC, m.id
		LIMIT ?
	`, ownerID, constants.ListMatchesLimit)
	if err != nil {
		return nil, storageErr("list matches", err)
	}
	defer rows.Close()

	summaries := []domain.MatchSummary{}
	for rows.Next() {
		var s domain.MatchSummary
		var scoreState string
		if err := rows.Scan(&s.ID, &s.Status, &scoreState, &s.Version, &s.CreatedAt, &s.UpdatedAt, &s.RosterSize); err != nil {
			return nil, storageErr("scan match summary", err)
		}
		var score domain.Metrics
		if err := json.Unmarshal([]byte(scoreState), &score); err != nil {
			return nil, fmt.Errorf("failed to decode score state for match %s: %w", s.ID, err)
		}
		for _, v := range score {
			s.ScoreTotal += v
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate match summaries", err)
	}
	return summaries, nil
}

// CompareAndSwap loads the match and its stats, runs mutate against them,
// verifies the version precondition, bumps versions and persists atomically.
// When requestID is non-empty and was already applied for this match, the
// recorded result is returned unchanged and mutate never runs. The per-match
// gate is held for the duration, so waiters on the same match queue while
// other matches proceed.
func (r *MatchRepository) CompareAndSwap(ctx context.Context, matchID, requestID string, expectedVersion *int64, mutate func(*domain.MatchState) error) (*CASResult, error) {
	release := r.gate.Acquire(matchID)
	defer release()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	if requestID != "" {
		var result string
		err := tx.QueryRowContext(ctx, `
			SELECT result FROM applied_requests WHERE match_id = ? AND request_id = ?
		`, matchID, requestID).Scan(&result)
		if err == nil {
			var snap domain.Snapshot
			if err := json.Unmarshal([]byte(result), &snap); err != nil {
				return nil, fmt.Errorf("failed to decode applied request %s: %w", requestID, err)
			}
			r.logger.Debug().Str("match_id", matchID).Str("request_id", requestID).Msg("request replayed")
			return &CASResult{Snapshot: snap, Replayed: true}, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, storageErr("select applied request", err)
		}
	}

	match, err := scanMatch(tx.QueryRowContext(ctx, `
		SELECT id, owner_id, status, score_state, version, created_at, updated_at
		FROM matches WHERE id = ?
	`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", matchID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("select match", err)
	}

	if expectedVersion != nil && *expectedVersion != match.Version {
		return nil, fmt.Errorf("expected version %d, stored version %d: %w",
			*expectedVersion, match.Version, domain.ErrVersionConflict)
	}

	stats, err := r.statsInTx(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}

	state := domain.NewMatchState(*match, stats)
	if err := mutate(state); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if state.MatchDirty() {
		state.Match.Version = match.Version + 1
		state.Match.UpdatedAt = now

		scoreState, err := json.Marshal(state.Match.ScoreState)
		if err != nil {
			return nil, fmt.Errorf("failed to encode score state: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE matches SET status = ?, score_state = ?, version = ?, updated_at = ?
			WHERE id = ? AND version = ?
		`, state.Match.Status, string(scoreState), state.Match.Version, now, matchID, match.Version)
		if err != nil {
			return nil, storageErr("update match", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, storageErr("update match", err)
		}
		if affected != 1 {
			return nil, fmt.Errorf("match %s changed underneath: %w", matchID, domain.ErrVersionConflict)
		}
	}

	for _, playerID := range state.DirtyStats() {
		st := state.Stats[playerID]
		if state.HadPlayer(playerID) {
			st.Version++
		} else {
			st.CreatedAt = now
		}
		st.UpdatedAt = now
		state.Stats[playerID] = st

		metrics, err := json.Marshal(st.Metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metrics for player %s: %w", playerID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO player_stats (match_id, player_id, metrics, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (match_id, player_id) DO UPDATE SET
				metrics = excluded.metrics,
				version = excluded.version,
				updated_at = excluded.updated_at
		`, st.MatchID, st.PlayerID, string(metrics), st.Version, st.CreatedAt, st.UpdatedAt)
		if err != nil {
			return nil, storageErr("upsert player stat", err)
		}
	}

	snap := state.Snapshot()

	if requestID != "" {
		result, err := json.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("failed to encode applied request result: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO applied_requests (match_id, request_id, result, applied_at)
			VALUES (?, ?, ?, ?)
		`, matchID, requestID, string(result), now)
		if err != nil {
			return nil, storageErr("insert applied request", err)
		}
	}

	if state.Match.Status.Terminal() {
		if err := r.sweepAppliedRequests(ctx, tx, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit transaction", err)
	}

	r.logger.Debug().
		Str("match_id", matchID).
		Int64("version", state.Match.Version).
		Str("status", string(state.Match.Status)).
		Msg("match mutation committed")

	return &CASResult{Snapshot: snap}, nil
}

func (r *MatchRepository) statsInTx(ctx context.Context, tx *sql.Tx, matchID string) ([]domain.PlayerStat, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT match_id, player_id, metrics, version, created_at, updated_at
		FROM player_stats WHERE match_id = ? ORDER BY player_id
	`, matchID)
	if err != nil {
		return nil, storageErr("select player stats", err)
	}
	defer rows.Close()

	var stats []domain.PlayerStat
	for rows.Next() {
		var st domain.PlayerStat
		var metrics string
		if err := rows.Scan(&st.MatchID, &st.PlayerID, &metrics, &st.Version, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, storageErr("scan player stat", err)
		}
		if err := json.Unmarshal([]byte(metrics), &st.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics for player %s: %w", st.PlayerID, err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate player stats", err)
	}
	return stats, nil
}

// Idempotency bookkeeping is bounded: once a match has been terminal past the
// retention window its applied request rows can no longer be replayed against
// anything mutable, so they are dropped.
func (r *MatchRepository) sweepAppliedRequests(ctx context.Context, tx *sql.Tx, now time.Time) error {
	cutoff := now.Add(-constants.AppliedRequestRetention)
	res, err := tx.ExecContext(ctx, `
		DELETE FROM applied_requests WHERE match_id IN (
			SELECT id FROM matches WHERE status IN (?, ?) AND updated_at < ?
		)
	`, domain.StatusCompleted, domain.StatusAbandoned, cutoff)
	if err != nil {
		return storageErr("sweep applied requests", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		r.logger.Debug().Int64("rows", n).Msg("swept applied requests for closed matches")
	}
	return nil
}

func scanMatch(row *sql.Row) (*domain.Match, error) {
	var m domain.Match
	var scoreState string
	if err := row.Scan(&m.ID, &m.OwnerID, &m.Status, &scoreState, &m.Version, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(scoreState), &m.ScoreState); err != nil {
		return nil, fmt.Errorf("failed to decode score state: %w", err)
	}
	return &m, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrStorageUnavailable, err))
}
