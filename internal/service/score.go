package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"scorekeeper/internal/constants"
	"scorekeeper/internal/domain"
	"scorekeeper/internal/repository"
)

// ScoreService owns the match lifecycle and the score mutation path. Score
// merges are additive per dimension; the first accepted score update against
// a scheduled match promotes it to in-progress, provided at least one player
// is enrolled.
type ScoreService struct {
	matchRepo *repository.MatchRepository
	policy    domain.MetricPolicy
	logger    zerolog.Logger
}

func NewScoreService(matchRepo *repository.MatchRepository, policy domain.MetricPolicy, logger zerolog.Logger) *ScoreService {
	return &ScoreService{matchRepo: matchRepo, policy: policy, logger: logger}
}

func (s *ScoreService) UpdateScore(ctx context.Context, callerID, matchID string, op domain.ScoreUpdate) (*repository.CASResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	result, err := s.matchRepo.CompareAndSwap(ctx, matchID, op.ClientRequestID, op.ExpectedVersion, func(state *domain.MatchState) error {
		if state.Match.OwnerID != callerID {
			return fmt.Errorf("match %s owned by %s: %w", matchID, state.Match.OwnerID, domain.ErrNotOwner)
		}

		switch {
		case state.Match.Status.Terminal():
			return fmt.Errorf("match %s is %s: %w", matchID, state.Match.Status, domain.ErrMatchClosed)
		case state.Match.Status == domain.StatusScheduled:
			if len(state.Stats) == 0 {
				return fmt.Errorf("cannot start match %s with empty roster: %w", matchID, domain.ErrInvalidState)
			}
			state.Match.Status = domain.StatusInProgress
		}

		for _, playerID := range sortedKeys(op.PlayerStatDelta) {
			if !state.HasPlayer(playerID) {
				return fmt.Errorf("player %s: %w", playerID, domain.ErrUnknownPlayer)
			}
			stat := state.Stats[playerID]
			merged, err := s.policy.ApplyStatDelta(stat.Metrics, op.PlayerStatDelta[playerID])
			if err != nil {
				return err
			}
			stat.Metrics = merged
			state.PutStat(stat)
		}

		state.Match.ScoreState = domain.MergeMetrics(state.Match.ScoreState, op.Delta)
		state.TouchMatch()
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("match_id", matchID).Msg("score update rejected")
		return nil, err
	}

	s.logger.Info().
		Str("match_id", matchID).
		Int64("version", result.Snapshot.Match.Version).
		Bool("replayed", result.Replayed).
		Msg("score updated")
	return result, nil
}

// SetStatus applies an explicit lifecycle transition: start (scheduled →
// in progress), complete or abandon. Terminal statuses freeze the match.
func (s *ScoreService) SetStatus(ctx context.Context, callerID, matchID string, target domain.MatchStatus, expectedVersion *int64, requestID string) (*repository.CASResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if !target.Valid() || target == domain.StatusScheduled {
		return nil, fmt.Errorf("cannot transition to %q: %w", target, domain.ErrInvalidState)
	}

	result, err := s.matchRepo.CompareAndSwap(ctx, matchID, requestID, expectedVersion, func(state *domain.MatchState) error {
		if state.Match.OwnerID != callerID {
			return fmt.Errorf("match %s owned by %s: %w", matchID, state.Match.OwnerID, domain.ErrNotOwner)
		}
		if state.Match.Status.Terminal() {
			return fmt.Errorf("match %s is %s: %w", matchID, state.Match.Status, domain.ErrMatchClosed)
		}
		if state.Match.Status == target {
			return fmt.Errorf("match %s already %s: %w", matchID, target, domain.ErrInvalidState)
		}
		if !state.Match.Status.CanTransitionTo(target) {
			return fmt.Errorf("cannot transition %s from %s to %s: %w",
				matchID, state.Match.Status, target, domain.ErrInvalidState)
		}
		if target == domain.StatusInProgress && len(state.Stats) == 0 {
			return fmt.Errorf("cannot start match %s with empty roster: %w", matchID, domain.ErrInvalidState)
		}

		state.Match.Status = target
		state.TouchMatch()
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("match_id", matchID).Str("target", string(target)).Msg("status change rejected")
		return nil, err
	}

	s.logger.Info().
		Str("match_id", matchID).
		Str("status", string(result.Snapshot.Match.Status)).
		Int64("version", result.Snapshot.Match.Version).
		Bool("replayed", result.Replayed).
		Msg("match status changed")
	return result, nil
}

func sortedKeys(m map[string]domain.Metrics) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
