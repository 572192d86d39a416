package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"scorekeeper/internal/constants"
	"scorekeeper/internal/domain"
	"scorekeeper/internal/repository"
)

type StatService struct {
	matchRepo *repository.MatchRepository
	policy    domain.MetricPolicy
	logger    zerolog.Logger
}

func NewStatService(matchRepo *repository.MatchRepository, policy domain.MetricPolicy, logger zerolog.Logger) *StatService {
	return &StatService{matchRepo: matchRepo, policy: policy, logger: logger}
}

// UpdatePlayerStat folds delta into one player's cumulative metrics. Only
// legal while the match is in progress and the player is enrolled.
func (s *StatService) UpdatePlayerStat(ctx context.Context, callerID, matchID, playerID string, delta domain.Metrics, expectedVersion *int64, requestID string) (*repository.CASResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	result, err := s.matchRepo.CompareAndSwap(ctx, matchID, requestID, expectedVersion, func(state *domain.MatchState) error {
		if state.Match.OwnerID != callerID {
			return fmt.Errorf("match %s owned by %s: %w", matchID, state.Match.OwnerID, domain.ErrNotOwner)
		}
		if state.Match.Status.Terminal() {
			return fmt.Errorf("match %s is %s: %w", matchID, state.Match.Status, domain.ErrMatchClosed)
		}
		if state.Match.Status != domain.StatusInProgress {
			return fmt.Errorf("stats may only change while in progress, match is %s: %w",
				state.Match.Status, domain.ErrInvalidState)
		}
		if !state.HasPlayer(playerID) {
			return fmt.Errorf("player %s: %w", playerID, domain.ErrUnknownPlayer)
		}

		stat := state.Stats[playerID]
		merged, err := s.policy.ApplyStatDelta(stat.Metrics, delta)
		if err != nil {
			return err
		}
		stat.Metrics = merged
		state.PutStat(stat)
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("match_id", matchID).Str("player_id", playerID).Msg("stat update rejected")
		return nil, err
	}

	s.logger.Info().
		Str("match_id", matchID).
		Str("player_id", playerID).
		Bool("replayed", result.Replayed).
		Msg("player stat updated")
	return result, nil
}
