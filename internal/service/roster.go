package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"scorekeeper/internal/constants"
	"scorekeeper/internal/domain"
	"scorekeeper/internal/repository"
)

type RosterService struct {
	matchRepo *repository.MatchRepository
	logger    zerolog.Logger
}

func NewRosterService(matchRepo *repository.MatchRepository, logger zerolog.Logger) *RosterService {
	return &RosterService{matchRepo: matchRepo, logger: logger}
}

// AddPlayer enrolls a player and initializes their zero-valued stat row.
// Enrollment is only legal while the match is scheduled or in progress, and
// a retried request (same client request id) returns the recorded result
// instead of a duplicate-member error.
func (s *RosterService) AddPlayer(ctx context.Context, callerID, matchID, playerID string, expectedVersion *int64, requestID string) (*repository.CASResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if playerID == "" {
		return nil, fmt.Errorf("player id is required: %w", domain.ErrUnknownPlayer)
	}

	result, err := s.matchRepo.CompareAndSwap(ctx, matchID, requestID, expectedVersion, func(state *domain.MatchState) error {
		if state.Match.OwnerID != callerID {
			return fmt.Errorf("match %s owned by %s: %w", matchID, state.Match.OwnerID, domain.ErrNotOwner)
		}
		if state.Match.Status != domain.StatusScheduled && state.Match.Status != domain.StatusInProgress {
			return fmt.Errorf("cannot enroll players while match is %s: %w", state.Match.Status, domain.ErrInvalidState)
		}
		if state.HasPlayer(playerID) {
			return fmt.Errorf("player %s: %w", playerID, domain.ErrDuplicateMember)
		}

		state.PutStat(domain.PlayerStat{
			MatchID:  matchID,
			PlayerID: playerID,
			Metrics:  domain.Metrics{},
		})
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("match_id", matchID).Str("player_id", playerID).Msg("enrollment rejected")
		return nil, err
	}

	s.logger.Info().
		Str("match_id", matchID).
		Str("player_id", playerID).
		Bool("replayed", result.Replayed).
		Int("roster_size", len(result.Snapshot.Roster)).
		Msg("player enrolled")
	return result, nil
}
