package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"scorekeeper/internal/constants"
	"scorekeeper/internal/domain"
	"scorekeeper/internal/repository"
)

type MatchService struct {
	matchRepo *repository.MatchRepository
	logger    zerolog.Logger
}

func NewMatchService(matchRepo *repository.MatchRepository, logger zerolog.Logger) *MatchService {
	return &MatchService{matchRepo: matchRepo, logger: logger}
}

func (s *MatchService) CreateMatch(ctx context.Context, ownerID string) (*domain.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required: %w", domain.ErrInvalidState)
	}

	match, err := s.matchRepo.Create(ctx, ownerID)
	if err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("failed to create match")
		return nil, err
	}

	s.logger.Info().Str("match_id", match.ID).Str("owner_id", ownerID).Msg("match scheduled")
	return match, nil
}

func (s *MatchService) ListMatches(ctx context.Context, ownerID string) ([]domain.MatchSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	summaries, err := s.matchRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("failed to list matches")
		return nil, err
	}
	return summaries, nil
}

// GetMatch assembles the current snapshot: match record, roster and per-player
// stats. The two reads are independent, so they run in parallel.
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*domain.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	var match *domain.Match
	var stats []domain.PlayerStat

	g.Go(func() error {
		var err error
		match, err = s.matchRepo.GetMatch(gCtx, matchID)
		return err
	})

	g.Go(func() error {
		var err error
		stats, err = s.matchRepo.GetStats(gCtx, matchID)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Debug().Err(err).Str("match_id", matchID).Msg("failed to load match snapshot")
		return nil, err
	}

	snap := domain.NewMatchState(*match, stats).Snapshot()
	return &snap, nil
}
