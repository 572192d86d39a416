package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"scorekeeper/internal/api"
	"scorekeeper/internal/domain"
	"scorekeeper/internal/middleware"
	"scorekeeper/internal/service"
)

const RoleUmpire = "umpire"

type UmpireServer struct {
	matchSvc  *service.MatchService
	rosterSvc *service.RosterService
	scoreSvc  *service.ScoreService
	statSvc   *service.StatService
	logger    zerolog.Logger
}

func NewUmpireServer(
	matchSvc *service.MatchService,
	rosterSvc *service.RosterService,
	scoreSvc *service.ScoreService,
	statSvc *service.StatService,
	logger zerolog.Logger,
) *UmpireServer {
	return &UmpireServer{
		matchSvc:  matchSvc,
		rosterSvc: rosterSvc,
		scoreSvc:  scoreSvc,
		statSvc:   statSvc,
		logger:    logger,
	}
}

// RegisterRoutes mounts the umpire surface. Every route requires a resolved
// caller with the umpire role; ownership of the individual match is checked
// in the services.
func (s *UmpireServer) RegisterRoutes(app *fiber.App, verifier *api.IdentityClient, logger zerolog.Logger) {
	umpire := app.Group("/umpire",
		middleware.CallerContext(verifier, logger),
		middleware.RequireRole(RoleUmpire),
	)

	umpire.Post("/matches", s.CreateMatch)
	umpire.Get("/matches", s.ListMatches)
	umpire.Get("/matches/:matchId", s.GetMatch)
	umpire.Put("/matches/:matchId/score", s.UpdateScore)
	umpire.Put("/matches/:matchId/status", s.SetStatus)
	umpire.Post("/matches/:matchId/players", s.AddPlayer)
	umpire.Put("/matches/:matchId/player-stats/:playerId", s.UpdatePlayerStat)
}

func (s *UmpireServer) CreateMatch(c *fiber.Ctx) error {
	caller := middleware.Caller(c)

	match, err := s.matchSvc.CreateMatch(c.UserContext(), caller.UserID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"match": match})
}

func (s *UmpireServer) ListMatches(c *fiber.Ctx) error {
	caller := middleware.Caller(c)

	summaries, err := s.matchSvc.ListMatches(c.UserContext(), caller.UserID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"matches": summaries})
}

func (s *UmpireServer) GetMatch(c *fiber.Ctx) error {
	snap, err := s.matchSvc.GetMatch(c.UserContext(), c.Params("matchId"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(snap)
}

type addPlayerRequest struct {
	PlayerID        string `json:"player_id"`
	ExpectedVersion *int64 `json:"expected_version"`
	ClientRequestID string `json:"client_request_id"`
}

func (s *UmpireServer) AddPlayer(c *fiber.Ctx) error {
	var req addPlayerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	caller := middleware.Caller(c)
	result, err := s.rosterSvc.AddPlayer(c.UserContext(), caller.UserID, c.Params("matchId"), req.PlayerID, req.ExpectedVersion, req.ClientRequestID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"match":    result.Snapshot.Match,
		"roster":   result.Snapshot.Roster,
		"replayed": result.Replayed,
	})
}

type updateScoreRequest struct {
	Delta           domain.Metrics            `json:"delta"`
	PlayerStatDelta map[string]domain.Metrics `json:"player_stat_delta"`
	ExpectedVersion *int64                    `json:"expected_version"`
	ClientRequestID string                    `json:"client_request_id"`
}

func (s *UmpireServer) UpdateScore(c *fiber.Ctx) error {
	var req updateScoreRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Delta) == 0 && len(req.PlayerStatDelta) == 0 {
		return badRequest(c, "delta or player_stat_delta is required")
	}

	caller := middleware.Caller(c)
	result, err := s.scoreSvc.UpdateScore(c.UserContext(), caller.UserID, c.Params("matchId"), domain.ScoreUpdate{
		Delta:           req.Delta,
		PlayerStatDelta: req.PlayerStatDelta,
		ExpectedVersion: req.ExpectedVersion,
		ClientRequestID: req.ClientRequestID,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"match":    result.Snapshot.Match,
		"stats":    result.Snapshot.Stats,
		"replayed": result.Replayed,
	})
}

type setStatusRequest struct {
	Status          domain.MatchStatus `json:"status"`
	ExpectedVersion *int64             `json:"expected_version"`
	ClientRequestID string             `json:"client_request_id"`
}

func (s *UmpireServer) SetStatus(c *fiber.Ctx) error {
	var req setStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	caller := middleware.Caller(c)
	result, err := s.scoreSvc.SetStatus(c.UserContext(), caller.UserID, c.Params("matchId"), req.Status, req.ExpectedVersion, req.ClientRequestID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"match":    result.Snapshot.Match,
		"replayed": result.Replayed,
	})
}

type updatePlayerStatRequest struct {
	Delta           domain.Metrics `json:"delta"`
	ExpectedVersion *int64         `json:"expected_version"`
	ClientRequestID string         `json:"client_request_id"`
}

func (s *UmpireServer) UpdatePlayerStat(c *fiber.Ctx) error {
	var req updatePlayerStatRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Delta) == 0 {
		return badRequest(c, "delta is required")
	}

	caller := middleware.Caller(c)
	playerID := c.Params("playerId")
	result, err := s.statSvc.UpdatePlayerStat(c.UserContext(), caller.UserID, c.Params("matchId"), playerID, req.Delta, req.ExpectedVersion, req.ClientRequestID)
	if err != nil {
		return s.respondError(c, err)
	}

	stat, ok := result.Snapshot.Stat(playerID)
	if !ok {
		return s.respondError(c, domain.ErrUnknownPlayer)
	}
	return c.JSON(fiber.Map{
		"player_stat": stat,
		"match":       result.Snapshot.Match,
		"replayed":    result.Replayed,
	})
}

// respondError maps the domain taxonomy onto HTTP statuses. Version conflicts
// are routine under contention and reported at debug only.
func (s *UmpireServer) respondError(c *fiber.Ctx, err error) error {
	var status int
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrNotOwner):
		status = fiber.StatusForbidden
	case errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrDuplicateMember),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrMatchClosed):
		status = fiber.StatusConflict
	case errors.Is(err, domain.ErrUnknownPlayer),
		errors.Is(err, domain.ErrInvalidMetricValue):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStorageUnavailable):
		status = fiber.StatusServiceUnavailable
	default:
		status = fiber.StatusInternalServerError
	}

	if status == fiber.StatusInternalServerError || status == fiber.StatusServiceUnavailable {
		l := middleware.Logger(c, s.logger)
		l.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
