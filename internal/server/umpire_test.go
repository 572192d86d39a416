package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorekeeper/internal/config"
	"scorekeeper/internal/database"
	"scorekeeper/internal/domain"
	"scorekeeper/internal/gate"
	"scorekeeper/internal/repository"
	"scorekeeper/internal/service"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	cfg := &config.Config{
		DBPath:             filepath.Join(t.TempDir(), "test.db"),
		NonNegativeMetrics: []string{"runs"},
	}
	db, err := database.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewMatchRepository(db, gate.New(), zerolog.Nop())
	policy := domain.NewMetricPolicy(cfg.NonNegativeMetrics)
	logger := zerolog.Nop()

	srv := NewUmpireServer(
		service.NewMatchService(repo, logger),
		service.NewRosterService(repo, logger),
		service.NewScoreService(repo, policy, logger),
		service.NewStatService(repo, policy, logger),
		logger,
	)

	app := fiber.New()
	srv.RegisterRoutes(app, nil, logger)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, caller string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set("X-User-ID", caller)
		req.Header.Set("X-User-Roles", "umpire")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	payload := map[string]json.RawMessage{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp, payload
}

func createMatch(t *testing.T, app *fiber.App, caller string) domain.Match {
	t.Helper()
	resp, payload := doJSON(t, app, fiber.MethodPost, "/umpire/matches", caller, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var match domain.Match
	require.NoError(t, json.Unmarshal(payload["match"], &match))
	return match
}

func TestCreateMatchRoute(t *testing.T) {
	app := newTestApp(t)

	match := createMatch(t, app, "ump-1")
	assert.NotEmpty(t, match.ID)
	assert.Equal(t, "ump-1", match.OwnerID)
	assert.Equal(t, domain.StatusScheduled, match.Status)
	assert.Equal(t, int64(0), match.Version)
}

func TestRoutesRequireCallerContext(t *testing.T) {
	app := newTestApp(t)

	resp, _ := doJSON(t, app, fiber.MethodPost, "/umpire/matches", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRoutesRequireUmpireRole(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/umpire/matches", nil)
	req.Header.Set("X-User-ID", "viewer-1")
	req.Header.Set("X-User-Roles", "user,player")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestGetMatchNotFoundRoute(t *testing.T) {
	app := newTestApp(t)

	resp, _ := doJSON(t, app, fiber.MethodGet, "/umpire/matches/missing", "ump-1", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestMatchScoringFlow(t *testing.T) {
	app := newTestApp(t)
	match := createMatch(t, app, "ump-1")
	base := "/umpire/matches/" + match.ID

	// enroll
	resp, payload := doJSON(t, app, fiber.MethodPost, base+"/players", "ump-1", fiber.Map{
		"player_id": "p1", "client_request_id": "enroll-1",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var roster []string
	require.NoError(t, json.Unmarshal(payload["roster"], &roster))
	assert.Equal(t, []string{"p1"}, roster)

	// duplicate enrollment with a fresh request id
	resp, _ = doJSON(t, app, fiber.MethodPost, base+"/players", "ump-1", fiber.Map{
		"player_id": "p1", "client_request_id": "enroll-2",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// first score update promotes the match
	scoreBody := fiber.Map{
		"delta":             domain.Metrics{"runs": 4},
		"player_stat_delta": map[string]domain.Metrics{"p1": {"runs": 4}},
		"client_request_id": "r1",
	}
	resp, payload = doJSON(t, app, fiber.MethodPut, base+"/score", "ump-1", scoreBody)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var updated domain.Match
	require.NoError(t, json.Unmarshal(payload["match"], &updated))
	assert.Equal(t, domain.StatusInProgress, updated.Status)
	assert.Equal(t, int64(1), updated.Version)
	assert.Equal(t, domain.Metrics{"runs": 4}, updated.ScoreState)

	// replay of r1 returns the same state, marked replayed
	resp, payload = doJSON(t, app, fiber.MethodPut, base+"/score", "ump-1", scoreBody)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var replayed bool
	require.NoError(t, json.Unmarshal(payload["replayed"], &replayed))
	assert.True(t, replayed)
	require.NoError(t, json.Unmarshal(payload["match"], &updated))
	assert.Equal(t, int64(1), updated.Version)

	// stale optimistic-concurrency token
	resp, _ = doJSON(t, app, fiber.MethodPut, base+"/score", "ump-1", fiber.Map{
		"delta":             domain.Metrics{"runs": 6},
		"expected_version":  0,
		"client_request_id": "r2",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// stat-only update
	resp, payload = doJSON(t, app, fiber.MethodPut, base+"/player-stats/p1", "ump-1", fiber.Map{
		"delta":             domain.Metrics{"balls_faced": 3},
		"client_request_id": "s1",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var stat domain.PlayerStat
	require.NoError(t, json.Unmarshal(payload["player_stat"], &stat))
	assert.Equal(t, int64(3), stat.Metrics["balls_faced"])
	assert.Equal(t, int64(4), stat.Metrics["runs"])

	// complete, then the match is frozen
	resp, _ = doJSON(t, app, fiber.MethodPut, base+"/status", "ump-1", fiber.Map{
		"status": domain.StatusCompleted, "client_request_id": "done-1",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, fiber.MethodPut, base+"/score", "ump-1", fiber.Map{
		"delta": domain.Metrics{"runs": 1}, "client_request_id": "r3",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// reads stay available
	resp, payload = doJSON(t, app, fiber.MethodGet, base, "ump-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(payload["match"], &updated))
	assert.Equal(t, domain.StatusCompleted, updated.Status)
}

func TestOwnershipEnforcedAcrossUmpires(t *testing.T) {
	app := newTestApp(t)
	match := createMatch(t, app, "ump-1")

	resp, _ := doJSON(t, app, fiber.MethodPost, "/umpire/matches/"+match.ID+"/players", "ump-2", fiber.Map{
		"player_id": "p1", "client_request_id": "enroll-1",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestListMatchesScopedToCaller(t *testing.T) {
	app := newTestApp(t)
	mine := createMatch(t, app, "ump-1")
	createMatch(t, app, "ump-2")

	resp, payload := doJSON(t, app, fiber.MethodGet, "/umpire/matches", "ump-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var summaries []domain.MatchSummary
	require.NoError(t, json.Unmarshal(payload["matches"], &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, mine.ID, summaries[0].ID)
}

func TestUpdateScoreRejectsEmptyBody(t *testing.T) {
	app := newTestApp(t)
	match := createMatch(t, app, "ump-1")

	resp, _ := doJSON(t, app, fiber.MethodPut, "/umpire/matches/"+match.ID+"/score", "ump-1", fiber.Map{
		"client_request_id": "r1",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUnknownPlayerMapsToUnprocessable(t *testing.T) {
	app := newTestApp(t)
	match := createMatch(t, app, "ump-1")
	base := "/umpire/matches/" + match.ID

	_, _ = doJSON(t, app, fiber.MethodPost, base+"/players", "ump-1", fiber.Map{
		"player_id": "p1", "client_request_id": "enroll-1",
	})

	resp, _ := doJSON(t, app, fiber.MethodPut, base+"/score", "ump-1", fiber.Map{
		"delta":             domain.Metrics{"runs": 4},
		"player_stat_delta": map[string]domain.Metrics{"ghost": {"runs": 4}},
		"client_request_id": "r1",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}
