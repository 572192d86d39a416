package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"scorekeeper/internal/api"
	"scorekeeper/internal/config"
	"scorekeeper/internal/constants"
	fxmodules "scorekeeper/internal/fx"
	"scorekeeper/internal/middleware"
	"scorekeeper/internal/server"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	umpireServer *server.UmpireServer,
	verifier *api.IdentityClient,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	app := fiber.New(fiber.Config{
		AppName:               "scorekeeper",
		DisableStartupMessage: true,
	})

	app.Use(middleware.RequestID(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-User-Roles",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	umpireServer.RegisterRoutes(app, verifier, logger)

	addr := fmt.Sprintf(":%s", cfg.ServerPort)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", addr).Msg("server starting")
				if err := app.Listen(addr); err != nil {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")

			if err := app.ShutdownWithTimeout(constants.ShutdownTimeout); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}

			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
