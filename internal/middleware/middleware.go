package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"scorekeeper/internal/api"
)

const (
	callerKey    = "caller"
	requestIDKey = "request_id"
	loggerKey    = "logger"
)

// RequestID tags every request with an X-Request-ID (caller-supplied or
// generated) and stores a sub-logger carrying it for the handlers.
func RequestID(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("X-Request-ID", requestID)

		loggerWithID := logger.With().Str("request_id", requestID).Logger()
		c.Locals(requestIDKey, requestID)
		c.Locals(loggerKey, loggerWithID)

		loggerWithID.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("remote_addr", c.IP()).
			Msg("request started")

		err := c.Next()

		duration := time.Since(start)
		loggerWithID.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Int64("duration_ms", duration.Milliseconds()).
			Dur("duration", duration).
			Msg("request completed")

		return err
	}
}

func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func Logger(c *fiber.Ctx, fallback zerolog.Logger) zerolog.Logger {
	if l, ok := c.Locals(loggerKey).(zerolog.Logger); ok {
		return l
	}
	return fallback
}

// CallerContext resolves the caller identity. With a verifier configured the
// bearer token is validated against the identity service; without one the
// gateway in front of this service is trusted to have done that already and
// to have injected X-User-ID / X-User-Roles.
func CallerContext(verifier *api.IdentityClient, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if verifier != nil {
			auth := c.Get("Authorization")
			if auth == "" {
				return unauthorized(c, "missing bearer token")
			}
			token := strings.TrimPrefix(auth, "Bearer ")
			identity, err := verifier.Verify(c.UserContext(), token)
			if err != nil {
				l := Logger(c, logger)
				l.Warn().Err(err).Msg("token verification failed")
				return unauthorized(c, "invalid credentials")
			}
			c.Locals(callerKey, *identity)
			return c.Next()
		}

		userID := c.Get("X-User-ID")
		if userID == "" {
			return unauthorized(c, "missing X-User-ID, request must come through the gateway")
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(callerKey, api.Identity{UserID: userID, Roles: roles})
		return c.Next()
	}
}

// RequireRole guards a route group on a resolved role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := c.Locals(callerKey).(api.Identity)
		if !ok {
			return unauthorized(c, "no caller context")
		}
		if !caller.HasRole(role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "role " + role + " required",
			})
		}
		return c.Next()
	}
}

func Caller(c *fiber.Ctx) api.Identity {
	caller, _ := c.Locals(callerKey).(api.Identity)
	return caller
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
}
