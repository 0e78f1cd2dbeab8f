package middleware

import (
	"net/http"
	"strings"

	"sale-service/pkg/jwtutil"
	"sale-service/pkg/logger"
	"sale-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	userIDKey   = "user_id"
	emailKey    = "email"
	userRoleKey = "user_role"
)

// AuthMiddleware validates the Bearer token and stores the caller identity on
// the echo context.
func AuthMiddleware(jwtUtil *jwtutil.JWTUtil, metrics *prometheus.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)
			metrics.AuthAttemptsCounter.Inc()

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				log.Warn("Missing Authorization header")
				metrics.RecordAuthError("missing_token")
				return unauthorized(c, "missing authorization token")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Warn("Invalid Authorization header format")
				metrics.RecordAuthError("malformed_header")
				return unauthorized(c, "invalid authorization format, expected Bearer token")
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid JWT token", zap.Error(err))
				metrics.RecordAuthError("invalid_token")
				return unauthorized(c, "invalid or expired token")
			}

			c.Set(userIDKey, claims.UserID)
			c.Set(emailKey, claims.Email)
			c.Set(userRoleKey, claims.Role)

			// later log lines of this request carry the actor
			logger.WithEcho(c, log.With(zap.Uint("user_id", claims.UserID)))

			return next(c)
		}
	}
}

// ActorFromContext returns the authenticated user id
func ActorFromContext(c echo.Context) (uint, bool) {
	id, ok := c.Get(userIDKey).(uint)
	return id, ok && id != 0
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"error":   "UNAUTHORIZED",
		"message": msg,
	})
}
