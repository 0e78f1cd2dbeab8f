package handler

import (
	"context"
	"net/http"
	"time"

	"sale-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Pinger checks a backing store, e.g. (*sql.DB).PingContext
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	service string
	ping    Pinger
}

// NewHealthHandler builds the health endpoint. ping may be nil when the
// service runs without a database.
func NewHealthHandler(service string, ping Pinger) *HealthHandler {
	return &HealthHandler{service: service, ping: ping}
}

// HealthCheck handles GET /health. With ?check=db it also pings the database.
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	if c.QueryParam("check") == "db" && h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := h.ping(ctx); err != nil {
			logger.FromEcho(c).Error("Database health check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"status":   "unhealthy",
				"service":  h.service,
				"database": "unreachable",
			})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status":   "healthy",
			"service":  h.service,
			"database": "ok",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":  "healthy",
		"service": h.service,
	})
}
