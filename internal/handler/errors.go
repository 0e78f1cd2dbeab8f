package handler

import (
	"errors"
	"net/http"

	"sale-service/internal/apperror"
	"sale-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondError writes err as {"error": CODE, "message": text}. Internal
// failures are logged in full and reported with a generic message.
func respondError(c echo.Context, err error) error {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperror.KindInternal {
		logger.FromEcho(c).Error("Request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   apperror.CodeInternal,
			"message": apperror.ErrInternal.Message,
		})
	}

	return c.JSON(statusOf(appErr.Kind), echo.Map{
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}

func statusOf(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindBusinessRule:
		return http.StatusConflict
	case apperror.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
