package handler

import (
	"context"
	"net/http"

	"sale-service/internal/apperror"
	"sale-service/internal/middleware"
	"sale-service/internal/model"
	"sale-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StockService reads and replenishes product stock
type StockService interface {
	StockLevel(ctx context.Context, productID uint) (model.StockLevel, error)
	Restock(ctx context.Context, productID uint, quantity int, actorID uint) (model.StockLevel, error)
}

// RestockRequest is the body of POST /api/products/:id/restock
type RestockRequest struct {
	Quantity int `json:"quantity"`
}

type StockHandler struct {
	stock StockService
}

func NewStockHandler(stock StockService) *StockHandler {
	return &StockHandler{stock: stock}
}

// GetStock handles GET /api/products/:id/stock
func (h *StockHandler) GetStock(c echo.Context) error {
	id, err := parseID(c, "id", "product")
	if err != nil {
		return respondError(c, err)
	}

	level, err := h.stock.StockLevel(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, level)
}

// Restock handles POST /api/products/:id/restock
func (h *StockHandler) Restock(c echo.Context) error {
	id, err := parseID(c, "id", "product")
	if err != nil {
		return respondError(c, err)
	}

	var req RestockRequest
	if err := c.Bind(&req); err != nil {
		logger.FromEcho(c).Warn("Invalid restock request body", zap.Error(err))
		return respondError(c, apperror.InvalidRequest("invalid request body"))
	}
	actorID, _ := middleware.ActorFromContext(c)

	level, err := h.stock.Restock(c.Request().Context(), id, req.Quantity, actorID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, level)
}
