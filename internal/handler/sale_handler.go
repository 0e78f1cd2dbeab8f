package handler

import (
	"context"
	"net/http"
	"strconv"

	"sale-service/internal/apperror"
	"sale-service/internal/middleware"
	"sale-service/internal/model"
	"sale-service/internal/sale"
	"sale-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SaleService is the part of the sale coordinator the HTTP layer calls
type SaleService interface {
	CreateSale(ctx context.Context, req sale.CreateSaleRequest) (*model.Sale, error)
	GetSale(ctx context.Context, id uint) (*model.Sale, error)
	GetSaleByInvoice(ctx context.Context, invoice string) (*model.Sale, error)
	RefundSale(ctx context.Context, req sale.RefundRequest) (*model.Sale, error)
	CancelSale(ctx context.Context, req sale.CancelRequest) (*model.Sale, error)
}

type SaleHandler struct {
	sales SaleService
}

func NewSaleHandler(sales SaleService) *SaleHandler {
	return &SaleHandler{sales: sales}
}

// CreateSale handles POST /api/sales
func (h *SaleHandler) CreateSale(c echo.Context) error {
	log := logger.FromEcho(c)

	var req sale.CreateSaleRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid sale request body", zap.Error(err))
		return respondError(c, apperror.InvalidRequest("invalid request body"))
	}
	req.ActorID, _ = middleware.ActorFromContext(c)

	log.Info("Creating sale",
		zap.Int("lines", len(req.Items)),
		zap.String("payment_method", string(req.PaymentMethod)))

	created, err := h.sales.CreateSale(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// GetSale handles GET /api/sales/:id
func (h *SaleHandler) GetSale(c echo.Context) error {
	id, err := parseID(c, "id", "sale")
	if err != nil {
		return respondError(c, err)
	}

	found, err := h.sales.GetSale(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, found)
}

// GetSaleByInvoice handles GET /api/sales/invoice/:invoice
func (h *SaleHandler) GetSaleByInvoice(c echo.Context) error {
	invoice := c.Param("invoice")
	if invoice == "" {
		return respondError(c, apperror.InvalidRequest("invoice number is required"))
	}

	found, err := h.sales.GetSaleByInvoice(c.Request().Context(), invoice)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, found)
}

// RefundSale handles POST /api/sales/:id/refund. An empty body refunds the
// whole sale.
func (h *SaleHandler) RefundSale(c echo.Context) error {
	id, err := parseID(c, "id", "sale")
	if err != nil {
		return respondError(c, err)
	}

	var req sale.RefundRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			logger.FromEcho(c).Warn("Invalid refund request body", zap.Error(err))
			return respondError(c, apperror.InvalidRequest("invalid request body"))
		}
	}
	req.SaleID = id
	req.ActorID, _ = middleware.ActorFromContext(c)

	refunded, err := h.sales.RefundSale(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, refunded)
}

// CancelSale handles POST /api/sales/:id/cancel
func (h *SaleHandler) CancelSale(c echo.Context) error {
	id, err := parseID(c, "id", "sale")
	if err != nil {
		return respondError(c, err)
	}

	var req sale.CancelRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			logger.FromEcho(c).Warn("Invalid cancel request body", zap.Error(err))
			return respondError(c, apperror.InvalidRequest("invalid request body"))
		}
	}
	req.SaleID = id
	req.ActorID, _ = middleware.ActorFromContext(c)

	cancelled, err := h.sales.CancelSale(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cancelled)
}

func parseID(c echo.Context, param, what string) (uint, error) {
	raw := c.Param(param)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, apperror.InvalidRequest("invalid " + what + " id " + strconv.Quote(raw))
	}
	return uint(id), nil
}
