package sale

import (
	"context"
	"time"

	"sale-service/internal/apperror"
	"sale-service/internal/audit"
	"sale-service/internal/model"
	"sale-service/pkg/logger"

	"go.uber.org/zap"
)

// Restock records a delivery of quantity units of a product
func (c *Coordinator) Restock(ctx context.Context, productID uint, quantity int, actorID uint) (model.StockLevel, error) {
	log := logger.FromContext(ctx).With(zap.Uint("product_id", productID), zap.Uint("actor_id", actorID))

	event := audit.Event{
		Action:    "restock",
		ActorID:   actorID,
		ProductID: productID,
		Quantity:  quantity,
	}

	var (
		before model.StockLevel
		err    error
	)
	if quantity < 1 {
		err = apperror.InvalidQuantity(productID, quantity)
	} else if before, err = c.ledger.Level(ctx, productID); err == nil {
		err = c.ledger.Release(context.WithoutCancel(ctx), productID, quantity, true)
	}
	if err != nil {
		err = asAppError(err, "failed to restock product")
		c.metrics.RecordSaleOperation("restock", outcomeOf(err))
		log.Warn("Restock failed", zap.Int("quantity", quantity), zap.Error(err))

		event.Kind, event.Outcome = audit.KindStockRestockFailed, audit.OutcomeFailure
		event.ErrorCode, event.Message = string(apperror.CodeOf(err)), publicMessage(err)
		c.audit.Emit(event)
		return model.StockLevel{}, err
	}

	c.metrics.RecordSaleOperation("restock", "success")
	event.Kind, event.Outcome = audit.KindStockRestocked, audit.OutcomeSuccess
	c.audit.Emit(event)

	// the delivery is applied; a failed re-read must not report it as failed
	level, err := c.ledger.Level(context.WithoutCancel(ctx), productID)
	if err != nil {
		log.Warn("Failed to reload stock level after restock", zap.Error(err))
		now := time.Now()
		level = before
		level.Quantity += quantity
		level.Status = model.ClassifyStock(level.Quantity, level.ReorderLevel)
		level.LastRestockedAt = &now
	}
	log.Info("Product restocked",
		zap.Int("quantity", quantity),
		zap.Int("on_hand", level.Quantity),
		zap.String("status", string(level.Status)))
	return level, nil
}

// StockLevel returns the current stock view of a product
func (c *Coordinator) StockLevel(ctx context.Context, productID uint) (model.StockLevel, error) {
	level, err := c.ledger.Level(ctx, productID)
	if err != nil {
		return model.StockLevel{}, asAppError(err, "failed to load stock level")
	}
	return level, nil
}
