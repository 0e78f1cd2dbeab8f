// Package inventory owns product on-hand quantities. All quantity changes go
// through Ledger.Reserve and Ledger.Release.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sale-service/internal/apperror"
	"sale-service/internal/model"
	"sale-service/prometheus"

	"gorm.io/gorm"
)

// Ledger is the postgres-backed stock ledger
type Ledger struct {
	db      *gorm.DB
	metrics *prometheus.Metrics
	now     func() time.Time
}

// NewLedger creates a stock ledger over the products table
func NewLedger(db *gorm.DB, metrics *prometheus.Metrics) *Ledger {
	return &Ledger{db: db, metrics: metrics, now: time.Now}
}

// Reserve takes quantity units of a product out of stock. The check and the
// decrement are one conditional UPDATE, so concurrent reservations against the
// same row serialize on the row lock and can never overdraw it.
func (l *Ledger) Reserve(ctx context.Context, productID uint, quantity int) error {
	if quantity < 1 {
		return apperror.InvalidQuantity(productID, quantity)
	}
	defer l.metrics.TrackDBOperation("reserve_stock")(time.Now())

	res := l.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND is_active = ? AND quantity >= ?", productID, true, quantity).
		UpdateColumns(map[string]interface{}{
			"quantity":   gorm.Expr("quantity - ?", quantity),
			"updated_at": l.now(),
		})
	if res.Error != nil {
		l.metrics.RecordReservation("error")
		return fmt.Errorf("failed to reserve stock for product %d: %w", productID, res.Error)
	}
	if res.RowsAffected == 1 {
		l.metrics.RecordReservation("reserved")
		return nil
	}

	// Nothing matched: work out whether the product is missing or short.
	var product model.Product
	err := l.db.WithContext(ctx).Select("id", "quantity", "is_active").First(&product, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !product.IsActive) {
		l.metrics.RecordReservation("not_found")
		return apperror.ProductNotFound(productID)
	}
	if err != nil {
		l.metrics.RecordReservation("error")
		return fmt.Errorf("failed to load product %d after rejected reservation: %w", productID, err)
	}

	l.metrics.RecordReservation("insufficient_stock")
	return apperror.InsufficientStock(productID, quantity, product.Quantity)
}

// Release puts quantity units back. restock marks a delivery from a supplier
// and stamps last_restocked_at; returns from refunds and rollbacks pass false.
func (l *Ledger) Release(ctx context.Context, productID uint, quantity int, restock bool) error {
	if quantity < 1 {
		return apperror.InvalidQuantity(productID, quantity)
	}
	defer l.metrics.TrackDBOperation("release_stock")(time.Now())

	now := l.now()
	updates := map[string]interface{}{
		"quantity":   gorm.Expr("quantity + ?", quantity),
		"updated_at": now,
	}
	if restock {
		updates["last_restocked_at"] = now
	}

	res := l.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		UpdateColumns(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to release stock for product %d: %w", productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.ProductNotFound(productID)
	}
	return nil
}

// Level returns the current stock view of a product
func (l *Ledger) Level(ctx context.Context, productID uint) (model.StockLevel, error) {
	defer l.metrics.TrackDBOperation("select_stock")(time.Now())

	var product model.Product
	err := l.db.WithContext(ctx).First(&product, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.StockLevel{}, apperror.ProductNotFound(productID)
	}
	if err != nil {
		return model.StockLevel{}, fmt.Errorf("failed to load product %d: %w", productID, err)
	}
	return model.StockLevelOf(product), nil
}
