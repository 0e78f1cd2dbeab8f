package sale

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sale-service/internal/apperror"
	"sale-service/internal/model"
	"sale-service/pkg/database"
	"sale-service/prometheus"

	"gorm.io/gorm"
)

// GormRepository stores sales and their line items in postgres
type GormRepository struct {
	db      *gorm.DB
	metrics *prometheus.Metrics
	now     func() time.Time
}

func NewGormRepository(db *gorm.DB, metrics *prometheus.Metrics) *GormRepository {
	return &GormRepository{db: db, metrics: metrics, now: time.Now}
}

// Create inserts the sale and its items in one transaction. A clash on the
// invoice number unique index is reported as DuplicateInvoice.
func (r *GormRepository) Create(ctx context.Context, sale *model.Sale) error {
	defer r.metrics.TrackDBOperation("insert_sale")(time.Now())

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(sale).Error
	})
	if database.IsUniqueViolation(err) {
		return apperror.DuplicateInvoice(sale.InvoiceNumber, err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert sale %s: %w", sale.InvoiceNumber, err)
	}
	return nil
}

func (r *GormRepository) FindByID(ctx context.Context, id uint) (*model.Sale, error) {
	defer r.metrics.TrackDBOperation("select_sale")(time.Now())

	var sale model.Sale
	err := r.withItems(ctx).First(&sale, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.SaleNotFound(strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sale %d: %w", id, err)
	}
	return &sale, nil
}

func (r *GormRepository) FindByInvoice(ctx context.Context, invoice string) (*model.Sale, error) {
	defer r.metrics.TrackDBOperation("select_sale")(time.Now())

	var sale model.Sale
	err := r.withItems(ctx).Where("invoice_number = ?", invoice).First(&sale).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.SaleNotFound(invoice)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sale %s: %w", invoice, err)
	}
	return &sale, nil
}

// MarkReversed applies rev with a conditional update on status = completed.
// Of two concurrent reversals only one matches the row.
func (r *GormRepository) MarkReversed(ctx context.Context, id uint, rev model.Reversal) (*model.Sale, error) {
	defer r.metrics.TrackDBOperation("update_sale")(time.Now())

	res := r.db.WithContext(ctx).
		Model(&model.Sale{}).
		Where("id = ? AND status = ?", id, model.SaleStatusCompleted).
		Updates(map[string]interface{}{
			"status":         rev.Status,
			"payment_status": model.PaymentStatusRefunded,
			"refund_amount":  rev.Amount,
			"refund_reason":  rev.Reason,
			"refunded_by":    rev.ActorID,
			"refunded_at":    rev.At,
			"updated_at":     r.now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update sale %d: %w", id, res.Error)
	}

	sale, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if sale.Status.Reversed() {
			return nil, apperror.AlreadyRefunded(id, string(sale.Status))
		}
		return nil, apperror.SaleNotCompleted(id, string(sale.Status))
	}
	return sale, nil
}

func (r *GormRepository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("line_no")
	})
}
