package sale

import (
	"context"

	"sale-service/internal/apperror"
	"sale-service/internal/audit"
	"sale-service/internal/model"
	"sale-service/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RestockPolicy decides whether reversing sale for amount returns its goods to
// stock.
type RestockPolicy func(sale *model.Sale, amount decimal.Decimal) bool

// FullRefundRestocksAll restores every line only when the whole total is
// refunded. A partial refund is treated as a price adjustment and leaves
// stock alone.
func FullRefundRestocksAll(sale *model.Sale, amount decimal.Decimal) bool {
	return amount.Equal(sale.Total)
}

func alwaysRestock(*model.Sale, decimal.Decimal) bool {
	return true
}

// RefundRequest refunds all or part of a completed sale. A nil Amount refunds
// the full total.
type RefundRequest struct {
	SaleID  uint             `json:"-"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Reason  string           `json:"reason"`
	ActorID uint             `json:"-"`
}

// CancelRequest voids a completed sale and returns all of its stock
type CancelRequest struct {
	SaleID  uint   `json:"-"`
	Reason  string `json:"reason"`
	ActorID uint   `json:"-"`
}

type reversal struct {
	operation string
	status    model.SaleStatus
	okKind    audit.Kind
	failKind  audit.Kind
	restock   RestockPolicy
	// requirePositive rejects an explicit zero amount. Defaulting to the total
	// of a zero-total sale is still a full reversal.
	requirePositive bool
}

var (
	refundReversal = reversal{
		operation:       "refund",
		status:          model.SaleStatusRefunded,
		okKind:          audit.KindSaleRefunded,
		failKind:        audit.KindSaleRefundFailed,
		restock:         FullRefundRestocksAll,
		requirePositive: true,
	}
	cancelReversal = reversal{
		operation: "cancel",
		status:    model.SaleStatusCancelled,
		okKind:    audit.KindSaleCancelled,
		failKind:  audit.KindSaleCancelFailed,
		restock:   alwaysRestock,
	}
)

// RefundSale marks a completed sale refunded. See FullRefundRestocksAll for
// when stock comes back.
func (c *Coordinator) RefundSale(ctx context.Context, req RefundRequest) (*model.Sale, error) {
	return c.reverse(ctx, refundReversal, req.SaleID, req.Amount, req.Reason, req.ActorID)
}

// CancelSale marks a completed sale cancelled and restores all of its stock
func (c *Coordinator) CancelSale(ctx context.Context, req CancelRequest) (*model.Sale, error) {
	return c.reverse(ctx, cancelReversal, req.SaleID, nil, req.Reason, req.ActorID)
}

func (c *Coordinator) reverse(ctx context.Context, op reversal, saleID uint, requested *decimal.Decimal, reason string, actorID uint) (*model.Sale, error) {
	log := logger.FromContext(ctx).With(
		zap.String("operation", op.operation),
		zap.Uint("sale_id", saleID),
		zap.Uint("actor_id", actorID))

	fail := func(err error, amount *decimal.Decimal) (*model.Sale, error) {
		c.metrics.RecordSaleOperation(op.operation, outcomeOf(err))
		if apperror.KindOf(err) == apperror.KindInternal {
			log.Error("Sale reversal failed", zap.Error(err))
		} else {
			log.Info("Sale reversal rejected", zap.String("code", string(apperror.CodeOf(err))), zap.Error(err))
		}
		c.audit.Emit(audit.Event{
			Kind:      op.failKind,
			Action:    op.operation + "_sale",
			Outcome:   audit.OutcomeFailure,
			ActorID:   actorID,
			SaleID:    saleID,
			Amount:    amount,
			ErrorCode: string(apperror.CodeOf(err)),
			Message:   publicMessage(err),
		})
		return nil, err
	}

	sale, err := c.sales.FindByID(ctx, saleID)
	if err != nil {
		return fail(asAppError(err, "failed to load sale"), requested)
	}
	if sale.Status.Reversed() {
		return fail(apperror.AlreadyRefunded(saleID, string(sale.Status)), requested)
	}
	if sale.Status != model.SaleStatusCompleted {
		return fail(apperror.SaleNotCompleted(saleID, string(sale.Status)), requested)
	}

	amount := sale.Total
	if requested != nil {
		amount = money(*requested)
	}
	if amount.IsNegative() || (op.requirePositive && requested != nil && !amount.IsPositive()) {
		return fail(apperror.ErrInvalidRefundAmount, &amount)
	}
	if amount.GreaterThan(sale.Total) {
		return fail(apperror.RefundExceedsTotal(amount, sale.Total), &amount)
	}

	opCtx := context.WithoutCancel(ctx)
	updated, err := c.sales.MarkReversed(opCtx, saleID, model.Reversal{
		Status:  op.status,
		Amount:  amount,
		Reason:  reason,
		ActorID: actorID,
		At:      c.now(),
	})
	if err != nil {
		return fail(asAppError(err, "failed to update sale"), &amount)
	}

	restored, unreleased := false, 0
	if op.restock(sale, amount) {
		restored = true
		unreleased = c.compensate(opCtx, log, reservationsOf(sale.Items))
	}

	c.metrics.RecordSaleOperation(op.operation, "success")
	log.Info("Sale reversed successfully",
		zap.String("invoice_number", updated.InvoiceNumber),
		zap.String("status", string(updated.Status)),
		zap.String("amount", amount.StringFixed(2)),
		zap.Bool("stock_restored", restored),
		zap.Int("unreleased_products", unreleased))

	total := updated.Total
	event := audit.Event{
		Kind:          op.okKind,
		Action:        op.operation + "_sale",
		Outcome:       audit.OutcomeSuccess,
		ActorID:       actorID,
		SaleID:        updated.ID,
		InvoiceNumber: updated.InvoiceNumber,
		Total:         &total,
		Amount:        &amount,
		ItemCount:     updated.ItemCount(),
		PaymentMethod: string(updated.PaymentMethod),
	}
	if unreleased > 0 {
		event.Message = "stock restoration incomplete"
	}
	c.audit.Emit(event)

	return updated, nil
}
