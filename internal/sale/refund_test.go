package sale

import (
	"sync"
	"testing"

	"sale-service/internal/apperror"
	"sale-service/internal/audit"
	"sale-service/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sellOne creates a completed sale of quantity units of a fresh product that
// started with stock units on hand.
func sellOne(t *testing.T, f *fixture, stock, quantity int) (*model.Sale, model.Product) {
	t.Helper()
	p := f.addProduct("widget", "20", "12", stock)
	sale, err := f.coord.CreateSale(f.ctx, CreateSaleRequest{
		Items: []CartItem{{ProductID: p.ID, Quantity: quantity}},
	})
	require.NoError(t, err)
	return sale, p
}

func TestRefundSaleFullRestoresStock(t *testing.T) {
	f := newFixture(t)
	sale, p := sellOne(t, f, 10, 5)
	require.Equal(t, 5, f.quantity(t, p.ID))

	refunded, err := f.coord.RefundSale(f.ctx, RefundRequest{SaleID: sale.ID, Reason: "damaged", ActorID: 9})
	require.NoError(t, err)

	assert.Equal(t, model.SaleStatusRefunded, refunded.Status)
	assert.Equal(t, model.PaymentStatusRefunded, refunded.PaymentStatus)
	require.True(t, refunded.RefundAmount.Valid)
	assertMoney(t, "100", refunded.RefundAmount.Decimal)
	assert.Equal(t, "damaged", refunded.RefundReason)
	require.NotNil(t, refunded.RefundedBy)
	assert.Equal(t, uint(9), *refunded.RefundedBy)
	assert.NotNil(t, refunded.RefundedAt)

	assert.Equal(t, 10, f.quantity(t, p.ID))

	event := f.audit.last()
	assert.Equal(t, audit.KindSaleRefunded, event.Kind)
	require.NotNil(t, event.Amount)
	assertMoney(t, "100", *event.Amount)
	assert.Empty(t, event.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SaleOperationsCounter.WithLabelValues("refund", "success")))
}

func TestRefundSaleExplicitFullAmountRestoresStock(t *testing.T) {
	f := newFixture(t)
	sale, p := sellOne(t, f, 4, 2)

	_, err := f.coord.RefundSale(f.ctx, RefundRequest{SaleID: sale.ID, Amount: dec("40.00")})
	require.NoError(t, err)
	assert.Equal(t, 4, f.quantity(t, p.ID))
}

func TestRefundSalePartialKeepsStock(t *testing.T) {
	f := newFixture(t)
	sale, p := sellOne(t, f, 10, 5)

	refunded, err := f.coord.RefundSale(f.ctx, RefundRequest{SaleID: sale.ID, Amount: dec("30")})
	require.NoError(t, err)

	assert.Equal(t, model.SaleStatusRefunded, refunded.Status)
	assertMoney(t, "30", refunded.RefundAmount.Decimal)
	assert.Equal(t, 5, f.quantity(t, p.ID))
}

func TestRefundSaleRejections(t *testing.T) {
	f := newFixture(t)
	sale, p := sellOne(t, f, 10, 5)

	tests := []struct {
		name   string
		req    RefundRequest
		want   error
		status string
	}{
		{"unknown sale", RefundRequest{SaleID: 999}, apperror.ErrSaleNotFound, "not_found"},
		{"zero amount", RefundRequest{SaleID: sale.ID, Amount: dec("0")}, apperror.ErrInvalidRefundAmount, "rejected"},
		{"negative amount", RefundRequest{SaleID: sale.ID, Amount: dec("-5")}, apperror.ErrInvalidRefundAmount, "rejected"},
		{"above total", RefundRequest{SaleID: sale.ID, Amount: dec("100.01")}, apperror.ErrRefundExceedsTotal, "conflict"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.coord.RefundSale(f.ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, audit.KindSaleRefundFailed, f.audit.last().Kind)
			assert.Equal(t, string(apperror.CodeOf(tt.want)), f.audit.last().ErrorCode)
		})
	}

	stored, err := f.coord.GetSale(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SaleStatusCompleted, stored.Status)
	assert.False(t, stored.RefundAmount.Valid)
	assert.Equal(t, 5, f.quantity(t, p.ID))
}

func TestRefundSaleTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	sale, p := sellOne(t, f, 10, 5)

	_, err := f.coord.RefundSale(f.ctx, RefundRequest{SaleID: sale.ID})
	require.NoError(t, err)

	_, err = f.coord.RefundSale(f.ctx, RefundRequest{SaleID: sale.ID})
	assert.ErrorIs(t, err, apperror.ErrAlreadyRefunded)
	_, err = f.coord.CancelSale(f.ctx, CancelRequest{SaleID: sale.ID})
	assert.ErrorIs(t, err, apperror.ErrAlreadyRefunded)

	assert.Equal(t, 10, f.quantity(t, p.ID), "stock is restored exactly once")
}

func TestRefundSaleRejectsPendingSale(t *testing.T) {
	f := newFixture(t)
	pending := &model.Sale{
		InvoiceNumber: "INV-20260115-0099",
		Status:        model.SaleStatusPending,
		Total:         decimal.NewFromInt(10),
	}
	require.NoError(t, f.store.Create(f.ctx, pending))

	_, err := f.coord.RefundSale(f.ctx, RefundRequest{SaleID: pending.ID})
	assert.ErrorIs(t, err, apperror.ErrSaleNotCompleted)
}

func TestRefundSaleConcurrentRequestsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	sale, p := sellOne(t, f, 10, 5)

	const callers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.RefundSale(f.ctx, RefundRequest{SaleID: sale.ID})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.ErrorIs(t, err, apperror.ErrAlreadyRefunded)
			rejected++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, rejected)
	assert.Equal(t, 10, f.quantity(t, p.ID))
	assert.Equal(t, 1, f.audit.count(audit.KindSaleRefunded))
}

func TestCancelSaleRestoresStock(t *testing.T) {
	f := newFixture(t)
	sale, p := sellOne(t, f, 6, 6)
	require.Equal(t, 0, f.quantity(t, p.ID))

	cancelled, err := f.coord.CancelSale(f.ctx, CancelRequest{SaleID: sale.ID, Reason: "customer left", ActorID: 2})
	require.NoError(t, err)

	assert.Equal(t, model.SaleStatusCancelled, cancelled.Status)
	assertMoney(t, "120", cancelled.RefundAmount.Decimal)
	assert.Equal(t, "customer left", cancelled.RefundReason)
	assert.Equal(t, 6, f.quantity(t, p.ID))
	assert.Equal(t, audit.KindSaleCancelled, f.audit.last().Kind)

	_, err = f.coord.RefundSale(f.ctx, RefundRequest{SaleID: sale.ID})
	assert.ErrorIs(t, err, apperror.ErrAlreadyRefunded)
}

func TestRefundSaleReportsIncompleteRestore(t *testing.T) {
	f := newFixture(t)
	sale, _ := sellOne(t, f, 3, 1)
	f.deps.Ledger = &brokenLedger{StockLedger: f.store}
	f.rebuild()

	refunded, err := f.coord.RefundSale(f.ctx, RefundRequest{SaleID: sale.ID})
	require.NoError(t, err, "the refund stands even if stock could not be returned")
	assert.Equal(t, model.SaleStatusRefunded, refunded.Status)
	assert.Equal(t, "stock restoration incomplete", f.audit.last().Message)
}

func TestFullRefundRestocksAll(t *testing.T) {
	sale := &model.Sale{Total: decimal.RequireFromString("49.90")}

	assert.True(t, FullRefundRestocksAll(sale, decimal.RequireFromString("49.9")))
	assert.False(t, FullRefundRestocksAll(sale, decimal.RequireFromString("49.89")))
}

func TestRefundSaleZeroTotalDefaultsToFullRefund(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct("sample", "15", "6", 5)
	sale, err := f.coord.CreateSale(f.ctx, CreateSaleRequest{
		Items: []CartItem{{ProductID: p.ID, Quantity: 2, Discount: decimal.RequireFromString("30")}},
	})
	require.NoError(t, err)
	assertMoney(t, "0", sale.Total)
	require.Equal(t, 3, f.quantity(t, p.ID))

	_, err = f.coord.RefundSale(f.ctx, RefundRequest{SaleID: sale.ID, Amount: dec("0")})
	assert.ErrorIs(t, err, apperror.ErrInvalidRefundAmount)

	refunded, err := f.coord.RefundSale(f.ctx, RefundRequest{SaleID: sale.ID, Reason: "promo"})
	require.NoError(t, err)
	assert.Equal(t, model.SaleStatusRefunded, refunded.Status)
	assertMoney(t, "0", refunded.RefundAmount.Decimal)
	assert.Equal(t, 5, f.quantity(t, p.ID))
}
