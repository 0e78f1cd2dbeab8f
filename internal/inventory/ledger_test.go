package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"sale-service/internal/apperror"
	"sale-service/internal/model"
	"sale-service/pkg/database/databasetest"
	"sale-service/prometheus"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedProduct(t *testing.T, db *gorm.DB, sku string, quantity int) model.Product {
	t.Helper()
	p := model.Product{
		Name:      "Product " + sku,
		SKU:       sku,
		Price:     decimal.NewFromInt(100),
		CostPrice: decimal.NewFromInt(60),
		Quantity:  quantity,
		IsActive:  true,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func quantityOf(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var p model.Product
	require.NoError(t, db.First(&p, id).Error)
	return p.Quantity
}

func newTestLedger(db *gorm.DB) *Ledger {
	return NewLedger(db, prometheus.NewMetrics("test", promclient.NewRegistry()))
}

func TestLedgerReserveAndRelease(t *testing.T) {
	db := databasetest.Open(t)
	ledger := newTestLedger(db)
	ctx := context.Background()
	p := seedProduct(t, db, "A-1", 5)

	require.NoError(t, ledger.Reserve(ctx, p.ID, 2))
	assert.Equal(t, 3, quantityOf(t, db, p.ID))

	err := ledger.Reserve(ctx, p.ID, 4)
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.Equal(t, 3, quantityOf(t, db, p.ID), "rejected reservation must not write")

	require.NoError(t, ledger.Release(ctx, p.ID, 2, false))
	level, err := ledger.Level(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, level.Quantity)
	assert.Nil(t, level.LastRestockedAt, "sale-driven release is not a restock")

	require.NoError(t, ledger.Release(ctx, p.ID, 10, true))
	level, err = ledger.Level(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, level.Quantity)
	assert.NotNil(t, level.LastRestockedAt)
}

func TestLedgerReserveUnknownOrInactive(t *testing.T) {
	db := databasetest.Open(t)
	ledger := newTestLedger(db)
	ctx := context.Background()

	assert.ErrorIs(t, ledger.Reserve(ctx, 9999, 1), apperror.ErrProductNotFound)

	p := seedProduct(t, db, "B-1", 5)
	require.NoError(t, db.Model(&p).Update("is_active", false).Error)
	assert.ErrorIs(t, ledger.Reserve(ctx, p.ID, 1), apperror.ErrProductNotFound)

	assert.ErrorIs(t, ledger.Release(ctx, 9999, 1, false), apperror.ErrProductNotFound)
}

func TestLedgerConcurrentReservationsNeverOverdraw(t *testing.T) {
	db := databasetest.Open(t)
	ledger := newTestLedger(db)
	p := seedProduct(t, db, "C-1", 10)

	var wg sync.WaitGroup
	var ok, short int64
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.Reserve(context.Background(), p.ID, 1)
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case apperror.CodeOf(err) == apperror.CodeInsufficientStock:
				atomic.AddInt64(&short, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), ok)
	assert.Equal(t, int64(15), short)
	assert.Equal(t, 0, quantityOf(t, db, p.ID))
}

func TestCatalogGetProducts(t *testing.T) {
	db := databasetest.Open(t)
	catalog := NewCatalog(db, prometheus.NewMetrics("test", promclient.NewRegistry()))
	a := seedProduct(t, db, "D-1", 1)
	b := seedProduct(t, db, "D-2", 2)

	products, err := catalog.GetProducts(context.Background(), []uint{a.ID, b.ID, 4242})
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.True(t, products[a.ID].Price.Equal(decimal.NewFromInt(100)))

	empty, err := catalog.GetProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
