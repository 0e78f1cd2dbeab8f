package sale

import (
	"context"

	"sale-service/internal/audit"
	"sale-service/internal/model"
)

// ProductCatalog reads product snapshots
type ProductCatalog interface {
	GetProducts(ctx context.Context, ids []uint) (map[uint]model.Product, error)
}

// StockLedger is the only writer of product quantities
type StockLedger interface {
	Reserve(ctx context.Context, productID uint, quantity int) error
	Release(ctx context.Context, productID uint, quantity int, restock bool) error
	Level(ctx context.Context, productID uint) (model.StockLevel, error)
}

// InvoiceSequencer hands out unique invoice numbers for the current day
type InvoiceSequencer interface {
	Next(ctx context.Context) (string, error)
}

// Repository persists sales. MarkReversed must only succeed for a sale that is
// still completed, so concurrent reversals cannot both win.
type Repository interface {
	Create(ctx context.Context, sale *model.Sale) error
	FindByID(ctx context.Context, id uint) (*model.Sale, error)
	FindByInvoice(ctx context.Context, invoice string) (*model.Sale, error)
	MarkReversed(ctx context.Context, id uint, rev model.Reversal) (*model.Sale, error)
}

// AuditEmitter accepts audit events without blocking
type AuditEmitter interface {
	Emit(event audit.Event)
}
