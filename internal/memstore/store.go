// Package memstore is an in-process implementation of the catalog, stock
// ledger and sale repository. It backs DB_DRIVER=memory and the unit tests of
// the sale pipeline.
package memstore

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"sale-service/internal/apperror"
	"sale-service/internal/model"
)

type Store struct {
	mu       sync.RWMutex
	products map[uint]model.Product
	sales    map[uint]model.Sale
	invoices map[string]uint

	nextProductID uint
	nextSaleID    uint
	nextItemID    uint
	now           func() time.Time
}

func New() *Store {
	return &Store{
		products: make(map[uint]model.Product),
		sales:    make(map[uint]model.Sale),
		invoices: make(map[string]uint),
		now:      time.Now,
	}
}

// AddProduct stores p, assigning an id when p.ID is zero
func (s *Store) AddProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		s.nextProductID++
		p.ID = s.nextProductID
	} else if p.ID > s.nextProductID {
		s.nextProductID = p.ID
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = p
	return p
}

// Product returns a copy of the stored product
func (s *Store) Product(id uint) (model.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *Store) GetProducts(ctx context.Context, ids []uint) (map[uint]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uint]model.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) Reserve(ctx context.Context, productID uint, quantity int) error {
	if quantity < 1 {
		return apperror.InvalidQuantity(productID, quantity)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok || !p.IsActive {
		return apperror.ProductNotFound(productID)
	}
	if p.Quantity < quantity {
		return apperror.InsufficientStock(productID, quantity, p.Quantity)
	}
	p.Quantity -= quantity
	p.UpdatedAt = s.now()
	s.products[productID] = p
	return nil
}

func (s *Store) Release(ctx context.Context, productID uint, quantity int, restock bool) error {
	if quantity < 1 {
		return apperror.InvalidQuantity(productID, quantity)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return apperror.ProductNotFound(productID)
	}
	now := s.now()
	p.Quantity += quantity
	p.UpdatedAt = now
	if restock {
		p.LastRestockedAt = &now
	}
	s.products[productID] = p
	return nil
}

func (s *Store) Level(ctx context.Context, productID uint) (model.StockLevel, error) {
	p, ok := s.Product(productID)
	if !ok {
		return model.StockLevel{}, apperror.ProductNotFound(productID)
	}
	return model.StockLevelOf(p), nil
}

// Create stores sale, assigning ids. A reused invoice number is rejected the
// way the unique index rejects it in postgres.
func (s *Store) Create(ctx context.Context, sale *model.Sale) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.invoices[sale.InvoiceNumber]; taken {
		return apperror.DuplicateInvoice(sale.InvoiceNumber, nil)
	}

	now := s.now()
	s.nextSaleID++
	sale.ID = s.nextSaleID
	sale.CreatedAt, sale.UpdatedAt = now, now
	for i := range sale.Items {
		s.nextItemID++
		sale.Items[i].ID = s.nextItemID
		sale.Items[i].SaleID = sale.ID
	}

	s.sales[sale.ID] = cloneSale(*sale)
	s.invoices[sale.InvoiceNumber] = sale.ID
	return nil
}

func (s *Store) FindByID(ctx context.Context, id uint) (*model.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, apperror.SaleNotFound(strconv.FormatUint(uint64(id), 10))
	}
	out := cloneSale(sale)
	return &out, nil
}

func (s *Store) FindByInvoice(ctx context.Context, invoice string) (*model.Sale, error) {
	s.mu.RLock()
	id, ok := s.invoices[invoice]
	s.mu.RUnlock()
	if !ok {
		return nil, apperror.SaleNotFound(invoice)
	}
	return s.FindByID(ctx, id)
}

// MarkReversed moves a completed sale to rev.Status. Only one caller can win
// the transition.
func (s *Store) MarkReversed(ctx context.Context, id uint, rev model.Reversal) (*model.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, apperror.SaleNotFound(strconv.FormatUint(uint64(id), 10))
	}
	if sale.Status != model.SaleStatusCompleted {
		if sale.Status.Reversed() {
			return nil, apperror.AlreadyRefunded(id, string(sale.Status))
		}
		return nil, apperror.SaleNotCompleted(id, string(sale.Status))
	}

	at, actor := rev.At, rev.ActorID
	sale.Status = rev.Status
	sale.PaymentStatus = model.PaymentStatusRefunded
	sale.RefundAmount.Decimal, sale.RefundAmount.Valid = rev.Amount, true
	sale.RefundReason = rev.Reason
	sale.RefundedBy = &actor
	sale.RefundedAt = &at
	sale.UpdatedAt = s.now()
	s.sales[id] = sale

	out := cloneSale(sale)
	return &out, nil
}

// Sales returns copies of all stored sales ordered by id
func (s *Store) Sales() []model.Sale {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		out = append(out, cloneSale(sale))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneSale(sale model.Sale) model.Sale {
	sale.Items = append([]model.SaleItem(nil), sale.Items...)
	return sale
}
