// Package sale turns carts into persisted sales and reverses them. Stock is
// reserved before a sale is written and released again whenever a later step
// fails, so a sale is never left half applied.
package sale

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"sale-service/internal/apperror"
	"sale-service/internal/audit"
	"sale-service/internal/model"
	"sale-service/pkg/database"
	"sale-service/pkg/logger"
	"sale-service/prometheus"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Dependencies are the collaborators of a Coordinator
type Dependencies struct {
	Catalog   ProductCatalog
	Ledger    StockLedger
	Sequencer InvoiceSequencer
	Sales     Repository
	Audit     AuditEmitter
	Metrics   *prometheus.Metrics
}

// Options tunes retries and compensation
type Options struct {
	// CommitAttempts bounds invoice assignment plus insert
	CommitAttempts int
	RetryBackoff   time.Duration
	// RollbackTimeout bounds a whole compensation pass
	RollbackTimeout time.Duration
	// ReleaseAttempts bounds retries of a single compensating release
	ReleaseAttempts int
}

// Coordinator runs the sale creation and reversal flows
type Coordinator struct {
	catalog   ProductCatalog
	ledger    StockLedger
	sequencer InvoiceSequencer
	sales     Repository
	audit     AuditEmitter
	metrics   *prometheus.Metrics
	opts      Options
	now       func() time.Time
}

func NewCoordinator(deps Dependencies, opts Options) *Coordinator {
	if opts.CommitAttempts < 1 {
		opts.CommitAttempts = 1
	}
	if opts.ReleaseAttempts < 1 {
		opts.ReleaseAttempts = 3
	}
	if opts.RollbackTimeout <= 0 {
		opts.RollbackTimeout = 10 * time.Second
	}

	return &Coordinator{
		catalog:   deps.Catalog,
		ledger:    deps.Ledger,
		sequencer: deps.Sequencer,
		sales:     deps.Sales,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		opts:      opts,
		now:       time.Now,
	}
}

// CreateSaleRequest is a cart submitted for checkout
type CreateSaleRequest struct {
	Items         []CartItem          `json:"items"`
	Discount      decimal.Decimal     `json:"discount"`
	Tax           decimal.Decimal     `json:"tax"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	Notes         string              `json:"notes"`
	ActorID       uint                `json:"-"`
}

// CreateSale prices the cart, reserves its stock, numbers and stores the sale.
// Once stock reservation starts the caller's cancellation is no longer
// observed: the flow finishes or rolls back completely.
func (c *Coordinator) CreateSale(ctx context.Context, req CreateSaleRequest) (*model.Sale, error) {
	log := logger.FromContext(ctx).With(zap.Uint("actor_id", req.ActorID))
	log.Debug("Validating cart", zap.Int("lines", len(req.Items)))

	draft, err := c.buildDraft(ctx, req)
	if err != nil {
		c.createFailed(log, req, nil, err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		err = apperror.Internal("request cancelled before stock was reserved", err)
		c.createFailed(log, req, draft, err)
		return nil, err
	}
	opCtx := context.WithoutCancel(ctx)

	reserved, err := c.reserve(opCtx, log, draft.Reservations())
	if err != nil {
		c.createFailed(log, req, draft, err)
		return nil, err
	}
	log.Debug("Stock reserved", zap.Int("products", len(reserved)))

	sale, err := c.commit(opCtx, log, draft, req)
	if err != nil {
		if errors.Is(err, errOutcomeUnknown) {
			log.Error("Failed to confirm sale, leaving stock reserved", zap.Error(err))
			c.metrics.RecordCompensation("skipped")
		} else {
			log.Error("Failed to record sale, rolling back stock", zap.Error(err))
			c.compensate(opCtx, log, reserved)
		}
		err = apperror.Internal("failed to record sale", err)
		c.createFailed(log, req, draft, err)
		return nil, err
	}

	c.metrics.RecordSaleOperation("create", "success")
	c.metrics.SaleRevenueCounter.Add(sale.Total.InexactFloat64())
	log.Info("Sale created successfully",
		zap.Uint("sale_id", sale.ID),
		zap.String("invoice_number", sale.InvoiceNumber),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.Int("item_count", sale.ItemCount()),
		zap.String("payment_method", string(sale.PaymentMethod)))

	total := sale.Total
	c.audit.Emit(audit.Event{
		Kind:          audit.KindSaleCreated,
		Action:        "create_sale",
		Outcome:       audit.OutcomeSuccess,
		ActorID:       req.ActorID,
		SaleID:        sale.ID,
		InvoiceNumber: sale.InvoiceNumber,
		Total:         &total,
		ItemCount:     sale.ItemCount(),
		PaymentMethod: string(sale.PaymentMethod),
	})
	return sale, nil
}

// GetSale returns a sale with its line items
func (c *Coordinator) GetSale(ctx context.Context, id uint) (*model.Sale, error) {
	sale, err := c.sales.FindByID(ctx, id)
	if err != nil {
		return nil, asAppError(err, "failed to load sale")
	}
	return sale, nil
}

// GetSaleByInvoice returns the sale carrying the invoice number
func (c *Coordinator) GetSaleByInvoice(ctx context.Context, invoice string) (*model.Sale, error) {
	sale, err := c.sales.FindByInvoice(ctx, invoice)
	if err != nil {
		return nil, asAppError(err, "failed to load sale")
	}
	return sale, nil
}

func (c *Coordinator) buildDraft(ctx context.Context, req CreateSaleRequest) (*Draft, error) {
	ids := make([]uint, 0, len(req.Items))
	seen := make(map[uint]bool, len(req.Items))
	for _, item := range req.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := c.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, apperror.Internal("failed to load products", err)
	}

	return BuildDraft(BuildInput{
		Items:         req.Items,
		Discount:      req.Discount,
		Tax:           req.Tax,
		PaymentMethod: req.PaymentMethod,
	}, products)
}

// reserve takes stock for every product in plan order. On the first failure
// it gives back what it already took and returns that failure.
func (c *Coordinator) reserve(ctx context.Context, log *zap.Logger, plan []Reservation) ([]Reservation, error) {
	done := make([]Reservation, 0, len(plan))
	for _, r := range plan {
		if err := c.ledger.Reserve(ctx, r.ProductID, r.Quantity); err != nil {
			log.Warn("Stock reservation failed, rolling back",
				zap.Uint("product_id", r.ProductID),
				zap.Int("quantity", r.Quantity),
				zap.Int("already_reserved", len(done)),
				zap.Error(err))
			c.compensate(ctx, log, done)
			return nil, asAppError(err, "failed to reserve stock")
		}
		done = append(done, r)
	}
	return done, nil
}

// errOutcomeUnknown marks a commit that may or may not have been recorded.
// Its stock stays reserved rather than risk releasing units a sale owns.
var errOutcomeUnknown = errors.New("sale outcome unknown")

// commit assigns an invoice number and inserts the sale. Only transient
// storage errors and invoice collisions are retried; each attempt takes a new
// number, the old one stays burned.
func (c *Coordinator) commit(ctx context.Context, log *zap.Logger, draft *Draft, req CreateSaleRequest) (*model.Sale, error) {
	var lastErr error
	for attempt := 1; attempt <= c.opts.CommitAttempts; attempt++ {
		if attempt > 1 {
			c.metrics.CommitRetriesCounter.Inc()
			if err := sleep(ctx, c.opts.RetryBackoff*time.Duration(attempt-1)); err != nil {
				return nil, lastErr
			}
		}

		start := time.Now()
		invoice, err := c.sequencer.Next(ctx)
		c.metrics.InvoiceAssignDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			lastErr = fmt.Errorf("failed to obtain invoice number: %w", err)
			if !database.IsTransient(err) {
				return nil, lastErr
			}
			log.Warn("Invoice sequencer unavailable, retrying", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		sale := draft.NewSale(invoice, req.ActorID, req.Notes)
		err = c.sales.Create(ctx, sale)
		if err == nil {
			return sale, nil
		}

		lastErr = err
		if database.IsTransient(err) {
			// the insert may have landed before the error reached us
			recorded, lookupErr := c.sales.FindByInvoice(ctx, invoice)
			switch {
			case lookupErr == nil:
				log.Warn("Sale recorded despite commit error",
					zap.String("invoice_number", invoice),
					zap.Error(err))
				return recorded, nil
			case !errors.Is(lookupErr, apperror.ErrSaleNotFound):
				return nil, fmt.Errorf("%w (invoice %s): %w", errOutcomeUnknown, invoice, err)
			}
		} else if !errors.Is(err, apperror.ErrDuplicateInvoice) {
			return nil, err
		}
		log.Warn("Sale commit failed, retrying",
			zap.String("invoice_number", invoice),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return nil, lastErr
}

// compensate releases reserved stock without the restock flag. It runs to
// completion on its own deadline whatever happened to the request. It returns
// the number of releases that could not be applied.
func (c *Coordinator) compensate(ctx context.Context, log *zap.Logger, reserved []Reservation) int {
	if len(reserved) == 0 {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.RollbackTimeout)
	defer cancel()

	failed := 0
	for _, r := range reserved {
		if err := c.release(ctx, r); err != nil {
			failed++
			c.metrics.RecordCompensation("failed")
			log.Error("Failed to release stock",
				zap.Uint("product_id", r.ProductID),
				zap.Int("quantity", r.Quantity),
				zap.Error(err))
			continue
		}
		c.metrics.RecordCompensation("released")
	}
	return failed
}

func (c *Coordinator) release(ctx context.Context, r Reservation) error {
	var err error
	for attempt := 1; attempt <= c.opts.ReleaseAttempts; attempt++ {
		if err = c.ledger.Release(ctx, r.ProductID, r.Quantity, false); err == nil {
			return nil
		}
		if apperror.KindOf(err) != apperror.KindInternal {
			return err
		}
		if attempt < c.opts.ReleaseAttempts {
			if waitErr := sleep(ctx, c.opts.RetryBackoff*time.Duration(attempt)); waitErr != nil {
				return err
			}
		}
	}
	return err
}

func (c *Coordinator) createFailed(log *zap.Logger, req CreateSaleRequest, draft *Draft, err error) {
	c.metrics.RecordSaleOperation("create", outcomeOf(err))
	if apperror.KindOf(err) != apperror.KindInternal {
		log.Info("Sale rejected", zap.String("code", string(apperror.CodeOf(err))), zap.Error(err))
	}

	event := audit.Event{
		Kind:          audit.KindSaleCreateFailed,
		Action:        "create_sale",
		Outcome:       audit.OutcomeFailure,
		ActorID:       req.ActorID,
		PaymentMethod: string(req.PaymentMethod),
		ErrorCode:     string(apperror.CodeOf(err)),
		Message:       publicMessage(err),
	}
	if draft != nil {
		total := draft.Total
		event.Total = &total
		event.ItemCount = draft.ItemCount()
		event.PaymentMethod = string(draft.PaymentMethod)
	}
	c.audit.Emit(event)
}

// reservationsOf sums quantities per product in ascending product id
func reservationsOf(items []model.SaleItem) []Reservation {
	byProduct := make(map[uint]int, len(items))
	for _, item := range items {
		byProduct[item.ProductID] += item.Quantity
	}

	out := make([]Reservation, 0, len(byProduct))
	for id, qty := range byProduct {
		out = append(out, Reservation{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// asAppError keeps typed errors as they are and hides anything else behind
// an internal error with a safe message.
func asAppError(err error, msg string) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Internal(msg, err)
}

func publicMessage(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return apperror.ErrInternal.Message
}

func outcomeOf(err error) string {
	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		return "rejected"
	case apperror.KindBusinessRule:
		return "conflict"
	case apperror.KindNotFound:
		return "not_found"
	default:
		return "error"
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
