package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind names the operation an event reports on
type Kind string

const (
	KindSaleCreated        Kind = "sale.created"
	KindSaleCreateFailed   Kind = "sale.create_failed"
	KindSaleRefunded       Kind = "sale.refunded"
	KindSaleRefundFailed   Kind = "sale.refund_failed"
	KindSaleCancelled      Kind = "sale.cancelled"
	KindSaleCancelFailed   Kind = "sale.cancel_failed"
	KindStockRestocked     Kind = "stock.restocked"
	KindStockRestockFailed Kind = "stock.restock_failed"
)

// Outcome is the result of the audited operation
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event describes the outcome of one state-changing call
type Event struct {
	ID            string           `json:"id"`
	Kind          Kind             `json:"kind"`
	Action        string           `json:"action"`
	Outcome       Outcome          `json:"outcome"`
	ActorID       uint             `json:"actor_id"`
	SaleID        uint             `json:"sale_id,omitempty"`
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	ProductID     uint             `json:"product_id,omitempty"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	ItemCount     int              `json:"item_count,omitempty"`
	Quantity      int              `json:"quantity,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`
	ErrorCode     string           `json:"error_code,omitempty"`
	Message       string           `json:"message,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}
