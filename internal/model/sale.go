package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus is the durable lifecycle state of a sale
type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusRefunded  SaleStatus = "refunded"
	SaleStatusCancelled SaleStatus = "cancelled"
)

// Reversed reports whether the sale has already been refunded or cancelled
func (s SaleStatus) Reversed() bool {
	return s == SaleStatusRefunded || s == SaleStatusCancelled
}

// PaymentMethod is how the customer paid
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentMobileWallet PaymentMethod = "mobile_wallet"
)

// Valid reports whether m is a supported payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentBankTransfer, PaymentMobileWallet:
		return true
	}
	return false
}

// PaymentStatus tracks settlement of the sale total
type PaymentStatus string

const (
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Sale is a completed transaction record. Only the status and refund fields
// change after creation.
type Sale struct {
	ID            uint            `json:"id" gorm:"primarykey"`
	InvoiceNumber string          `json:"invoice_number" gorm:"type:varchar(32);uniqueIndex;not null"`
	Items         []SaleItem      `json:"items" gorm:"foreignKey:SaleID"`
	Subtotal      decimal.Decimal `json:"subtotal" gorm:"type:numeric(14,2);not null"`
	Discount      decimal.Decimal `json:"discount" gorm:"type:numeric(14,2);not null"`
	Tax           decimal.Decimal `json:"tax" gorm:"type:numeric(14,2);not null"`
	Total         decimal.Decimal `json:"total" gorm:"type:numeric(14,2);not null"`
	GrossProfit   decimal.Decimal `json:"gross_profit" gorm:"type:numeric(14,2);not null"`
	NetProfit     decimal.Decimal `json:"net_profit" gorm:"type:numeric(14,2);not null"`
	PaymentMethod PaymentMethod   `json:"payment_method" gorm:"type:varchar(32);not null"`
	PaymentStatus PaymentStatus   `json:"payment_status" gorm:"type:varchar(16);not null"`
	Status        SaleStatus      `json:"status" gorm:"type:varchar(16);index;not null"`
	Notes         string          `json:"notes,omitempty" gorm:"type:text"`
	CreatedBy     uint            `json:"created_by" gorm:"index"`

	RefundAmount decimal.NullDecimal `json:"refund_amount" gorm:"type:numeric(14,2)"`
	RefundReason string              `json:"refund_reason,omitempty" gorm:"type:text"`
	RefundedBy   *uint               `json:"refunded_by,omitempty"`
	RefundedAt   *time.Time          `json:"refunded_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemCount returns the number of units sold
func (s *Sale) ItemCount() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

// SaleItem is one priced line of a sale. UnitCost is the product cost at the
// moment of sale.
type SaleItem struct {
	ID          uint            `json:"id" gorm:"primarykey"`
	SaleID      uint            `json:"sale_id" gorm:"index;not null"`
	LineNo      int             `json:"line_no" gorm:"not null"`
	ProductID   uint            `json:"product_id" gorm:"index;not null"`
	ProductName string          `json:"product_name" gorm:"type:varchar(255)"`
	Quantity    int             `json:"quantity" gorm:"not null;check:chk_sale_items_quantity,quantity >= 1"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(14,2);not null"`
	UnitCost    decimal.Decimal `json:"unit_cost" gorm:"type:numeric(14,2);not null"`
	Subtotal    decimal.Decimal `json:"subtotal" gorm:"type:numeric(14,2);not null"`
	Discount    decimal.Decimal `json:"discount" gorm:"type:numeric(14,2);not null"`
	Tax         decimal.Decimal `json:"tax" gorm:"type:numeric(14,2);not null"`
	Total       decimal.Decimal `json:"total" gorm:"type:numeric(14,2);not null"`
	Profit      decimal.Decimal `json:"profit" gorm:"type:numeric(14,2);not null"`
}

// Reversal describes the refund or cancellation applied to a completed sale
type Reversal struct {
	Status  SaleStatus
	Amount  decimal.Decimal
	Reason  string
	ActorID uint
	At      time.Time
}
