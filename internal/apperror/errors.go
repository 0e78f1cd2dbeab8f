// Package apperror defines the typed errors of the sale pipeline. Every error
// carries a Kind that decides how callers treat it and a Code that names the
// exact failure.
package apperror

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind groups codes by how the caller should react
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindBusinessRule
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBusinessRule:
		return "business_rule"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Code names a specific failure
type Code string

const (
	CodeEmptyCart            Code = "EMPTY_CART"
	CodeInvalidQuantity      Code = "INVALID_QUANTITY"
	CodeInvalidPricing       Code = "INVALID_PRICING"
	CodeInvalidPaymentMethod Code = "INVALID_PAYMENT_METHOD"
	CodeInvalidRefundAmount  Code = "INVALID_REFUND_AMOUNT"
	CodeInvalidRequest       Code = "INVALID_REQUEST"

	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeAlreadyRefunded    Code = "ALREADY_REFUNDED"
	CodeRefundExceedsTotal Code = "REFUND_EXCEEDS_TOTAL"
	CodeSaleNotCompleted   Code = "SALE_NOT_COMPLETED"

	CodeProductNotFound Code = "PRODUCT_NOT_FOUND"
	CodeSaleNotFound    Code = "SALE_NOT_FOUND"

	CodeDuplicateInvoice Code = "DUPLICATE_INVOICE"
	CodeInternal         Code = "INTERNAL"
)

// Error is the error type returned across the sale pipeline
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so the sentinels below work with
// errors.Is regardless of message detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrEmptyCart            = &Error{Kind: KindValidation, Code: CodeEmptyCart, Message: "cart is empty"}
	ErrInvalidQuantity      = &Error{Kind: KindValidation, Code: CodeInvalidQuantity, Message: "quantity must be at least 1"}
	ErrInvalidPricing       = &Error{Kind: KindValidation, Code: CodeInvalidPricing, Message: "monetary values must not be negative"}
	ErrInvalidPaymentMethod = &Error{Kind: KindValidation, Code: CodeInvalidPaymentMethod, Message: "unsupported payment method"}
	ErrInvalidRefundAmount  = &Error{Kind: KindValidation, Code: CodeInvalidRefundAmount, Message: "refund amount must be positive"}
	ErrInvalidRequest       = &Error{Kind: KindValidation, Code: CodeInvalidRequest, Message: "invalid request"}
	ErrInsufficientStock    = &Error{Kind: KindBusinessRule, Code: CodeInsufficientStock, Message: "insufficient stock"}
	ErrAlreadyRefunded      = &Error{Kind: KindBusinessRule, Code: CodeAlreadyRefunded, Message: "sale is already refunded or cancelled"}
	ErrRefundExceedsTotal   = &Error{Kind: KindBusinessRule, Code: CodeRefundExceedsTotal, Message: "refund amount exceeds sale total"}
	ErrSaleNotCompleted     = &Error{Kind: KindBusinessRule, Code: CodeSaleNotCompleted, Message: "sale is not completed"}
	ErrProductNotFound      = &Error{Kind: KindNotFound, Code: CodeProductNotFound, Message: "product not found"}
	ErrSaleNotFound         = &Error{Kind: KindNotFound, Code: CodeSaleNotFound, Message: "sale not found"}
	ErrDuplicateInvoice     = &Error{Kind: KindInternal, Code: CodeDuplicateInvoice, Message: "invoice number already used"}
	ErrInternal             = &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error"}
)

func InvalidQuantity(productID uint, quantity int) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidQuantity,
		Message: fmt.Sprintf("quantity for product %d must be at least 1, got %d", productID, quantity)}
}

func InvalidPricing(field string, value decimal.Decimal) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidPricing,
		Message: fmt.Sprintf("%s must not be negative, got %s", field, value.StringFixed(2))}
}

func InvalidPaymentMethod(method string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidPaymentMethod,
		Message: fmt.Sprintf("unsupported payment method %q", method)}
}

func InvalidRequest(msg string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidRequest, Message: msg}
}

func InsufficientStock(productID uint, requested, available int) *Error {
	return &Error{Kind: KindBusinessRule, Code: CodeInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", productID, requested, available)}
}

func AlreadyRefunded(saleID uint, status string) *Error {
	return &Error{Kind: KindBusinessRule, Code: CodeAlreadyRefunded,
		Message: fmt.Sprintf("sale %d is already %s", saleID, status)}
}

func RefundExceedsTotal(amount, total decimal.Decimal) *Error {
	return &Error{Kind: KindBusinessRule, Code: CodeRefundExceedsTotal,
		Message: fmt.Sprintf("refund amount %s exceeds sale total %s", amount.StringFixed(2), total.StringFixed(2))}
}

func SaleNotCompleted(saleID uint, status string) *Error {
	return &Error{Kind: KindBusinessRule, Code: CodeSaleNotCompleted,
		Message: fmt.Sprintf("sale %d is %s, only completed sales can be reversed", saleID, status)}
}

func ProductNotFound(productID uint) *Error {
	return &Error{Kind: KindNotFound, Code: CodeProductNotFound,
		Message: fmt.Sprintf("product %d not found or inactive", productID)}
}

func SaleNotFound(ref string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeSaleNotFound,
		Message: fmt.Sprintf("sale %s not found", ref)}
}

func DuplicateInvoice(invoice string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeDuplicateInvoice,
		Message: fmt.Sprintf("invoice number %s already used", invoice), Err: err}
}

// Internal wraps an infrastructure failure. Message is safe to show callers,
// err is kept for logs only.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err, KindInternal for untyped errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, CodeInternal for untyped errors
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
