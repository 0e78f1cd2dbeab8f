package sale

import (
	"fmt"

	"sale-service/internal/apperror"
	"sale-service/internal/model"

	"github.com/shopspring/decimal"
)

// CartItem is one requested line. UnitPrice overrides the catalog price when set.
type CartItem struct {
	ProductID uint             `json:"product_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Discount  decimal.Decimal  `json:"discount"`
	Tax       decimal.Decimal  `json:"tax"`
}

// BuildInput is everything the builder prices, apart from the product snapshot
type BuildInput struct {
	Items         []CartItem
	Discount      decimal.Decimal
	Tax           decimal.Decimal
	PaymentMethod model.PaymentMethod
}

// Draft is a fully priced sale that holds no stock and has no invoice number yet
type Draft struct {
	Items         []model.SaleItem
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	GrossProfit   decimal.Decimal
	NetProfit     decimal.Decimal
	PaymentMethod model.PaymentMethod
}

// Reservation is the total quantity of one product a draft needs
type Reservation struct {
	ProductID uint
	Quantity  int
}

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// BuildDraft prices a cart against a product snapshot. It has no side effects.
func BuildDraft(in BuildInput, products map[uint]model.Product) (*Draft, error) {
	if len(in.Items) == 0 {
		return nil, apperror.ErrEmptyCart
	}

	method := in.PaymentMethod
	if method == "" {
		method = model.PaymentCash
	}
	if !method.Valid() {
		return nil, apperror.InvalidPaymentMethod(string(method))
	}

	draft := &Draft{
		Items:         make([]model.SaleItem, 0, len(in.Items)),
		Discount:      money(in.Discount),
		Tax:           money(in.Tax),
		PaymentMethod: method,
	}
	totalCost := decimal.Zero

	for i, line := range in.Items {
		lineNo := i + 1
		if line.Quantity < 1 {
			return nil, apperror.InvalidQuantity(line.ProductID, line.Quantity)
		}

		product, ok := products[line.ProductID]
		if !ok || !product.IsActive {
			return nil, apperror.ProductNotFound(line.ProductID)
		}

		price := product.Price
		if line.UnitPrice != nil {
			price = *line.UnitPrice
		}
		price = money(price)
		cost := money(product.CostPrice)
		discount := money(line.Discount)
		tax := money(line.Tax)

		if err := nonNegative(
			field{fmt.Sprintf("line %d unit price", lineNo), price},
			field{fmt.Sprintf("line %d unit cost", lineNo), cost},
			field{fmt.Sprintf("line %d discount", lineNo), discount},
			field{fmt.Sprintf("line %d tax", lineNo), tax},
		); err != nil {
			return nil, err
		}

		qty := decimal.NewFromInt(int64(line.Quantity))
		subtotal := price.Mul(qty)
		total := subtotal.Sub(discount).Add(tax)
		lineCost := cost.Mul(qty)

		if err := nonNegative(field{fmt.Sprintf("line %d total", lineNo), total}); err != nil {
			return nil, err
		}

		item := model.SaleItem{
			LineNo:      lineNo,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   price,
			UnitCost:    cost,
			Subtotal:    subtotal,
			Discount:    discount,
			Tax:         tax,
			Total:       total,
			Profit:      total.Sub(lineCost),
		}
		draft.Items = append(draft.Items, item)

		draft.Subtotal = draft.Subtotal.Add(item.Total)
		draft.GrossProfit = draft.GrossProfit.Add(item.Profit)
		totalCost = totalCost.Add(lineCost)
	}

	if err := nonNegative(field{"discount", draft.Discount}, field{"tax", draft.Tax}); err != nil {
		return nil, err
	}

	draft.Total = draft.Subtotal.Sub(draft.Discount).Add(draft.Tax)
	if err := nonNegative(field{"total", draft.Total}); err != nil {
		return nil, err
	}
	draft.NetProfit = draft.Total.Sub(totalCost)

	return draft, nil
}

// Reservations returns the quantity needed per product in ascending product
// id order. Every multi-product sale locks rows in this order.
func (d *Draft) Reservations() []Reservation {
	return reservationsOf(d.Items)
}

// ItemCount returns the number of units in the draft
func (d *Draft) ItemCount() int {
	n := 0
	for _, item := range d.Items {
		n += item.Quantity
	}
	return n
}

// NewSale turns the draft into a completed sale record. Each call returns
// fresh line items so a failed insert never leaks ids into a retry.
func (d *Draft) NewSale(invoice string, actorID uint, notes string) *model.Sale {
	items := make([]model.SaleItem, len(d.Items))
	copy(items, d.Items)

	return &model.Sale{
		InvoiceNumber: invoice,
		Items:         items,
		Subtotal:      d.Subtotal,
		Discount:      d.Discount,
		Tax:           d.Tax,
		Total:         d.Total,
		GrossProfit:   d.GrossProfit,
		NetProfit:     d.NetProfit,
		PaymentMethod: d.PaymentMethod,
		PaymentStatus: model.PaymentStatusPaid,
		Status:        model.SaleStatusCompleted,
		Notes:         notes,
		CreatedBy:     actorID,
	}
}

type field struct {
	name  string
	value decimal.Decimal
}

func nonNegative(fields ...field) error {
	for _, f := range fields {
		if f.value.IsNegative() {
			return apperror.InvalidPricing(f.name, f.value)
		}
	}
	return nil
}
