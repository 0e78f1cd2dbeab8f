package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents the catalog item whose on-hand quantity the stock ledger owns
type Product struct {
	ID              uint            `json:"id" gorm:"primarykey"`
	Name            string          `json:"name" gorm:"type:varchar(255);not null"`
	SKU             string          `json:"sku" gorm:"type:varchar(100);uniqueIndex;not null"`
	Price           decimal.Decimal `json:"price" gorm:"type:numeric(14,2);not null"`
	CostPrice       decimal.Decimal `json:"cost_price" gorm:"type:numeric(14,2);not null"`
	Quantity        int             `json:"quantity" gorm:"not null;default:0;index;check:chk_products_quantity,quantity >= 0"`
	ReorderLevel    int             `json:"reorder_level" gorm:"not null;default:0"`
	IsActive        bool            `json:"is_active" gorm:"default:true"`
	LastRestockedAt *time.Time      `json:"last_restocked_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `json:"deleted_at,omitempty" gorm:"index"`
}

// StockStatus classifies an on-hand quantity against the reorder threshold
type StockStatus string

const (
	StockOutOfStock StockStatus = "out_of_stock"
	StockLow        StockStatus = "low_stock"
	StockIn         StockStatus = "in_stock"
)

// ClassifyStock reports how quantity compares to the reorder level
func ClassifyStock(quantity, reorderLevel int) StockStatus {
	switch {
	case quantity <= 0:
		return StockOutOfStock
	case quantity <= reorderLevel:
		return StockLow
	default:
		return StockIn
	}
}

// StockLevel is the ledger's view of one product
type StockLevel struct {
	ProductID       uint        `json:"product_id"`
	Name            string      `json:"name"`
	Quantity        int         `json:"quantity"`
	ReorderLevel    int         `json:"reorder_level"`
	Status          StockStatus `json:"status"`
	LastRestockedAt *time.Time  `json:"last_restocked_at,omitempty"`
}

// StockLevelOf builds the stock view of a product
func StockLevelOf(p Product) StockLevel {
	return StockLevel{
		ProductID:       p.ID,
		Name:            p.Name,
		Quantity:        p.Quantity,
		ReorderLevel:    p.ReorderLevel,
		Status:          ClassifyStock(p.Quantity, p.ReorderLevel),
		LastRestockedAt: p.LastRestockedAt,
	}
}
