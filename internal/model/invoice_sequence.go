package model

import "time"

// InvoiceSequence is the per-day invoice counter. NextOrdinal is the ordinal
// the next sale of DateKey will receive.
type InvoiceSequence struct {
	DateKey     string    `json:"date_key" gorm:"primaryKey;type:char(8)"`
	NextOrdinal int64     `json:"next_ordinal" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at"`
}
