// Package invoice hands out day-scoped invoice numbers of the form
// INV-YYYYMMDD-NNNN. Every backend increments and reads the day counter in one
// atomic step.
package invoice

import (
	"fmt"
	"time"
)

const (
	prefix        = "INV"
	dateKeyLayout = "20060102"
)

// Clock returns the current time. The local time zone decides the day.
type Clock func() time.Time

// DateKey returns the counter key of the calendar day t falls on
func DateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

// Format renders an invoice number. Ordinals beyond 9999 keep all digits.
func Format(dateKey string, ordinal int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, dateKey, ordinal)
}
