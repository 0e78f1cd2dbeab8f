package invoice

import (
	"context"
	"fmt"
	"time"

	"sale-service/prometheus"

	"gorm.io/gorm"
)

// The insert creates the day's row at 2 (ordinal 1 is being handed out);
// later calls bump it under the row lock. Either way RETURNING yields the
// ordinal issued by this statement.
const nextOrdinalSQL = `INSERT INTO invoice_sequences (date_key, next_ordinal, updated_at)
VALUES (?, 2, ?)
ON CONFLICT (date_key) DO UPDATE
SET next_ordinal = invoice_sequences.next_ordinal + 1, updated_at = EXCLUDED.updated_at
RETURNING next_ordinal - 1`

// PostgresSequencer keeps the day counters in the invoice_sequences table
type PostgresSequencer struct {
	db      *gorm.DB
	metrics *prometheus.Metrics
	clock   Clock
}

func NewPostgresSequencer(db *gorm.DB, metrics *prometheus.Metrics, clock Clock) *PostgresSequencer {
	if clock == nil {
		clock = time.Now
	}
	return &PostgresSequencer{db: db, metrics: metrics, clock: clock}
}

// Next returns the next invoice number of the current day
func (s *PostgresSequencer) Next(ctx context.Context) (string, error) {
	defer s.metrics.TrackDBOperation("next_invoice")(time.Now())

	now := s.clock()
	key := DateKey(now)

	var ordinal int64
	if err := s.db.WithContext(ctx).Raw(nextOrdinalSQL, key, now).Scan(&ordinal).Error; err != nil {
		return "", fmt.Errorf("failed to increment invoice sequence %s: %w", key, err)
	}
	if ordinal < 1 {
		return "", fmt.Errorf("invoice sequence %s returned invalid ordinal %d", key, ordinal)
	}
	return Format(key, ordinal), nil
}
