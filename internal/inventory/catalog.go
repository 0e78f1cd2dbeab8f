package inventory

import (
	"context"
	"fmt"
	"time"

	"sale-service/internal/model"
	"sale-service/prometheus"

	"gorm.io/gorm"
)

// Catalog reads product snapshots for pricing. Inactive products are returned
// as-is; the caller decides what to do with them.
type Catalog struct {
	db      *gorm.DB
	metrics *prometheus.Metrics
}

func NewCatalog(db *gorm.DB, metrics *prometheus.Metrics) *Catalog {
	return &Catalog{db: db, metrics: metrics}
}

// GetProducts returns the products with the given ids keyed by id. Unknown ids
// are absent from the map.
func (c *Catalog) GetProducts(ctx context.Context, ids []uint) (map[uint]model.Product, error) {
	products := make(map[uint]model.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}
	defer c.metrics.TrackDBOperation("select_products")(time.Now())

	var rows []model.Product
	if err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	for _, p := range rows {
		products[p.ID] = p
	}
	return products, nil
}
