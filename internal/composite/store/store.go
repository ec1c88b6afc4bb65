// Package store keeps the last product seen for each id so the product
// fallback can serve something better than a placeholder.
package store

import (
	"context"

	"composite/internal/composite/models"
)

// ProductCache returns sentinel.ErrNotFound on a miss.
type ProductCache interface {
	Get(ctx context.Context, productID int) (models.Product, error)
	Put(ctx context.Context, product models.Product) error
}
