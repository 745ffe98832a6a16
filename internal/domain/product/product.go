// Package product holds the minimal catalog surface the checkout engine
// needs: live prices to snapshot onto orders and names for receipts.
package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item. Price is the live price; orders copy it at
// checkout time rather than referencing it.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	IsActive bool
}

// Store defines read operations on the catalog.
type Store interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
