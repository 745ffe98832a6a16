// Package cart manages the per-user shopping cart that checkout consumes.
package cart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/gadget-cartel/internal/domain/product"
)

var (
	// ErrUserNotFound is returned when a cart is requested for a user that
	// does not exist (lazy creation would violate the user FK).
	ErrUserNotFound = errors.New("user not found")
	// ErrItemNotFound is returned when an update or removal targets an item
	// that is not in the user's cart.
	ErrItemNotFound = errors.New("item not found in cart")
)

// Cart is owned exclusively by one user. It is created lazily on first
// access and emptied, never deleted, when an order is placed from it.
type Cart struct {
	ID        string
	UserID    string
	Items     []Item
	CreatedAt time.Time
}

// Item is a cart line. At most one Item exists per distinct
// (ProductID, Metadata) pair; re-adding the same pair increments Quantity.
type Item struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
	Metadata  map[string]any
	Product   *product.Product
}

// MetadataEqual reports whether two metadata maps describe the same variant
// selection. Comparison happens over canonical JSON (maps marshal with
// sorted keys), matching how the store deduplicates rows.
func MetadataEqual(a, b map[string]any) bool {
	return string(canonicalMetadata(a)) == string(canonicalMetadata(b))
}

func canonicalMetadata(m map[string]any) []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// Store provides cart persistence.
type Store interface {
	// CartByUser returns the user's cart with items, or (nil, nil) when the
	// user has none yet.
	CartByUser(ctx context.Context, userID string) (*Cart, error)
	CreateCart(ctx context.Context, c *Cart) error
	UserExists(ctx context.Context, userID string) (bool, error)

	// ItemsForProduct returns all lines in the cart holding the product,
	// regardless of metadata.
	ItemsForProduct(ctx context.Context, cartID, productID string) ([]Item, error)
	// ItemByID returns the cart line with the given ID, or (nil, nil).
	ItemByID(ctx context.Context, cartID, itemID string) (*Item, error)
	// ItemByProduct returns the first line holding the product, or (nil, nil).
	ItemByProduct(ctx context.Context, cartID, productID string) (*Item, error)

	InsertItem(ctx context.Context, it Item) error
	UpdateItem(ctx context.Context, itemID string, quantity *int, metadata map[string]any) error
	DeleteItem(ctx context.Context, itemID string) error
	ClearItems(ctx context.Context, cartID string) error
}
