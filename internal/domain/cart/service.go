package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/gadget-cartel/internal/domain/product"
)

// Service implements the cart operations exposed over the API.
type Service struct {
	store    Store
	products product.Store
}

// NewService creates a cart Service.
func NewService(store Store, products product.Store) *Service {
	return &Service{store: store, products: products}
}

// Get returns the user's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.store.CartByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if c != nil {
		return c, nil
	}

	ok, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "check user")
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	c = &Cart{ID: uuid.New().String(), UserID: userID}
	if err := s.store.CreateCart(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return c, nil
}

// AddItem puts a product into the cart. When a line with the same product
// and metadata already exists its quantity is incremented; otherwise a new
// line is inserted.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int, metadata map[string]any) (*Cart, error) {
	if quantity < 1 {
		quantity = 1
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	existing, err := s.store.ItemsForProduct(ctx, c.ID, productID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart lines")
	}

	for _, it := range existing {
		if MetadataEqual(it.Metadata, metadata) {
			next := it.Quantity + quantity
			if err := s.store.UpdateItem(ctx, it.ID, &next, nil); err != nil {
				return nil, errors.Wrap(err, "increment cart line")
			}
			return s.Get(ctx, userID)
		}
	}

	err = s.store.InsertItem(ctx, Item{
		ID:        uuid.New().String(),
		CartID:    c.ID,
		ProductID: productID,
		Quantity:  quantity,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, errors.Wrap(err, "insert cart line")
	}
	return s.Get(ctx, userID)
}

// UpdateItem changes the quantity and/or metadata of a cart line. The itemID
// may also be a product ID; the first matching line is updated then.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID string, quantity *int, metadata map[string]any) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	it, err := s.findItem(ctx, c.ID, itemID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, ErrItemNotFound
	}

	if err := s.store.UpdateItem(ctx, it.ID, quantity, metadata); err != nil {
		return nil, errors.Wrap(err, "update cart line")
	}
	return s.Get(ctx, userID)
}

// RemoveItem deletes a cart line by item ID or product ID. Removing an item
// that is not in the cart is not an error.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	it, err := s.findItem(ctx, c.ID, itemID)
	if err != nil {
		return nil, err
	}
	if it != nil {
		if err := s.store.DeleteItem(ctx, it.ID); err != nil {
			return nil, errors.Wrap(err, "delete cart line")
		}
	}
	return s.Get(ctx, userID)
}

// Clear removes every line from the user's cart.
func (s *Service) Clear(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.ClearItems(ctx, c.ID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	return s.Get(ctx, userID)
}

// findItem looks the line up by item ID first, falling back to product ID
// for clients that send one instead of the other.
func (s *Service) findItem(ctx context.Context, cartID, itemID string) (*Item, error) {
	it, err := s.store.ItemByID(ctx, cartID, itemID)
	if err != nil {
		return nil, errors.Wrap(err, "find cart line")
	}
	if it != nil {
		return it, nil
	}
	it, err = s.store.ItemByProduct(ctx, cartID, itemID)
	if err != nil {
		return nil, errors.Wrap(err, "find cart line by product")
	}
	return it, nil
}
