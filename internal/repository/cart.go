package repository

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/gadget-cartel/internal/domain/cart"
	"github.com/xenking/gadget-cartel/internal/domain/product"
)

const (
	getCartByUserSQL = `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`

	createCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2)`

	userExistsSQL = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	getCartItemsSQL = `SELECT i.id, i.cart_id, i.product_id, i.quantity, i.metadata,
		p.id, p.name, p.price, p.category, p.is_active
		FROM cart_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.cart_id = $1
		ORDER BY i.created_at`

	getCartItemsForProductSQL = `SELECT id, cart_id, product_id, quantity, metadata
		FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	getCartItemByIDSQL = `SELECT id, cart_id, product_id, quantity, metadata
		FROM cart_items WHERE cart_id = $1 AND id = $2`

	getCartItemByProductSQL = `SELECT id, cart_id, product_id, quantity, metadata
		FROM cart_items WHERE cart_id = $1 AND product_id = $2
		ORDER BY created_at LIMIT 1`

	insertCartItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, quantity, metadata)
		VALUES ($1, $2, $3, $4, $5)`

	updateCartItemSQL = `UPDATE cart_items
		SET quantity = COALESCE($2, quantity), metadata = COALESCE($3, metadata)
		WHERE id = $1`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE id = $1`
	clearCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`
)

var _ cart.Store = (*CartRepository)(nil)

// CartRepository implements cart.Store backed by PostgreSQL.
type CartRepository struct {
	db *DB
}

// NewCartRepository returns a CartRepository on the given DB.
func NewCartRepository(db *DB) *CartRepository {
	return &CartRepository{db: db}
}

// CartByUser returns the user's cart with items, or (nil, nil).
func (r *CartRepository) CartByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.db.q(ctx).QueryRow(ctx, getCartByUserSQL, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting cart for user %q", userID)
	}

	c.Items, err = r.itemsWithProducts(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCart inserts an empty cart for the user.
func (r *CartRepository) CreateCart(ctx context.Context, c *cart.Cart) error {
	_, err := r.db.q(ctx).Exec(ctx, createCartSQL, c.ID, c.UserID)
	if err != nil {
		return errors.Wrapf(err, "creating cart for user %q", c.UserID)
	}
	return nil
}

// UserExists reports whether the user row exists.
func (r *CartRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.q(ctx).QueryRow(ctx, userExistsSQL, userID).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "checking user %q", userID)
	}
	return exists, nil
}

// ItemsForProduct returns all lines in the cart holding the product.
func (r *CartRepository) ItemsForProduct(ctx context.Context, cartID, productID string) ([]cart.Item, error) {
	rows, err := r.db.q(ctx).Query(ctx, getCartItemsForProductSQL, cartID, productID)
	if err != nil {
		return nil, errors.Wrap(err, "querying cart items")
	}
	return pgx.CollectRows(rows, scanCartItem)
}

// ItemByID returns the cart line with the given ID, or (nil, nil).
func (r *CartRepository) ItemByID(ctx context.Context, cartID, itemID string) (*cart.Item, error) {
	return r.oneItem(ctx, getCartItemByIDSQL, cartID, itemID)
}

// ItemByProduct returns the first line holding the product, or (nil, nil).
func (r *CartRepository) ItemByProduct(ctx context.Context, cartID, productID string) (*cart.Item, error) {
	return r.oneItem(ctx, getCartItemByProductSQL, cartID, productID)
}

func (r *CartRepository) oneItem(ctx context.Context, sql string, args ...any) (*cart.Item, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying cart item")
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "scanning cart item")
	}
	return &it, nil
}

// InsertItem adds a line to the cart.
func (r *CartRepository) InsertItem(ctx context.Context, it cart.Item) error {
	meta, err := metadataJSON(it.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.q(ctx).Exec(ctx, insertCartItemSQL, it.ID, it.CartID, it.ProductID, it.Quantity, meta)
	if err != nil {
		return errors.Wrapf(err, "inserting cart item for product %q", it.ProductID)
	}
	return nil
}

// UpdateItem changes quantity and/or metadata; nil leaves a field unchanged.
func (r *CartRepository) UpdateItem(ctx context.Context, itemID string, quantity *int, metadata map[string]any) error {
	var meta []byte
	if metadata != nil {
		var err error
		meta, err = metadataJSON(metadata)
		if err != nil {
			return err
		}
	}
	_, err := r.db.q(ctx).Exec(ctx, updateCartItemSQL, itemID, quantity, meta)
	if err != nil {
		return errors.Wrapf(err, "updating cart item %q", itemID)
	}
	return nil
}

// DeleteItem removes one line.
func (r *CartRepository) DeleteItem(ctx context.Context, itemID string) error {
	_, err := r.db.q(ctx).Exec(ctx, deleteCartItemSQL, itemID)
	if err != nil {
		return errors.Wrapf(err, "deleting cart item %q", itemID)
	}
	return nil
}

// ClearItems removes every line from the cart.
func (r *CartRepository) ClearItems(ctx context.Context, cartID string) error {
	_, err := r.db.q(ctx).Exec(ctx, clearCartItemsSQL, cartID)
	if err != nil {
		return errors.Wrapf(err, "clearing cart %q", cartID)
	}
	return nil
}

func (r *CartRepository) itemsWithProducts(ctx context.Context, cartID string) ([]cart.Item, error) {
	rows, err := r.db.q(ctx).Query(ctx, getCartItemsSQL, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "querying cart items")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var (
			it   cart.Item
			meta []byte
			p    product.Product
		)
		err := row.Scan(
			&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &meta,
			&p.ID, &p.Name, &p.Price, &p.Category, &p.IsActive,
		)
		if err != nil {
			return it, err
		}
		it.Metadata = unmarshalMetadata(meta)
		it.Product = &p
		return it, nil
	})
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		it   cart.Item
		meta []byte
	)
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &meta)
	it.Metadata = unmarshalMetadata(meta)
	return it, err
}

func metadataJSON(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling metadata")
	}
	return raw, nil
}

func unmarshalMetadata(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}
