package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/gadget-cartel/internal/domain/cart"
	"github.com/xenking/gadget-cartel/internal/domain/order"
	"github.com/xenking/gadget-cartel/internal/domain/shipping"
)

const (
	getAddressForUserSQL = `SELECT id, user_id, street, city, state, country
		FROM addresses WHERE id = $1 AND user_id = $2`

	storeLocationExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM store_locations WHERE id = $1 AND is_active)`

	getUserInfoSQL = `SELECT id, name, email, phone FROM users WHERE id = $1`

	createOrderSQL = `INSERT INTO orders (id, user_id, address_id, store_location_id,
		delivery_type, coupon_code, subtotal, tax_amount, delivery_fee, total,
		status, payment_status)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12)`

	createOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, quantity, price, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`

	orderColumns = `o.id, o.user_id, COALESCE(o.address_id, ''),
		COALESCE(o.store_location_id, ''), o.delivery_type, o.coupon_code,
		o.subtotal, o.tax_amount, o.delivery_fee, o.total,
		o.status, o.payment_status, o.delivery_status, o.tracking_code,
		o.delivery_date, o.shipping_date, o.delivered_at, o.created_at, o.updated_at`

	getOrderSQL        = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	getOrderForUserSQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1 AND o.user_id = $2`

	listOrdersForUserSQL = `SELECT ` + orderColumns + ` FROM orders o
		WHERE o.user_id = $1 ORDER BY o.created_at DESC`

	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders o
		ORDER BY o.created_at DESC LIMIT $1 OFFSET $2`

	countOrdersForUserSQL = `SELECT COUNT(*) FROM orders WHERE user_id = $1`
	countAllOrdersSQL     = `SELECT COUNT(*) FROM orders`

	getOrderItemsSQL = `SELECT oi.id, oi.order_id, oi.product_id, p.name,
		oi.quantity, oi.price, oi.metadata
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)`
)

var (
	_ order.CheckoutStore    = (*OrderRepository)(nil)
	_ order.FulfillmentStore = (*OrderRepository)(nil)
	_ order.Queries          = (*OrderRepository)(nil)
)

// OrderRepository implements the order store interfaces backed by PostgreSQL.
type OrderRepository struct {
	*DB
	carts *CartRepository
}

// NewOrderRepository returns an OrderRepository on the given DB.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{DB: db, carts: NewCartRepository(db)}
}

// CartWithItems returns the user's cart with lines, or (nil, nil).
func (r *OrderRepository) CartWithItems(ctx context.Context, userID string) (*cart.Cart, error) {
	return r.carts.CartByUser(ctx, userID)
}

// ClearCart wipes the cart's lines.
func (r *OrderRepository) ClearCart(ctx context.Context, cartID string) error {
	return r.carts.ClearItems(ctx, cartID)
}

// AddressForUser returns the address only when the user owns it, (nil, nil)
// otherwise.
func (r *OrderRepository) AddressForUser(ctx context.Context, addressID, userID string) (*shipping.Address, error) {
	var a shipping.Address
	err := r.q(ctx).QueryRow(ctx, getAddressForUserSQL, addressID, userID).
		Scan(&a.ID, &a.UserID, &a.Street, &a.City, &a.State, &a.Country)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting address %q", addressID)
	}
	return &a, nil
}

// StoreLocationExists reports whether an active store location exists.
func (r *OrderRepository) StoreLocationExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.q(ctx).QueryRow(ctx, storeLocationExistsSQL, id).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "checking store location %q", id)
	}
	return exists, nil
}

// UserInfo returns the buyer view for side effects.
func (r *OrderRepository) UserInfo(ctx context.Context, userID string) (*order.UserInfo, error) {
	var u order.UserInfo
	err := r.q(ctx).QueryRow(ctx, getUserInfoSQL, userID).Scan(&u.ID, &u.Name, &u.Email, &u.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting user %q", userID)
	}
	return &u, nil
}

// CreateOrder persists the order and its items.
func (r *OrderRepository) CreateOrder(ctx context.Context, o *order.Order) error {
	q := r.q(ctx)
	_, err := q.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.AddressID, o.StoreLocationID,
		o.DeliveryType, o.CouponCode, o.Subtotal, o.TaxAmount, o.DeliveryFee, o.Total,
		o.Status, o.PaymentStatus,
	)
	if err != nil {
		return errors.Wrapf(err, "creating order %q", o.ID)
	}

	for _, it := range o.Items {
		meta, err := metadataJSON(it.Metadata)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx, createOrderItemSQL, it.ID, o.ID, it.ProductID, it.Quantity, it.Price, meta)
		if err != nil {
			return errors.Wrapf(err, "creating order item for product %q", it.ProductID)
		}
	}
	return nil
}

// OrderWithUser returns the order with its items and buyer.
func (r *OrderRepository) OrderWithUser(ctx context.Context, orderID string) (*order.Order, *order.UserInfo, error) {
	o, err := r.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	u, err := r.UserInfo(ctx, o.UserID)
	if err != nil {
		return nil, nil, err
	}
	return o, u, nil
}

// UpdateFulfillment applies the non-nil patch fields to the order row.
func (r *OrderRepository) UpdateFulfillment(ctx context.Context, orderID string, patch order.OrderPatch) error {
	sets := []string{"updated_at = now()"}
	args := []any{orderID}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.PaymentStatus != nil {
		add("payment_status", *patch.PaymentStatus)
	}
	if patch.DeliveryStatus != nil {
		add("delivery_status", *patch.DeliveryStatus)
	}
	if patch.TrackingCode != nil {
		add("tracking_code", *patch.TrackingCode)
	}
	if patch.DeliveryType != nil {
		add("delivery_type", *patch.DeliveryType)
	}
	if patch.DeliveryDate != nil {
		add("delivery_date", *patch.DeliveryDate)
	}
	if patch.ShippingDate != nil {
		add("shipping_date", *patch.ShippingDate)
	}
	if patch.DeliveredAt != nil {
		add("delivered_at", *patch.DeliveredAt)
	}

	sql := "UPDATE orders SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	tag, err := r.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return errors.Wrapf(err, "updating order %q", orderID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Get returns one order regardless of owner.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (*order.Order, error) {
	return r.oneOrder(ctx, getOrderSQL, orderID)
}

// GetForUser returns one order scoped to its owner.
func (r *OrderRepository) GetForUser(ctx context.Context, orderID, userID string) (*order.Order, error) {
	return r.oneOrder(ctx, getOrderForUserSQL, orderID, userID)
}

func (r *OrderRepository) oneOrder(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	rows, err := r.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "scanning order")
	}
	if err := r.attachItems(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListForUser returns the user's orders, newest first. Zero page or pageSize
// disables pagination.
func (r *OrderRepository) ListForUser(ctx context.Context, userID string, page, pageSize int) (*order.Page, error) {
	sql := listOrdersForUserSQL
	args := []any{userID}
	if page > 0 && pageSize > 0 {
		sql += " LIMIT $2 OFFSET $3"
		args = append(args, pageSize, (page-1)*pageSize)
	}

	rows, err := r.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	results, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scanning orders")
	}

	var count int
	if err := r.q(ctx).QueryRow(ctx, countOrdersForUserSQL, userID).Scan(&count); err != nil {
		return nil, errors.Wrap(err, "counting orders")
	}

	if err := r.attachItemsSlice(ctx, results); err != nil {
		return nil, err
	}
	return &order.Page{Results: results, Count: count, Page: page, PageSize: pageSize}, nil
}

// ListAll returns all orders paginated, newest first.
func (r *OrderRepository) ListAll(ctx context.Context, page, pageSize int) (*order.Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	rows, err := r.q(ctx).Query(ctx, listAllOrdersSQL, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	results, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scanning orders")
	}

	var count int
	if err := r.q(ctx).QueryRow(ctx, countAllOrdersSQL).Scan(&count); err != nil {
		return nil, errors.Wrap(err, "counting orders")
	}

	if err := r.attachItemsSlice(ctx, results); err != nil {
		return nil, err
	}
	return &order.Page{Results: results, Count: count, Page: page, PageSize: pageSize}, nil
}

func (r *OrderRepository) attachItemsSlice(ctx context.Context, orders []order.Order) error {
	ptrs := make([]*order.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	return r.attachItems(ctx, ptrs)
}

func (r *OrderRepository) attachItems(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.q(ctx).Query(ctx, getOrderItemsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "querying order items")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var (
			it   order.Item
			meta []byte
		)
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &meta)
		it.Metadata = unmarshalMetadata(meta)
		return it, err
	})
	if err != nil {
		return errors.Wrap(err, "scanning order items")
	}

	for _, it := range items {
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.AddressID, &o.StoreLocationID, &o.DeliveryType, &o.CouponCode,
		&o.Subtotal, &o.TaxAmount, &o.DeliveryFee, &o.Total,
		&o.Status, &o.PaymentStatus, &o.DeliveryStatus, &o.TrackingCode,
		&o.DeliveryDate, &o.ShippingDate, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}
