package handler

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/gadget-cartel/internal/domain/auth"
	"github.com/xenking/gadget-cartel/internal/domain/cart"
	"github.com/xenking/gadget-cartel/internal/domain/coupon"
	"github.com/xenking/gadget-cartel/internal/domain/notification"
	"github.com/xenking/gadget-cartel/internal/domain/order"
	"github.com/xenking/gadget-cartel/internal/domain/payment"
	"github.com/xenking/gadget-cartel/internal/domain/product"
	"github.com/xenking/gadget-cartel/internal/domain/shipping"
)

// The in-memory stores below back a fully wired Handler so endpoint tests
// exercise the real services end to end without a database.

type sessionStore struct {
	sessions map[string]*auth.Session
}

func (s *sessionStore) FindByTokenHash(_ context.Context, hash string) (*auth.Session, error) {
	sess, ok := s.sessions[hash]
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return sess, nil
}

type catalogMem struct {
	products map[string]product.Product
}

func (c *catalogMem) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := c.products[id]
	if !ok || !p.IsActive {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (c *catalogMem) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type cartMem struct {
	catalog *catalogMem
	users   map[string]bool
	carts   map[string]*cart.Cart
}

func (m *cartMem) CartByUser(_ context.Context, userID string) (*cart.Cart, error) {
	c, ok := m.carts[userID]
	if !ok {
		return nil, nil
	}
	clone := *c
	clone.Items = make([]cart.Item, len(c.Items))
	for i, it := range c.Items {
		clone.Items[i] = it
		if p, ok := m.catalog.products[it.ProductID]; ok {
			cp := p
			clone.Items[i].Product = &cp
		}
	}
	return &clone, nil
}

func (m *cartMem) CreateCart(_ context.Context, c *cart.Cart) error {
	m.carts[c.UserID] = &cart.Cart{ID: c.ID, UserID: c.UserID}
	return nil
}

func (m *cartMem) UserExists(_ context.Context, userID string) (bool, error) {
	return m.users[userID], nil
}

func (m *cartMem) byCartID(cartID string) *cart.Cart {
	for _, c := range m.carts {
		if c.ID == cartID {
			return c
		}
	}
	return nil
}

func (m *cartMem) ItemsForProduct(_ context.Context, cartID, productID string) ([]cart.Item, error) {
	c := m.byCartID(cartID)
	if c == nil {
		return nil, nil
	}
	var out []cart.Item
	for _, it := range c.Items {
		if it.ProductID == productID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *cartMem) ItemByID(_ context.Context, cartID, itemID string) (*cart.Item, error) {
	c := m.byCartID(cartID)
	if c == nil {
		return nil, nil
	}
	for _, it := range c.Items {
		if it.ID == itemID {
			clone := it
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *cartMem) ItemByProduct(_ context.Context, cartID, productID string) (*cart.Item, error) {
	c := m.byCartID(cartID)
	if c == nil {
		return nil, nil
	}
	for _, it := range c.Items {
		if it.ProductID == productID {
			clone := it
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *cartMem) InsertItem(_ context.Context, it cart.Item) error {
	c := m.byCartID(it.CartID)
	c.Items = append(c.Items, it)
	return nil
}

func (m *cartMem) UpdateItem(_ context.Context, itemID string, quantity *int, metadata map[string]any) error {
	for _, c := range m.carts {
		for i := range c.Items {
			if c.Items[i].ID == itemID {
				if quantity != nil {
					c.Items[i].Quantity = *quantity
				}
				if metadata != nil {
					c.Items[i].Metadata = metadata
				}
				return nil
			}
		}
	}
	return nil
}

func (m *cartMem) DeleteItem(_ context.Context, itemID string) error {
	for _, c := range m.carts {
		for i := range c.Items {
			if c.Items[i].ID == itemID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (m *cartMem) ClearItems(_ context.Context, cartID string) error {
	if c := m.byCartID(cartID); c != nil {
		c.Items = nil
	}
	return nil
}

type couponMem struct {
	coupons map[string]*coupon.Coupon
	usages  []coupon.Usage
}

func (m *couponMem) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *couponMem) CountUsages(_ context.Context, couponID string) (int, error) {
	n := 0
	for _, u := range m.usages {
		if u.CouponID == couponID {
			n++
		}
	}
	return n, nil
}

func (m *couponMem) CountUserUsages(_ context.Context, couponID, userID string) (int, error) {
	n := 0
	for _, u := range m.usages {
		if u.CouponID == couponID && u.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *couponMem) InsertUsage(_ context.Context, u coupon.Usage) error {
	m.usages = append(m.usages, u)
	return nil
}

func (m *couponMem) IncrementUsage(_ context.Context, couponID string, _ time.Time) (int, bool, error) {
	for _, c := range m.coupons {
		if c.ID != couponID {
			continue
		}
		if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
			return 0, false, nil
		}
		c.UsageCount++
		if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
			c.IsActive = false
		}
		return c.UsageCount, true, nil
	}
	return 0, false, nil
}

func (m *couponMem) SetUsageCount(_ context.Context, couponID string, count int) error {
	for _, c := range m.coupons {
		if c.ID == couponID {
			c.UsageCount = count
		}
	}
	return nil
}

func (m *couponMem) Deactivate(_ context.Context, couponID string) error {
	for _, c := range m.coupons {
		if c.ID == couponID {
			c.IsActive = false
		}
	}
	return nil
}

type shippingMem struct {
	methods []shipping.DeliveryMethod
	zones   []shipping.Zone
	prices  []shipping.Price
}

func (m *shippingMem) MethodByID(_ context.Context, id string) (*shipping.DeliveryMethod, error) {
	for _, d := range m.methods {
		if d.ID == id && d.IsActive {
			clone := d
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *shippingMem) FirstMethodOfType(_ context.Context, methodType string) (*shipping.DeliveryMethod, error) {
	for _, d := range m.methods {
		if d.Type == methodType && d.IsActive {
			clone := d
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *shippingMem) ZoneByID(_ context.Context, id string) (*shipping.Zone, error) {
	for _, z := range m.zones {
		if z.ID == id && z.IsActive {
			clone := z
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *shippingMem) ZoneByCityState(_ context.Context, city, state string) (*shipping.Zone, error) {
	for _, z := range m.zones {
		if z.IsActive && strings.EqualFold(z.City, city) && strings.EqualFold(z.State, state) {
			clone := z
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *shippingMem) ZoneByState(_ context.Context, state string) (*shipping.Zone, error) {
	for _, z := range m.zones {
		if z.IsActive && z.City == "" && strings.EqualFold(z.State, state) {
			clone := z
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *shippingMem) PriceFor(_ context.Context, zoneID, methodID string) (*shipping.Price, error) {
	for _, p := range m.prices {
		if p.ZoneID == zoneID && p.DeliveryMethodID == methodID {
			clone := p
			return &clone, nil
		}
	}
	return nil, nil
}

// orderMem serves checkout writes, fulfillment patches, the read-side
// queries, and address lookups from one map of orders.
type orderMem struct {
	carts     *cartMem
	users     map[string]order.UserInfo
	addresses map[string]shipping.Address
	stores    map[string]bool
	orders    []*order.Order
}

func (m *orderMem) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *orderMem) CartWithItems(ctx context.Context, userID string) (*cart.Cart, error) {
	return m.carts.CartByUser(ctx, userID)
}

func (m *orderMem) ClearCart(ctx context.Context, cartID string) error {
	return m.carts.ClearItems(ctx, cartID)
}

func (m *orderMem) AddressForUser(_ context.Context, addressID, userID string) (*shipping.Address, error) {
	a, ok := m.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, nil
	}
	clone := a
	return &clone, nil
}

func (m *orderMem) StoreLocationExists(_ context.Context, id string) (bool, error) {
	return m.stores[id], nil
}

func (m *orderMem) UserInfo(_ context.Context, userID string) (*order.UserInfo, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, order.ErrNotFound
	}
	clone := u
	return &clone, nil
}

func (m *orderMem) CreateOrder(_ context.Context, o *order.Order) error {
	clone := *o
	m.orders = append(m.orders, &clone)
	return nil
}

func (m *orderMem) byID(orderID string) *order.Order {
	for _, o := range m.orders {
		if o.ID == orderID {
			return o
		}
	}
	return nil
}

func (m *orderMem) OrderWithUser(ctx context.Context, orderID string) (*order.Order, *order.UserInfo, error) {
	o := m.byID(orderID)
	if o == nil {
		return nil, nil, order.ErrNotFound
	}
	u, err := m.UserInfo(ctx, o.UserID)
	if err != nil {
		return nil, nil, err
	}
	clone := *o
	return &clone, u, nil
}

func (m *orderMem) UpdateFulfillment(_ context.Context, orderID string, patch order.OrderPatch) error {
	o := m.byID(orderID)
	if o == nil {
		return order.ErrNotFound
	}
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.PaymentStatus != nil {
		o.PaymentStatus = *patch.PaymentStatus
	}
	if patch.DeliveryStatus != nil {
		o.DeliveryStatus = *patch.DeliveryStatus
	}
	if patch.TrackingCode != nil {
		o.TrackingCode = *patch.TrackingCode
	}
	if patch.DeliveryType != nil {
		o.DeliveryType = *patch.DeliveryType
	}
	if patch.DeliveryDate != nil {
		o.DeliveryDate = patch.DeliveryDate
	}
	if patch.ShippingDate != nil {
		o.ShippingDate = patch.ShippingDate
	}
	if patch.DeliveredAt != nil {
		o.DeliveredAt = patch.DeliveredAt
	}
	return nil
}

func (m *orderMem) ListForUser(_ context.Context, userID string, page, pageSize int) (*order.Page, error) {
	var results []order.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			results = append(results, *o)
		}
	}
	return &order.Page{Results: results, Count: len(results), Page: page, PageSize: pageSize}, nil
}

func (m *orderMem) GetForUser(_ context.Context, orderID, userID string) (*order.Order, error) {
	o := m.byID(orderID)
	if o == nil || o.UserID != userID {
		return nil, order.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (m *orderMem) Get(_ context.Context, orderID string) (*order.Order, error) {
	o := m.byID(orderID)
	if o == nil {
		return nil, order.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (m *orderMem) ListAll(_ context.Context, page, pageSize int) (*order.Page, error) {
	results := make([]order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		results = append(results, *o)
	}
	return &order.Page{Results: results, Count: len(results), Page: page, PageSize: pageSize}, nil
}

type paymentMem struct {
	orders   *orderMem
	payments map[string]*payment.Payment
}

func (m *paymentMem) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *paymentMem) ByReference(_ context.Context, reference string) (*payment.Payment, error) {
	for _, p := range m.payments {
		if p.Reference == reference {
			clone := *p
			return &clone, nil
		}
	}
	return nil, payment.ErrNotFound
}

func (m *paymentMem) ByOrder(_ context.Context, orderID string) (*payment.Payment, error) {
	p, ok := m.payments[orderID]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (m *paymentMem) ListForUser(_ context.Context, userID string) ([]payment.Payment, error) {
	var out []payment.Payment
	for _, p := range m.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *paymentMem) Upsert(_ context.Context, p *payment.Payment) error {
	clone := *p
	m.payments[p.OrderID] = &clone
	return nil
}

func (m *paymentMem) MarkOutcome(_ context.Context, paymentID, status, channel string, paidAt *time.Time) error {
	for _, p := range m.payments {
		if p.ID == paymentID {
			p.Status = status
			p.Channel = channel
			p.PaidAt = paidAt
		}
	}
	return nil
}

func (m *paymentMem) OrderForUser(ctx context.Context, orderID, userID string) (*order.Order, *order.UserInfo, error) {
	o, err := m.orders.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, nil, err
	}
	u, err := m.orders.UserInfo(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return o, u, nil
}

func (m *paymentMem) SetOrderPaid(_ context.Context, orderID string) error {
	o := m.orders.byID(orderID)
	if o == nil {
		return order.ErrNotFound
	}
	o.PaymentStatus = order.PaymentPaid
	o.Status = order.StatusProcessing
	return nil
}

func (m *paymentMem) SetOrderPaymentFailed(_ context.Context, orderID string) error {
	o := m.orders.byID(orderID)
	if o == nil {
		return order.ErrNotFound
	}
	o.PaymentStatus = order.PaymentFailed
	return nil
}

type notificationMem struct {
	items []notification.Notification
}

func (m *notificationMem) Insert(_ context.Context, n *notification.Notification) error {
	n.CreatedAt = time.Now()
	m.items = append(m.items, *n)
	return nil
}

func (m *notificationMem) ListForUser(_ context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	var out []notification.Notification
	for _, n := range m.items {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *notificationMem) CountUnread(_ context.Context, userID string) (int, error) {
	n := 0
	for _, it := range m.items {
		if it.UserID == userID && !it.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *notificationMem) MarkRead(_ context.Context, id, userID string) error {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			m.items[i].IsRead = true
			return nil
		}
	}
	return notification.ErrNotFound
}

func (m *notificationMem) MarkAllRead(_ context.Context, userID string) error {
	for i := range m.items {
		if m.items[i].UserID == userID {
			m.items[i].IsRead = true
		}
	}
	return nil
}

func (m *notificationMem) Delete(_ context.Context, id, userID string) error {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return notification.ErrNotFound
}

type stubGateway struct {
	verifyStatus string
	verifyAmount decimal.Decimal
}

func (g *stubGateway) Initialize(_ context.Context, req payment.InitializeRequest) (*payment.Authorization, error) {
	return &payment.Authorization{
		AuthorizationURL: "https://checkout.example/" + req.Reference,
		AccessCode:       "access_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *stubGateway) Verify(_ context.Context, _ string) (*payment.VerifyResult, error) {
	paidAt := time.Now()
	return &payment.VerifyResult{
		Status:  g.verifyStatus,
		Amount:  g.verifyAmount,
		Channel: "card",
		PaidAt:  &paidAt,
	}, nil
}
