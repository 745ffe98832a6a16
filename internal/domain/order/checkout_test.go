package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/gadget-cartel/internal/domain/cart"
	"github.com/xenking/gadget-cartel/internal/domain/coupon"
	"github.com/xenking/gadget-cartel/internal/domain/product"
	"github.com/xenking/gadget-cartel/internal/domain/shipping"
)

// checkoutStore fakes the transactional store. Writes are staged and dropped
// when the callback errors, mirroring a rollback.
type checkoutStore struct {
	cart      *cart.Cart
	addresses map[string]*shipping.Address
	locations map[string]bool

	created []*Order
	cleared []string
	commits int
}

func (s *checkoutStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	created, cleared := len(s.created), len(s.cleared)
	if err := fn(ctx); err != nil {
		s.created = s.created[:created]
		s.cleared = s.cleared[:cleared]
		return err
	}
	s.commits++
	return nil
}

func (s *checkoutStore) CartWithItems(_ context.Context, userID string) (*cart.Cart, error) {
	if s.cart == nil || s.cart.UserID != userID {
		return nil, nil
	}
	return s.cart, nil
}

func (s *checkoutStore) ClearCart(_ context.Context, cartID string) error {
	s.cleared = append(s.cleared, cartID)
	return nil
}

func (s *checkoutStore) AddressForUser(_ context.Context, addressID, userID string) (*shipping.Address, error) {
	a, ok := s.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, nil
	}
	return a, nil
}

func (s *checkoutStore) StoreLocationExists(_ context.Context, id string) (bool, error) {
	return s.locations[id], nil
}

func (s *checkoutStore) UserInfo(_ context.Context, userID string) (*UserInfo, error) {
	return &UserInfo{ID: userID, Email: userID + "@example.com"}, nil
}

func (s *checkoutStore) CreateOrder(_ context.Context, o *Order) error {
	s.created = append(s.created, o)
	return nil
}

type checkoutProducts map[string]product.Product

func (m checkoutProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m checkoutProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// couponMem is a minimal coupon.Store honoring the conditional increment.
type couponMem struct {
	coupon *coupon.Coupon
	usages []coupon.Usage
}

func (s *couponMem) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	if s.coupon == nil || s.coupon.Code != code {
		return nil, coupon.ErrNotFound
	}
	c := *s.coupon
	return &c, nil
}

func (s *couponMem) CountUsages(_ context.Context, couponID string) (int, error) {
	n := 0
	for _, u := range s.usages {
		if u.CouponID == couponID {
			n++
		}
	}
	return n, nil
}

func (s *couponMem) CountUserUsages(_ context.Context, couponID, userID string) (int, error) {
	n := 0
	for _, u := range s.usages {
		if u.CouponID == couponID && u.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *couponMem) InsertUsage(_ context.Context, u coupon.Usage) error {
	s.usages = append(s.usages, u)
	return nil
}

func (s *couponMem) IncrementUsage(_ context.Context, couponID string, _ time.Time) (int, bool, error) {
	c := s.coupon
	if c == nil || c.ID != couponID {
		return 0, false, nil
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return c.UsageCount, false, nil
	}
	c.UsageCount++
	return c.UsageCount, true, nil
}

func (s *couponMem) SetUsageCount(_ context.Context, _ string, count int) error {
	s.coupon.UsageCount = count
	return nil
}

func (s *couponMem) Deactivate(_ context.Context, _ string) error {
	s.coupon.IsActive = false
	return nil
}

// shippingMem serves one zone and one delivery method.
type shippingMem struct {
	method *shipping.DeliveryMethod
	zone   *shipping.Zone
	price  *shipping.Price
}

func (s *shippingMem) MethodByID(_ context.Context, id string) (*shipping.DeliveryMethod, error) {
	if s.method != nil && s.method.ID == id {
		return s.method, nil
	}
	return nil, nil
}

func (s *shippingMem) FirstMethodOfType(_ context.Context, methodType string) (*shipping.DeliveryMethod, error) {
	if s.method != nil && s.method.Type == methodType {
		return s.method, nil
	}
	return nil, nil
}

func (s *shippingMem) ZoneByID(_ context.Context, id string) (*shipping.Zone, error) {
	if s.zone != nil && s.zone.ID == id && s.zone.IsActive {
		return s.zone, nil
	}
	return nil, nil
}

func (s *shippingMem) ZoneByCityState(_ context.Context, city, state string) (*shipping.Zone, error) {
	if s.zone != nil && s.zone.City == city && s.zone.State == state {
		return s.zone, nil
	}
	return nil, nil
}

func (s *shippingMem) ZoneByState(_ context.Context, state string) (*shipping.Zone, error) {
	if s.zone != nil && s.zone.City == "" && s.zone.State == state {
		return s.zone, nil
	}
	return nil, nil
}

func (s *shippingMem) PriceFor(_ context.Context, zoneID, methodID string) (*shipping.Price, error) {
	if s.price != nil && s.price.ZoneID == zoneID && s.price.DeliveryMethodID == methodID {
		return s.price, nil
	}
	return nil, nil
}

type recordingNotifier struct{ titles []string }

func (n *recordingNotifier) Notify(_ context.Context, _, title, _, _ string) error {
	n.titles = append(n.titles, title)
	return nil
}

type recordingEvents struct {
	placed  int
	changed int
}

func (e *recordingEvents) OrderPlaced(context.Context, *Order) error {
	e.placed++
	return nil
}

func (e *recordingEvents) OrderStatusChanged(context.Context, *Order, string, string) error {
	e.changed++
	return nil
}

type checkoutFixture struct {
	svc      *CheckoutService
	store    *checkoutStore
	coupons  *couponMem
	notifier *recordingNotifier
	events   *recordingEvents
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	store := &checkoutStore{
		cart: &cart.Cart{
			ID:     "cart-1",
			UserID: "u1",
			Items: []cart.Item{
				{ID: "l1", CartID: "cart-1", ProductID: "p1", Quantity: 2},
				{ID: "l2", CartID: "cart-1", ProductID: "p2", Quantity: 1},
			},
		},
		addresses: map[string]*shipping.Address{
			"addr-1": {ID: "addr-1", UserID: "u1", City: "lagos", State: "lagos"},
		},
		locations: map[string]bool{"loc-1": true},
	}

	products := checkoutProducts{
		"p1": {ID: "p1", Name: "Widget", Price: dec("100"), IsActive: true},
		"p2": {ID: "p2", Name: "Gadget", Price: dec("50"), IsActive: true},
	}

	coupons := &couponMem{coupon: &coupon.Coupon{
		ID:           "c1",
		Code:         "SAVE10",
		DiscountType: coupon.DiscountPercentage,
		DiscountValue: dec("10"),
		UsageLimit:   5,
		IsActive:     true,
	}}

	ship := &shippingMem{
		method: &shipping.DeliveryMethod{ID: "m1", Type: shipping.MethodDelivery, Price: dec("20"), IsActive: true},
		zone:   &shipping.Zone{ID: "z1", Name: "Lagos", City: "lagos", State: "lagos", IsActive: true},
		price:  &shipping.Price{ZoneID: "z1", DeliveryMethodID: "m1", Price: dec("15"), FreeOver: dec("1000")},
	}

	notifier := &recordingNotifier{}
	events := &recordingEvents{}

	svc := NewCheckoutService(
		store,
		products,
		coupon.NewLedger(coupons),
		shipping.NewResolver(ship),
		notifier,
		events,
		dec("0.075"),
	)
	return &checkoutFixture{svc: svc, store: store, coupons: coupons, notifier: notifier, events: events}
}

func TestCheckout_HappyPath(t *testing.T) {
	f := newCheckoutFixture(t)

	o, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		UserID:           "u1",
		BillingAddressID: "addr-1",
		DeliveryType:     "home_delivery",
		CouponCode:       "SAVE10",
	})
	require.NoError(t, err)
	require.NotNil(t, o)

	// subtotal 250, 10% off = 225, tax 7.5% = 16.88, orderTotal 241.88,
	// shipping 15, total 256.88.
	assert.True(t, dec("250").Equal(o.Subtotal), "subtotal %s", o.Subtotal)
	assert.True(t, dec("16.88").Equal(o.TaxAmount), "tax %s", o.TaxAmount)
	assert.True(t, dec("15").Equal(o.DeliveryFee), "fee %s", o.DeliveryFee)
	assert.True(t, dec("256.88").Equal(o.Total), "total %s", o.Total)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Widget", o.Items[0].ProductName)
	assert.Equal(t, o.ID, o.Items[0].OrderID)

	// Everything committed together.
	assert.Equal(t, 1, f.store.commits)
	assert.Len(t, f.store.created, 1)
	assert.Equal(t, []string{"cart-1"}, f.store.cleared)
	assert.Equal(t, 1, f.coupons.coupon.UsageCount)
	require.Len(t, f.coupons.usages, 1)
	assert.Equal(t, o.ID, f.coupons.usages[0].OrderID)

	// Post-commit side effects fired once.
	assert.Equal(t, []string{"Order placed"}, f.notifier.titles)
	assert.Equal(t, 1, f.events.placed)

	// The stored snapshot satisfies the money invariant.
	s := o.Summary()
	assert.True(t, s.Total.Equal(s.Subtotal.Add(s.TaxAmount).Add(s.DeliveryFee).Sub(s.DiscountAmount)))
}

func TestCheckout_FreeShippingOverThreshold(t *testing.T) {
	f := newCheckoutFixture(t)
	f.store.cart.Items = []cart.Item{
		{ID: "l1", CartID: "cart-1", ProductID: "p1", Quantity: 10}, // 1000
	}

	o, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		UserID:           "u1",
		BillingAddressID: "addr-1",
		DeliveryType:     "home_delivery",
	})
	require.NoError(t, err)
	// orderTotal 1075 >= free_over 1000.
	assert.True(t, o.DeliveryFee.IsZero(), "fee %s", o.DeliveryFee)
}

func TestCheckout_EmptyCartMakesNoWrites(t *testing.T) {
	f := newCheckoutFixture(t)
	f.store.cart.Items = nil

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		UserID:           "u1",
		BillingAddressID: "addr-1",
		DeliveryType:     "home_delivery",
	})
	require.ErrorIs(t, err, ErrCartEmpty)

	assert.Empty(t, f.store.created)
	assert.Empty(t, f.store.cleared)
	assert.Zero(t, f.store.commits)
	assert.Empty(t, f.coupons.usages)
	assert.Empty(t, f.notifier.titles)
	assert.Zero(t, f.events.placed)
}

func TestCheckout_PickupRequiresStoreLocation(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		UserID:       "u1",
		DeliveryType: "pickup",
	})
	require.ErrorIs(t, err, ErrStoreLocationRequired)

	_, err = f.svc.Checkout(context.Background(), CheckoutRequest{
		UserID:          "u1",
		DeliveryType:    "pickup",
		StoreLocationID: "nope",
	})
	require.ErrorIs(t, err, ErrStoreLocationNotFound)
}

func TestCheckout_PickupIsFree(t *testing.T) {
	f := newCheckoutFixture(t)

	o, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		UserID:          "u1",
		DeliveryType:    "pickup",
		StoreLocationID: "loc-1",
	})
	require.NoError(t, err)
	assert.True(t, o.DeliveryFee.IsZero())
	assert.Equal(t, "loc-1", o.StoreLocationID)
}

func TestCheckout_MissingBillingAddress(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		UserID:       "u1",
		DeliveryType: "home_delivery",
	})
	require.ErrorIs(t, err, ErrAddressNotFound, "home delivery requires a billing address")
	assert.Empty(t, f.store.created)
	assert.Empty(t, f.store.cleared)
	assert.Zero(t, f.events.placed)
}

func TestCheckout_ForeignAddressRejected(t *testing.T) {
	f := newCheckoutFixture(t)
	f.store.addresses["addr-2"] = &shipping.Address{ID: "addr-2", UserID: "someone-else", State: "lagos"}

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		UserID:           "u1",
		BillingAddressID: "addr-2",
		DeliveryType:     "home_delivery",
	})
	require.ErrorIs(t, err, ErrAddressNotFound)
	assert.Empty(t, f.store.created)
}

func TestCheckout_HomeDeliveryNeedsZone(t *testing.T) {
	f := newCheckoutFixture(t)
	f.store.addresses["addr-1"].City = "ibadan"
	f.store.addresses["addr-1"].State = "oyo"

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		UserID:           "u1",
		BillingAddressID: "addr-1",
		DeliveryType:     "home_delivery",
	})
	require.ErrorIs(t, err, shipping.ErrZoneNotFound)
	assert.Empty(t, f.store.created)
	assert.Empty(t, f.store.cleared)
}

func TestCheckout_CouponLimitRollsBackEverything(t *testing.T) {
	f := newCheckoutFixture(t)
	f.coupons.coupon.UsageLimit = 1
	f.coupons.coupon.UsageCount = 1
	// The advisory ledger count is stale, so validation passes and the
	// conditional increment is what rejects the redemption.
	f.coupons.usages = nil

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		UserID:           "u1",
		BillingAddressID: "addr-1",
		DeliveryType:     "home_delivery",
		CouponCode:       "SAVE10",
	})
	require.ErrorIs(t, err, coupon.ErrUsageLimitReached)

	assert.Empty(t, f.store.created, "order creation must roll back with the coupon")
	assert.Empty(t, f.store.cleared)
	assert.Zero(t, f.store.commits)
	assert.Empty(t, f.notifier.titles)
}

func TestCheckout_InvalidCouponFailsCheckout(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		UserID:           "u1",
		BillingAddressID: "addr-1",
		DeliveryType:     "home_delivery",
		CouponCode:       "NOPE",
	})
	require.ErrorIs(t, err, coupon.ErrNotFound)
	assert.Empty(t, f.store.created)
}
