package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/gadget-cartel/internal/domain/cart"
	"github.com/xenking/gadget-cartel/internal/domain/coupon"
	"github.com/xenking/gadget-cartel/internal/domain/money"
	"github.com/xenking/gadget-cartel/internal/domain/product"
	"github.com/xenking/gadget-cartel/internal/domain/shipping"
)

// CheckoutRequest carries the buyer's choices for a checkout.
type CheckoutRequest struct {
	UserID           string
	BillingAddressID string
	StoreLocationID  string
	DeliveryType     string
	DeliveryMethodID string
	ZoneID           string
	CouponCode       string
}

// CheckoutStore is the write side of checkout. Every method called between
// WithinTx's begin and commit observes and mutates the same transaction.
type CheckoutStore interface {
	// WithinTx runs fn inside a single database transaction. The transaction
	// travels in the context handed to fn.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// CartWithItems returns the user's cart with lines, or (nil, nil).
	CartWithItems(ctx context.Context, userID string) (*cart.Cart, error)
	ClearCart(ctx context.Context, cartID string) error

	// AddressForUser returns the address only when it belongs to the user,
	// (nil, nil) otherwise.
	AddressForUser(ctx context.Context, addressID, userID string) (*shipping.Address, error)
	StoreLocationExists(ctx context.Context, id string) (bool, error)
	UserInfo(ctx context.Context, userID string) (*UserInfo, error)

	CreateOrder(ctx context.Context, o *Order) error
}

// CheckoutService turns a cart into an order in one transaction.
type CheckoutService struct {
	store    CheckoutStore
	products product.Store
	coupons  *coupon.Ledger
	shipping *shipping.Resolver
	notifier Notifier
	events   EventPublisher
	taxRate  decimal.Decimal
}

// NewCheckoutService wires the checkout orchestrator. A nil notifier disables
// in-app notifications; a nil events publisher falls back to NopPublisher.
func NewCheckoutService(
	store CheckoutStore,
	products product.Store,
	coupons *coupon.Ledger,
	resolver *shipping.Resolver,
	notifier Notifier,
	events EventPublisher,
	taxRate decimal.Decimal,
) *CheckoutService {
	if events == nil {
		events = NopPublisher{}
	}
	return &CheckoutService{
		store:    store,
		products: products,
		coupons:  coupons,
		shipping: resolver,
		notifier: notifier,
		events:   events,
		taxRate:  taxRate,
	}
}

// Checkout places an order from the user's cart.
//
// Everything that writes runs in a single transaction: order creation, coupon
// redemption, and the cart wipe commit or roll back together. In particular a
// coupon that loses the race for its last allowed use fails the whole
// checkout, leaving the cart untouched. Notifications and events fire only
// after a successful commit and never fail the call.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	var placed *Order

	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.store.CartWithItems(ctx, req.UserID)
		if err != nil {
			return errors.Wrap(err, "load cart")
		}
		if c == nil || len(c.Items) == 0 {
			return ErrCartEmpty
		}

		addr, err := s.resolveAddress(ctx, req)
		if err != nil {
			return err
		}
		if err := s.checkStoreLocation(ctx, req); err != nil {
			return err
		}

		items, subtotal, err := s.snapshotItems(ctx, c.Items)
		if err != nil {
			return err
		}

		var redeemed *coupon.Coupon
		discount := decimal.Zero
		if req.CouponCode != "" {
			redeemed, discount, err = s.coupons.ValidateAndPrice(ctx, req.CouponCode, req.UserID, subtotal)
			if err != nil {
				return err
			}
		}

		discounted := money.FloorAtZero(subtotal.Sub(discount))
		taxAmount := discounted.Mul(s.taxRate).Round(2)
		orderTotal := discounted.Add(taxAmount)

		quote, err := s.shipping.Quote(ctx, shipping.QuoteRequest{
			Address:          addr,
			DeliveryType:     req.DeliveryType,
			DeliveryMethodID: req.DeliveryMethodID,
			ZoneID:           req.ZoneID,
			OrderTotal:       orderTotal,
		})
		if err != nil {
			return err
		}
		// Home delivery must land in a known zone; pickup and flat-price
		// fallback without an address are fine, silent zone misses are not.
		if !isPickupType(req.DeliveryType) && addr != nil && quote.ZoneID == "" {
			return shipping.ErrZoneNotFound
		}

		o := &Order{
			ID:              uuid.New().String(),
			UserID:          req.UserID,
			AddressID:       req.BillingAddressID,
			StoreLocationID: req.StoreLocationID,
			DeliveryType:    req.DeliveryType,
			CouponCode:      req.CouponCode,
			Subtotal:        subtotal,
			TaxAmount:       taxAmount,
			DeliveryFee:     quote.Fee,
			Total:           orderTotal.Add(quote.Fee),
			Status:          StatusPending,
			PaymentStatus:   PaymentPending,
			Items:           items,
		}
		for i := range o.Items {
			o.Items[i].OrderID = o.ID
		}

		if err := s.store.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		if redeemed != nil {
			if err := s.coupons.Redeem(ctx, redeemed, req.UserID, o.ID); err != nil {
				return err
			}
		}

		if err := s.store.ClearCart(ctx, c.ID); err != nil {
			return errors.Wrap(err, "clear cart")
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterPlaced(ctx, placed)
	return placed, nil
}

func (s *CheckoutService) resolveAddress(ctx context.Context, req CheckoutRequest) (*shipping.Address, error) {
	if req.BillingAddressID == "" {
		// Only pickup orders may omit the billing address.
		if isPickupType(req.DeliveryType) {
			return nil, nil
		}
		return nil, ErrAddressNotFound
	}
	addr, err := s.store.AddressForUser(ctx, req.BillingAddressID, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load address")
	}
	if addr == nil {
		return nil, ErrAddressNotFound
	}
	return addr, nil
}

func (s *CheckoutService) checkStoreLocation(ctx context.Context, req CheckoutRequest) error {
	if !isPickupType(req.DeliveryType) {
		return nil
	}
	if req.StoreLocationID == "" {
		return ErrStoreLocationRequired
	}
	ok, err := s.store.StoreLocationExists(ctx, req.StoreLocationID)
	if err != nil {
		return errors.Wrap(err, "check store location")
	}
	if !ok {
		return ErrStoreLocationNotFound
	}
	return nil
}

// snapshotItems prices cart lines against the live catalog and freezes the
// result. The order keeps these prices even if the catalog changes later.
func (s *CheckoutService) snapshotItems(ctx context.Context, lines []cart.Item) ([]Item, decimal.Decimal, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "load products")
	}
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]Item, 0, len(lines))
	subtotal := decimal.Zero
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, decimal.Zero, errors.Wrapf(product.ErrNotFound, "product %s", l.ProductID)
		}
		items = append(items, Item{
			ID:          uuid.New().String(),
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			Price:       p.Price,
			Metadata:    l.Metadata,
		})
		subtotal = subtotal.Add(money.LineTotal(p.Price, l.Quantity))
	}
	return items, subtotal, nil
}

// afterPlaced runs the post-commit side effects. They are best-effort: the
// order is already committed, so failures are logged and swallowed.
func (s *CheckoutService) afterPlaced(ctx context.Context, o *Order) {
	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))

	if s.notifier != nil {
		err := s.notifier.Notify(ctx, o.UserID,
			"Order placed",
			"Your order "+o.Number()+" has been received and is being processed.",
			"order",
		)
		if err != nil {
			lg.Error("Order notification failed", zap.Error(err))
		}
	}
	if err := s.events.OrderPlaced(ctx, o); err != nil {
		lg.Error("Order event publish failed", zap.Error(err))
	}
}

func isPickupType(deliveryType string) bool {
	switch deliveryType {
	case "pickup", "PICKUP", "pick_up_from_store", "PICK_UP_FROM_STORE":
		return true
	}
	return false
}
