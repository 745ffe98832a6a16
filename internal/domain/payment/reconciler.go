package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/gadget-cartel/internal/domain/order"
)

// Reconciler drives the payment lifecycle: Initiate opens a gateway
// transaction for an order, Verify settles it.
//
// Verify is idempotent. A payment already marked SUCCESS is returned as-is
// without touching the gateway or the order, so webhook retries and users
// refreshing the callback page cannot promote the order twice.
type Reconciler struct {
	store    Store
	gateway  Gateway
	notifier order.Notifier
	currency string
	now      func() time.Time
}

// NewReconciler wires the reconciler. Currency is the ISO code sent to the
// gateway with every transaction.
func NewReconciler(store Store, gateway Gateway, notifier order.Notifier, currency string) *Reconciler {
	return &Reconciler{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		currency: currency,
		now:      time.Now,
	}
}

// Initiated is the result of opening a gateway transaction.
type Initiated struct {
	Payment          *Payment
	AuthorizationURL string
	AccessCode       string
}

// Initiate opens a gateway transaction for the order and upserts the
// payment row with a fresh reference. Re-initiating a pending payment is
// allowed and replaces the previous reference; a paid order is rejected.
func (r *Reconciler) Initiate(ctx context.Context, orderID, userID string) (*Initiated, error) {
	o, user, err := r.store.OrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == order.PaymentPaid {
		return nil, ErrAlreadyPaid
	}

	existing, err := r.store.ByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "load payment")
	}
	if existing != nil && existing.Status == StatusSuccess {
		return nil, ErrAlreadyPaid
	}

	reference := NewReference(r.now(), orderID)
	auth, err := r.gateway.Initialize(ctx, InitializeRequest{
		Email:     user.Email,
		Amount:    o.Total,
		Currency:  r.currency,
		Reference: reference,
		Metadata: map[string]any{
			"order_id":     o.ID,
			"order_number": o.Number(),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "initialize transaction")
	}

	p := existing
	if p == nil {
		p = &Payment{
			ID:      uuid.New().String(),
			OrderID: o.ID,
			UserID:  o.UserID,
		}
	}
	p.Reference = reference
	p.Amount = o.Total
	p.Currency = r.currency
	p.Status = StatusPending

	if err := r.store.Upsert(ctx, p); err != nil {
		return nil, errors.Wrap(err, "save payment")
	}

	return &Initiated{
		Payment:          p,
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
	}, nil
}

// ListForUser returns the user's payments, newest first.
func (r *Reconciler) ListForUser(ctx context.Context, userID string) ([]Payment, error) {
	return r.store.ListForUser(ctx, userID)
}

// Verify settles a payment by reference. On gateway success the payment and
// the order are updated in one transaction: payment SUCCESS, order paid and
// processing. Anything else marks the payment FAILED and records the failed
// attempt on the order without changing its lifecycle status.
func (r *Reconciler) Verify(ctx context.Context, reference string) (*Payment, error) {
	p, err := r.store.ByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusSuccess {
		return p, nil
	}

	res, err := r.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, errors.Wrap(err, "verify transaction")
	}

	succeeded := res.Succeeded() && res.Amount.GreaterThanOrEqual(p.Amount)

	err = r.store.WithinTx(ctx, func(ctx context.Context) error {
		if succeeded {
			paidAt := res.PaidAt
			if paidAt == nil {
				now := r.now()
				paidAt = &now
			}
			if err := r.store.MarkOutcome(ctx, p.ID, StatusSuccess, res.Channel, paidAt); err != nil {
				return errors.Wrap(err, "mark payment success")
			}
			p.Status = StatusSuccess
			p.Channel = res.Channel
			p.PaidAt = paidAt
			return errors.Wrap(r.store.SetOrderPaid(ctx, p.OrderID), "mark order paid")
		}

		if err := r.store.MarkOutcome(ctx, p.ID, StatusFailed, res.Channel, nil); err != nil {
			return errors.Wrap(err, "mark payment failed")
		}
		p.Status = StatusFailed
		p.Channel = res.Channel
		return errors.Wrap(r.store.SetOrderPaymentFailed(ctx, p.OrderID), "mark order payment failed")
	})
	if err != nil {
		return nil, err
	}

	if succeeded && r.notifier != nil {
		err := r.notifier.Notify(ctx, p.UserID,
			"Payment confirmed",
			"Payment for order "+order.NumberFromID(p.OrderID)+" was successful.",
			"payment",
		)
		if err != nil {
			zctx.From(ctx).Error("Payment notification failed",
				zap.String("payment_id", p.ID), zap.Error(err))
		}
	}
	return p, nil
}
