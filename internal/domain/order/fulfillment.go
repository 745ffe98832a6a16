package order

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// OrderPatch is a partial fulfillment update. Nil means "leave unchanged";
// the HTTP layer rejects unknown fields before one of these is built.
type OrderPatch struct {
	Status         *string
	PaymentStatus  *string
	DeliveryStatus *string
	TrackingCode   *string
	DeliveryType   *string
	DeliveryDate   *time.Time
	ShippingDate   *time.Time
	DeliveredAt    *time.Time
}

// IsZero reports whether the patch carries no fields at all.
func (p OrderPatch) IsZero() bool {
	return p.Status == nil && p.PaymentStatus == nil && p.DeliveryStatus == nil &&
		p.TrackingCode == nil && p.DeliveryType == nil &&
		p.DeliveryDate == nil && p.ShippingDate == nil && p.DeliveredAt == nil
}

// FulfillmentStore is the write side of fulfillment updates.
type FulfillmentStore interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// OrderWithUser returns the order together with its buyer, or
	// (nil, nil, ErrNotFound).
	OrderWithUser(ctx context.Context, orderID string) (*Order, *UserInfo, error)
	// UpdateFulfillment applies the non-nil patch fields to the order row.
	UpdateFulfillment(ctx context.Context, orderID string, patch OrderPatch) error
}

// FulfillmentService applies admin fulfillment patches to orders.
//
// The state diff is computed against the row read inside the update
// transaction, so re-sending the same patch is a no-op: no write happens and
// no side effect fires twice. Receipt emails and notifications go out only
// after the transaction commits.
type FulfillmentService struct {
	store    FulfillmentStore
	notifier Notifier
	mailer   ReceiptMailer
	events   EventPublisher
	now      func() time.Time
}

// NewFulfillmentService wires the fulfillment updater. Notifier and mailer
// may be nil to disable the respective side effect; a nil events publisher
// falls back to NopPublisher.
func NewFulfillmentService(store FulfillmentStore, notifier Notifier, mailer ReceiptMailer, events EventPublisher) *FulfillmentService {
	if events == nil {
		events = NopPublisher{}
	}
	return &FulfillmentService{
		store:    store,
		notifier: notifier,
		mailer:   mailer,
		events:   events,
		now:      time.Now,
	}
}

// fulfillmentOutcome records what actually changed inside the transaction so
// side effects can be decided after commit.
type fulfillmentOutcome struct {
	order         *Order
	user          *UserInfo
	patch         OrderPatch
	prevStatus    string
	prevDelivery  string
	changed       bool
	sendTransit   bool
	sendDelivered bool
}

// Update patches an order's fulfillment state and fires the side effects the
// resulting transitions call for.
func (s *FulfillmentService) Update(ctx context.Context, orderID string, patch OrderPatch) (*Order, error) {
	var out fulfillmentOutcome

	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		o, user, err := s.store.OrderWithUser(ctx, orderID)
		if err != nil {
			return err
		}
		out = s.apply(o, user, patch)
		if !out.changed {
			return nil
		}
		return s.store.UpdateFulfillment(ctx, orderID, out.patch)
	})
	if err != nil {
		return nil, err
	}

	if out.changed {
		s.afterUpdate(ctx, out)
	}
	return out.order, nil
}

// apply diffs the patch against the current row, drops fields that would not
// change anything, and auto-stamps the dates the transitions imply. The patch
// is a value copy, so narrowing it here never touches the caller's struct.
func (s *FulfillmentService) apply(o *Order, user *UserInfo, patch OrderPatch) fulfillmentOutcome {
	out := fulfillmentOutcome{
		order:        o,
		user:         user,
		prevStatus:   o.Status,
		prevDelivery: o.DeliveryStatus,
	}

	if patch.Status != nil && *patch.Status != o.Status {
		if *patch.Status == StatusDelivered {
			out.sendDelivered = true
		}
		o.Status = *patch.Status
		out.changed = true
	} else {
		patch.Status = nil
	}

	if patch.PaymentStatus != nil && *patch.PaymentStatus != o.PaymentStatus {
		o.PaymentStatus = *patch.PaymentStatus
		out.changed = true
	} else {
		patch.PaymentStatus = nil
	}

	if patch.DeliveryStatus != nil && *patch.DeliveryStatus != o.DeliveryStatus {
		switch *patch.DeliveryStatus {
		case DeliveryInTransit:
			out.sendTransit = true
		case DeliveryDelivered:
			out.sendDelivered = true
		}
		o.DeliveryStatus = *patch.DeliveryStatus
		out.changed = true
	} else {
		patch.DeliveryStatus = nil
	}

	if patch.TrackingCode != nil && *patch.TrackingCode != o.TrackingCode {
		o.TrackingCode = *patch.TrackingCode
		out.changed = true
	} else {
		patch.TrackingCode = nil
	}

	if patch.DeliveryType != nil && *patch.DeliveryType != o.DeliveryType {
		o.DeliveryType = *patch.DeliveryType
		out.changed = true
	} else {
		patch.DeliveryType = nil
	}

	if patch.DeliveryDate != nil && !equalTime(patch.DeliveryDate, o.DeliveryDate) {
		o.DeliveryDate = patch.DeliveryDate
		out.changed = true
	} else {
		patch.DeliveryDate = nil
	}
	if patch.ShippingDate != nil && !equalTime(patch.ShippingDate, o.ShippingDate) {
		o.ShippingDate = patch.ShippingDate
		out.changed = true
	} else {
		patch.ShippingDate = nil
	}
	if patch.DeliveredAt != nil && !equalTime(patch.DeliveredAt, o.DeliveredAt) {
		o.DeliveredAt = patch.DeliveredAt
		out.changed = true
	} else {
		patch.DeliveredAt = nil
	}

	// The transitions imply their own timestamps when the caller did not
	// supply one.
	now := s.now()
	if out.sendTransit && o.ShippingDate == nil {
		o.ShippingDate = &now
		patch.ShippingDate = &now
		out.changed = true
	}
	if out.sendDelivered {
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
			patch.DeliveredAt = &now
			out.changed = true
		}
		if o.DeliveryDate == nil {
			o.DeliveryDate = &now
			patch.DeliveryDate = &now
			out.changed = true
		}
	}

	out.patch = patch
	return out
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// afterUpdate runs post-commit side effects for the transitions recorded in
// the outcome. Best-effort: failures are logged, the update already stands.
func (s *FulfillmentService) afterUpdate(ctx context.Context, out fulfillmentOutcome) {
	o := out.order
	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))

	if out.sendTransit || out.sendDelivered {
		status := ReceiptInTransit
		title := "Order shipped"
		message := "Your order " + o.Number() + " is on its way."
		if out.sendDelivered {
			status = ReceiptDelivered
			title = "Order delivered"
			message = "Your order " + o.Number() + " has been delivered."
		}

		if s.mailer != nil && out.user != nil && out.user.Email != "" {
			if err := s.mailer.SendReceipt(ctx, o, out.user.Email, status); err != nil {
				lg.Error("Receipt email failed", zap.Error(err))
			}
		}
		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, o.UserID, title, message, "order"); err != nil {
				lg.Error("Order notification failed", zap.Error(err))
			}
		}
	}

	if o.Status != out.prevStatus || o.DeliveryStatus != out.prevDelivery {
		if err := s.events.OrderStatusChanged(ctx, o, out.prevStatus, out.prevDelivery); err != nil {
			lg.Error("Order event publish failed", zap.Error(err))
		}
	}
}
