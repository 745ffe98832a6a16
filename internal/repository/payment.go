package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/gadget-cartel/internal/domain/order"
	"github.com/xenking/gadget-cartel/internal/domain/payment"
)

const (
	paymentColumns = `id, order_id, user_id, amount, currency, reference,
		status, channel, paid_at, created_at`

	getPaymentByReferenceSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1`
	getPaymentByOrderSQL     = `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`
	listPaymentsForUserSQL   = `SELECT ` + paymentColumns + ` FROM payments
		WHERE user_id = $1 ORDER BY created_at DESC`

	// One payment row per order; re-initiation replaces the reference.
	upsertPaymentSQL = `INSERT INTO payments (id, order_id, user_id, amount, currency, reference, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO UPDATE SET
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			reference = EXCLUDED.reference,
			status = EXCLUDED.status,
			updated_at = now()`

	markPaymentOutcomeSQL = `UPDATE payments
		SET status = $2, channel = $3, paid_at = $4, updated_at = now()
		WHERE id = $1`

	setOrderPaidSQL = `UPDATE orders
		SET payment_status = 'PAID', status = 'PROCESSING', updated_at = now()
		WHERE id = $1`

	setOrderPaymentFailedSQL = `UPDATE orders
		SET payment_status = 'FAILED', updated_at = now()
		WHERE id = $1`
)

var _ payment.Store = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Store backed by PostgreSQL.
type PaymentRepository struct {
	*DB
	orders *OrderRepository
}

// NewPaymentRepository returns a PaymentRepository on the given DB.
func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{DB: db, orders: NewOrderRepository(db)}
}

// ByReference returns the payment carrying the reference, or payment.ErrNotFound.
func (r *PaymentRepository) ByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	rows, err := r.q(ctx).Query(ctx, getPaymentByReferenceSQL, reference)
	if err != nil {
		return nil, errors.Wrapf(err, "getting payment by reference %q", reference)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting payment by reference %q", reference)
	}
	return &p, nil
}

// ByOrder returns the order's payment, or (nil, nil).
func (r *PaymentRepository) ByOrder(ctx context.Context, orderID string) (*payment.Payment, error) {
	rows, err := r.q(ctx).Query(ctx, getPaymentByOrderSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "getting payment for order %q", orderID)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "getting payment for order %q", orderID)
	}
	return &p, nil
}

// ListForUser returns the user's payments, newest first.
func (r *PaymentRepository) ListForUser(ctx context.Context, userID string) ([]payment.Payment, error) {
	rows, err := r.q(ctx).Query(ctx, listPaymentsForUserSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing payments")
	}
	return pgx.CollectRows(rows, scanPayment)
}

// Upsert inserts the payment or replaces the existing row for its order.
func (r *PaymentRepository) Upsert(ctx context.Context, p *payment.Payment) error {
	_, err := r.q(ctx).Exec(ctx, upsertPaymentSQL,
		p.ID, p.OrderID, p.UserID, p.Amount, p.Currency, p.Reference, p.Status,
	)
	if err != nil {
		return errors.Wrapf(err, "upserting payment for order %q", p.OrderID)
	}
	return nil
}

// MarkOutcome finalizes the payment row after verification.
func (r *PaymentRepository) MarkOutcome(ctx context.Context, paymentID, status, channel string, paidAt *time.Time) error {
	_, err := r.q(ctx).Exec(ctx, markPaymentOutcomeSQL, paymentID, status, channel, paidAt)
	if err != nil {
		return errors.Wrapf(err, "marking payment %q", paymentID)
	}
	return nil
}

// OrderForUser returns the order with its buyer when the user owns it.
func (r *PaymentRepository) OrderForUser(ctx context.Context, orderID, userID string) (*order.Order, *order.UserInfo, error) {
	o, err := r.orders.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, nil, err
	}
	u, err := r.orders.UserInfo(ctx, o.UserID)
	if err != nil {
		return nil, nil, err
	}
	return o, u, nil
}

// SetOrderPaid marks the order paid and moves it to processing.
func (r *PaymentRepository) SetOrderPaid(ctx context.Context, orderID string) error {
	_, err := r.q(ctx).Exec(ctx, setOrderPaidSQL, orderID)
	if err != nil {
		return errors.Wrapf(err, "marking order %q paid", orderID)
	}
	return nil
}

// SetOrderPaymentFailed records a failed payment attempt on the order.
func (r *PaymentRepository) SetOrderPaymentFailed(ctx context.Context, orderID string) error {
	_, err := r.q(ctx).Exec(ctx, setOrderPaymentFailedSQL, orderID)
	if err != nil {
		return errors.Wrapf(err, "marking order %q payment failed", orderID)
	}
	return nil
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.Currency, &p.Reference,
		&p.Status, &p.Channel, &p.PaidAt, &p.CreatedAt,
	)
	return p, err
}
