package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fulfillStore struct {
	order   *Order
	user    *UserInfo
	patches []OrderPatch
}

func (s *fulfillStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *fulfillStore) OrderWithUser(_ context.Context, orderID string) (*Order, *UserInfo, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, nil, ErrNotFound
	}
	return s.order, s.user, nil
}

func (s *fulfillStore) UpdateFulfillment(_ context.Context, _ string, patch OrderPatch) error {
	s.patches = append(s.patches, patch)
	return nil
}

type recordingMailer struct {
	statuses []ReceiptStatus
	emails   []string
}

func (m *recordingMailer) SendReceipt(_ context.Context, _ *Order, email string, status ReceiptStatus) error {
	m.statuses = append(m.statuses, status)
	m.emails = append(m.emails, email)
	return nil
}

type fulfillFixture struct {
	svc      *FulfillmentService
	store    *fulfillStore
	notifier *recordingNotifier
	mailer   *recordingMailer
	events   *recordingEvents
}

func newFulfillFixture(t *testing.T) *fulfillFixture {
	t.Helper()

	store := &fulfillStore{
		order: &Order{
			ID:            "o1",
			UserID:        "u1",
			Status:        StatusProcessing,
			PaymentStatus: PaymentPaid,
		},
		user: &UserInfo{ID: "u1", Name: "Ada", Email: "ada@example.com"},
	}
	notifier := &recordingNotifier{}
	mailer := &recordingMailer{}
	events := &recordingEvents{}

	svc := NewFulfillmentService(store, notifier, mailer, events)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	return &fulfillFixture{svc: svc, store: store, notifier: notifier, mailer: mailer, events: events}
}

func strPtr(s string) *string { return &s }

func TestFulfillment_TransitTransition(t *testing.T) {
	f := newFulfillFixture(t)

	o, err := f.svc.Update(context.Background(), "o1", OrderPatch{
		DeliveryStatus: strPtr(DeliveryInTransit),
		TrackingCode:   strPtr("TRK-42"),
	})
	require.NoError(t, err)

	assert.Equal(t, DeliveryInTransit, o.DeliveryStatus)
	assert.Equal(t, "TRK-42", o.TrackingCode)
	require.NotNil(t, o.ShippingDate, "transit auto-stamps the shipping date")

	require.Len(t, f.store.patches, 1)
	require.NotNil(t, f.store.patches[0].ShippingDate, "the stamp is persisted, not just in memory")

	assert.Equal(t, []ReceiptStatus{ReceiptInTransit}, f.mailer.statuses)
	assert.Equal(t, []string{"ada@example.com"}, f.mailer.emails)
	assert.Equal(t, []string{"Order shipped"}, f.notifier.titles)
	assert.Equal(t, 1, f.events.changed)
}

func TestFulfillment_DeliveredViaStatus(t *testing.T) {
	f := newFulfillFixture(t)

	o, err := f.svc.Update(context.Background(), "o1", OrderPatch{
		Status: strPtr(StatusDelivered),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusDelivered, o.Status)
	require.NotNil(t, o.DeliveredAt, "delivered auto-stamps the delivery timestamp")
	assert.Equal(t, []ReceiptStatus{ReceiptDelivered}, f.mailer.statuses)
	assert.Equal(t, []string{"Order delivered"}, f.notifier.titles)
}

func TestFulfillment_DeliveredViaDeliveryStatus(t *testing.T) {
	f := newFulfillFixture(t)

	o, err := f.svc.Update(context.Background(), "o1", OrderPatch{
		DeliveryStatus: strPtr(DeliveryDelivered),
	})
	require.NoError(t, err)

	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, []ReceiptStatus{ReceiptDelivered}, f.mailer.statuses)
}

func TestFulfillment_DeliveredStampsBothDates(t *testing.T) {
	f := newFulfillFixture(t)

	o, err := f.svc.Update(context.Background(), "o1", OrderPatch{
		DeliveryStatus: strPtr(DeliveryDelivered),
	})
	require.NoError(t, err)

	require.NotNil(t, o.DeliveredAt)
	require.NotNil(t, o.DeliveryDate, "delivered also stamps the delivery date when unset")
	assert.True(t, o.DeliveryDate.Equal(*o.DeliveredAt))

	require.Len(t, f.store.patches, 1)
	require.NotNil(t, f.store.patches[0].DeliveredAt)
	require.NotNil(t, f.store.patches[0].DeliveryDate, "both stamps are persisted")
}

func TestFulfillment_RepeatedPatchIsIdempotent(t *testing.T) {
	f := newFulfillFixture(t)
	patch := OrderPatch{DeliveryStatus: strPtr(DeliveryInTransit)}

	_, err := f.svc.Update(context.Background(), "o1", patch)
	require.NoError(t, err)

	o, err := f.svc.Update(context.Background(), "o1", patch)
	require.NoError(t, err)

	assert.Equal(t, DeliveryInTransit, o.DeliveryStatus)
	assert.Len(t, f.store.patches, 1, "second identical patch must not write")
	assert.Len(t, f.mailer.statuses, 1, "receipt must go out exactly once")
	assert.Len(t, f.notifier.titles, 1)
	assert.Equal(t, 1, f.events.changed)
}

func TestFulfillment_NoOpPatch(t *testing.T) {
	f := newFulfillFixture(t)

	o, err := f.svc.Update(context.Background(), "o1", OrderPatch{
		Status:        strPtr(StatusProcessing),
		PaymentStatus: strPtr(PaymentPaid),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusProcessing, o.Status)
	assert.Empty(t, f.store.patches)
	assert.Empty(t, f.mailer.statuses)
	assert.Empty(t, f.notifier.titles)
	assert.Zero(t, f.events.changed)
}

func TestFulfillment_ExplicitDatesWin(t *testing.T) {
	f := newFulfillFixture(t)
	shipped := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)

	o, err := f.svc.Update(context.Background(), "o1", OrderPatch{
		DeliveryStatus: strPtr(DeliveryInTransit),
		ShippingDate:   &shipped,
	})
	require.NoError(t, err)
	require.NotNil(t, o.ShippingDate)
	assert.True(t, o.ShippingDate.Equal(shipped), "a caller-supplied date is not overwritten by the stamp")
}

func TestFulfillment_NoEmailSkipsReceipt(t *testing.T) {
	f := newFulfillFixture(t)
	f.store.user.Email = ""

	_, err := f.svc.Update(context.Background(), "o1", OrderPatch{
		DeliveryStatus: strPtr(DeliveryInTransit),
	})
	require.NoError(t, err)

	assert.Empty(t, f.mailer.statuses, "no address to send to")
	assert.Equal(t, []string{"Order shipped"}, f.notifier.titles, "in-app notification still fires")
}

func TestFulfillment_UnknownOrder(t *testing.T) {
	f := newFulfillFixture(t)
	_, err := f.svc.Update(context.Background(), "missing", OrderPatch{Status: strPtr(StatusShipped)})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFulfillment_PaymentStatusChangeEmitsNoReceipt(t *testing.T) {
	f := newFulfillFixture(t)

	_, err := f.svc.Update(context.Background(), "o1", OrderPatch{
		PaymentStatus: strPtr(PaymentFailed),
	})
	require.NoError(t, err)

	assert.Len(t, f.store.patches, 1)
	assert.Empty(t, f.mailer.statuses)
	assert.Zero(t, f.events.changed, "neither status nor delivery status changed")
}

func TestOrderPatch_IsZero(t *testing.T) {
	assert.True(t, OrderPatch{}.IsZero())
	assert.False(t, OrderPatch{Status: strPtr(StatusShipped)}.IsZero())
}
