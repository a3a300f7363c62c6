package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAudits struct {
	mu      sync.Mutex
	entries []*models.PaymentAudit
}

func (r *recordingAudits) Log(ctx context.Context, audit *models.PaymentAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, audit)
	return nil
}

func (r *recordingAudits) events() []models.PaymentEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PaymentEventType, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.EventType)
	}
	return out
}

type paymentFixture struct {
	*bookingFixture
	payments *PaymentService
	gateway  *RazorpayService
	audits   *recordingAudits
	orders   int
}

var testMeta = RequestMeta{
	IP:        "203.0.113.7",
	UserAgent: "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36",
}

func setupPaymentTest(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{bookingFixture: setupBookingTest(t), audits: &recordingAudits{}}

	var mu sync.Mutex
	f.gateway = newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		var body razorpayOrderRequest
		_ = json.NewDecoder(r.Body).Decode(&body)

		mu.Lock()
		f.orders++
		id := "order_" + uuid.NewString()[:8]
		mu.Unlock()

		_ = json.NewEncoder(w).Encode(GatewayOrder{ID: id, Amount: body.Amount, Currency: body.Currency, Receipt: body.Receipt, Status: "created"})
	})
	f.payments = NewPaymentService(f.service, f.gateway, f.audits, testLogger())
	return f
}

func TestPaymentFlow(t *testing.T) {
	f := setupPaymentTest(t)
	ctx := context.Background()

	b, err := f.service.InitiateBooking(ctx, f.user, f.window(24*time.Hour, 5*time.Hour))
	require.NoError(t, err)

	order, err := f.payments.InitiatePayment(ctx, f.user, b.ID, testMeta)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), order.AmountPaise)
	assert.Equal(t, "booking_receipt_"+b.ID.String(), order.Receipt)
	assert.Equal(t, "rzp_test_key", order.KeyID)
	assert.Equal(t, order.OrderID, *f.bookings.get(b.ID).PaymentOrderID)

	paid, err := f.payments.HandleCallback(ctx, f.user, PaymentCallback{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: f.gateway.Signature(order.OrderID, "pay_1"),
	}, testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPaid, paid.Status)
	assert.Equal(t, "pay_1", *paid.PaymentID)

	_, err = f.payments.HandleCallback(ctx, f.user, PaymentCallback{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: f.gateway.Signature(order.OrderID, "pay_1"),
	}, testMeta)
	assert.True(t, models.IsGuardError(err))

	assert.Equal(t, []models.PaymentEventType{
		models.PaymentEventOrderCreated,
		models.PaymentEventCallbackReceived,
		models.PaymentEventBookingConfirmed,
		models.PaymentEventCallbackReceived,
		models.PaymentEventDuplicate,
	}, f.audits.events())

	created := f.audits.entries[0]
	require.NotNil(t, created.IPAddress)
	assert.Equal(t, "203.0.113.7", *created.IPAddress)
	assert.Equal(t, "android", created.Details["platform"])

	_, err = f.payments.InitiatePayment(ctx, f.user, b.ID, testMeta)
	assert.True(t, models.IsGuardError(err), "paid bookings take no new orders")
	assert.Equal(t, 1, f.orders)
}

func TestHandleCallback_SignatureMismatch(t *testing.T) {
	f := setupPaymentTest(t)
	ctx := context.Background()

	b, err := f.service.InitiateBooking(ctx, f.user, f.window(24*time.Hour, 5*time.Hour))
	require.NoError(t, err)
	order, err := f.payments.InitiatePayment(ctx, f.user, b.ID, testMeta)
	require.NoError(t, err)

	_, err = f.payments.HandleCallback(ctx, f.user, PaymentCallback{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: f.gateway.Signature(order.OrderID, "pay_other"),
	}, testMeta)
	assert.ErrorIs(t, err, models.ErrSignatureMismatch)
	assert.True(t, models.IsIntegrityError(err))

	stored := f.bookings.get(b.ID)
	assert.Equal(t, models.BookingStatusPending, stored.Status)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
	assert.Contains(t, f.audits.events(), models.PaymentEventSignatureMismatch)
}

func TestHandleCallback_UnknownOrder(t *testing.T) {
	f := setupPaymentTest(t)

	_, err := f.payments.HandleCallback(context.Background(), f.user, PaymentCallback{
		OrderID:   "order_ghost",
		PaymentID: "pay_1",
		Signature: f.gateway.Signature("order_ghost", "pay_1"),
	}, testMeta)
	assert.ErrorIs(t, err, models.ErrUnknownOrder)
}

func TestInitiatePayment_NotOwner(t *testing.T) {
	f := setupPaymentTest(t)
	ctx := context.Background()

	b, err := f.service.InitiateBooking(ctx, f.user, f.window(24*time.Hour, 5*time.Hour))
	require.NoError(t, err)

	_, err = f.payments.InitiatePayment(ctx, models.Actor{AccountID: uuid.New(), Role: models.RoleUser}, b.ID, testMeta)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, 0, f.orders)
}

func TestHandleFailure_ThenRetry(t *testing.T) {
	f := setupPaymentTest(t)
	ctx := context.Background()

	b, err := f.service.InitiateBooking(ctx, f.user, f.window(24*time.Hour, 5*time.Hour))
	require.NoError(t, err)
	first, err := f.payments.InitiatePayment(ctx, f.user, b.ID, testMeta)
	require.NoError(t, err)

	failed, err := f.payments.HandleFailure(ctx, f.user, PaymentFailure{OrderID: first.OrderID, PaymentID: "pay_1", Reason: "card declined"}, testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, failed.PaymentStatus)

	second, err := f.payments.InitiatePayment(ctx, f.user, b.ID, testMeta)
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderID, second.OrderID)
	assert.Equal(t, models.PaymentStatusPending, f.bookings.get(b.ID).PaymentStatus)

	_, err = f.payments.HandleCallback(ctx, f.user, PaymentCallback{
		OrderID:   second.OrderID,
		PaymentID: "pay_2",
		Signature: f.gateway.Signature(second.OrderID, "pay_2"),
	}, testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPaid, f.bookings.get(b.ID).Status)
}

func TestExtensionPayment(t *testing.T) {
	f := setupPaymentTest(t)
	ctx := context.Background()
	b := f.paidBooking(t)

	_, err := f.payments.InitiateExtensionPayment(ctx, f.user, b.ID, testMeta)
	assert.True(t, models.IsGuardError(err), "no approved extension")

	_, err = f.service.RequestExtension(ctx, f.user, b.ID, models.ExtensionRequest{NewEndDate: b.EndDate.Add(24 * time.Hour).Format(time.RFC3339)})
	require.NoError(t, err)
	_, err = f.service.ApproveExtension(ctx, f.host, b.ID)
	require.NoError(t, err)

	order, err := f.payments.InitiateExtensionPayment(ctx, f.user, b.ID, testMeta)
	require.NoError(t, err)
	assert.Equal(t, "extension_receipt_"+b.ID.String(), order.Receipt)
	assert.Equal(t, int64(480000), order.AmountPaise)

	_, err = f.payments.HandleFailure(ctx, f.user, PaymentFailure{OrderID: order.OrderID}, testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionPaymentPending, f.bookings.get(b.ID).ExtensionPaymentStatus)

	merged, err := f.payments.HandleCallback(ctx, f.user, PaymentCallback{
		OrderID:   order.OrderID,
		PaymentID: "pay_ext",
		Signature: f.gateway.Signature(order.OrderID, "pay_ext"),
	}, testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusExtended, merged.Status)
	assert.Contains(t, f.audits.events(), models.PaymentEventExtensionMerged)
}
