package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/shopspring/decimal"
)

// passthroughTx runs fn directly. Stores below hand out copies, so a failed
// transition leaves stored state untouched.
type passthroughTx struct {
	calls int
}

func (t *passthroughTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type memBookings struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]models.Booking
	updates  int
}

func newMemBookings() *memBookings {
	return &memBookings{bookings: make(map[uuid.UUID]models.Booking)}
}

func (m *memBookings) put(b *models.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = *b
}

func (m *memBookings) get(id uuid.UUID) *models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil
	}
	return &b
}

func (m *memBookings) Create(ctx context.Context, b *models.Booking, pricePerHour decimal.Decimal) error {
	b.RecomputeTotalPrice(pricePerHour)
	if !b.HasValidStatusCombination() {
		return models.ErrInvalidStateCombination
	}
	if b.BookingReference == "" {
		b.BookingReference = "CR-20260310-" + b.ID.String()[:6]
	}
	m.put(b)
	return nil
}

func (m *memBookings) Update(ctx context.Context, b *models.Booking, pricePerHour decimal.Decimal) error {
	b.RecomputeTotalPrice(pricePerHour)
	if !b.HasValidStatusCombination() {
		return models.ErrInvalidStateCombination
	}
	if m.get(b.ID) == nil {
		return models.ErrBookingNotFound
	}
	m.mu.Lock()
	m.updates++
	m.mu.Unlock()
	m.put(b)
	return nil
}

func (m *memBookings) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b := m.get(id)
	if b == nil {
		return nil, models.ErrBookingNotFound
	}
	return b, nil
}

func (m *memBookings) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return m.GetByID(ctx, id)
}

func (m *memBookings) GetByPaymentOrderForUpdate(ctx context.Context, orderID string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if (b.PaymentOrderID != nil && *b.PaymentOrderID == orderID) ||
			(b.ExtensionPaymentOrderID != nil && *b.ExtensionPaymentOrderID == orderID) {
			found := b
			return &found, nil
		}
	}
	return nil, models.ErrBookingNotFound
}

func (m *memBookings) CountOverlapping(ctx context.Context, carID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, b := range m.bookings {
		if b.CarID != carID || !b.HoldsCalendar() {
			continue
		}
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		if b.Overlaps(start, end) {
			count++
		}
	}
	return count, nil
}

func (m *memBookings) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			found := b
			out = append(out, &found)
		}
	}
	return out, nil
}

func (m *memBookings) ListByHost(ctx context.Context, hostID uuid.UUID, limit, offset int) ([]*models.Booking, error) {
	return nil, nil
}

type memCars struct {
	cars map[uuid.UUID]models.Car
}

func (m *memCars) GetByID(ctx context.Context, id uuid.UUID) (*models.Car, error) {
	c, ok := m.cars[id]
	if !ok {
		return nil, models.ErrCarNotFound
	}
	return &c, nil
}

func (m *memCars) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Car, error) {
	return m.GetByID(ctx, id)
}

type ledgerEntry struct {
	kind   string
	userID uuid.UUID
	amount decimal.Decimal
}

// recordingLedger captures the wallet entries a transition asks for
type recordingLedger struct {
	entries []ledgerEntry
	failOn  string
}

func (l *recordingLedger) record(kind string, userID uuid.UUID, amount decimal.Decimal) (*models.WalletTransaction, error) {
	if kind == l.failOn {
		return nil, models.ErrAccountNotFound
	}
	l.entries = append(l.entries, ledgerEntry{kind: kind, userID: userID, amount: amount})
	return &models.WalletTransaction{ID: uuid.New(), UserID: userID, Amount: amount}, nil
}

func (l *recordingLedger) RecordHostEarning(ctx context.Context, hostUserID uuid.UUID, b *models.Booking, amount decimal.Decimal) (*models.WalletTransaction, error) {
	return l.record("earning", hostUserID, amount)
}

func (l *recordingLedger) RecordExtensionEarning(ctx context.Context, hostUserID uuid.UUID, b *models.Booking, amount decimal.Decimal) (*models.WalletTransaction, error) {
	return l.record("extension_earning", hostUserID, amount)
}

func (l *recordingLedger) RecordEarningReversal(ctx context.Context, hostUserID uuid.UUID, b *models.Booking) (*models.WalletTransaction, error) {
	return l.record("reversal", hostUserID, b.TotalPrice)
}

func (l *recordingLedger) RecordCancellationFee(ctx context.Context, hostUserID uuid.UUID, b *models.Booking) (*models.WalletTransaction, error) {
	return l.record("cancellation_fee", hostUserID, b.CancellationFee)
}

func (l *recordingLedger) RecordRefund(ctx context.Context, userID uuid.UUID, b *models.Booking) (*models.WalletTransaction, error) {
	return l.record("refund", userID, b.RefundAmount)
}

type sentNotice struct {
	userID  uuid.UUID
	admins  bool
	message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (n *recordingNotifier) Notify(ctx context.Context, userID uuid.UUID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{userID: userID, message: message})
}

func (n *recordingNotifier) NotifyAdmins(ctx context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{admins: true, message: message})
}

func (n *recordingNotifier) to(userID uuid.UUID) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		if !s.admins && s.userID == userID {
			out = append(out, s.message)
		}
	}
	return out
}

type memFeedback struct {
	rated    map[uuid.UUID]bool
	reviewed map[uuid.UUID]bool
	ratings  []*models.HostRating
	feedback []*models.HostFeedback
}

func newMemFeedback() *memFeedback {
	return &memFeedback{rated: map[uuid.UUID]bool{}, reviewed: map[uuid.UUID]bool{}}
}

func (m *memFeedback) HasRating(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	return m.rated[bookingID], nil
}

func (m *memFeedback) HasFeedback(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	return m.reviewed[bookingID], nil
}

func (m *memFeedback) CreateRating(ctx context.Context, rating *models.HostRating) error {
	m.rated[rating.BookingID] = true
	m.ratings = append(m.ratings, rating)
	return nil
}

func (m *memFeedback) CreateFeedback(ctx context.Context, fb *models.HostFeedback) error {
	m.reviewed[fb.BookingID] = true
	m.feedback = append(m.feedback, fb)
	return nil
}

func (m *memFeedback) AverageRating(ctx context.Context, hostID uuid.UUID) (float64, int, error) {
	total, count := 0, 0
	for _, r := range m.ratings {
		if r.HostID == hostID {
			total += r.Rating
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(total) / float64(count), count, nil
}

// movableClock lets a test advance time between transitions
type movableClock struct {
	now time.Time
}

func (c *movableClock) Now() time.Time {
	return c.now
}
