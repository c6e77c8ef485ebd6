package booking

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bkurui/fleetrent-backend/internal/inventory"
	"github.com/bkurui/fleetrent-backend/internal/models"
	"github.com/bkurui/fleetrent-backend/pkg/pricing"
	"github.com/bkurui/fleetrent-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "gateway_test_secret"

// fakeGateway hands out sequential order ids and verifies signatures with the
// same HMAC scheme the real gateway uses.
type fakeGateway struct {
	seq int64
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receipt string, notes map[string]interface{}) (string, error) {
	return fmt.Sprintf("order_%d", atomic.AddInt64(&g.seq, 1)), nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return utils.VerifyGatewaySignature(orderID, paymentID, signature, testSecret)
}

// noopLocker always grants the lock; single-process tests exercise the
// storage-layer guarantees directly.
type noopLocker struct{}

func (noopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}
func (noopLocker) Release(ctx context.Context, key string) error { return nil }

// deniedLocker simulates a concurrent holder on every acquire.
type deniedLocker struct{}

func (deniedLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, nil
}
func (deniedLocker) Release(ctx context.Context, key string) error { return nil }

var dbSeq int64

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:settlement%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Vehicle{},
		&models.Booking{},
		&models.PaymentAttempt{},
	))
	return NewService(db, &fakeGateway{}, noopLocker{}, "INR"), db
}

func seedVehicle(t *testing.T, db *gorm.DB, totalUnits int) uint {
	t.Helper()
	vehicle := models.Vehicle{
		Name:       "City Hatchback",
		Category:   "car",
		FarePerDay: 300,
		TotalUnits: totalUnits,
	}
	require.NoError(t, db.Create(&vehicle).Error)
	return vehicle.ID
}

func reservedUnits(t *testing.T, db *gorm.DB, vehicleID uint) int {
	t.Helper()
	var vehicle models.Vehicle
	require.NoError(t, db.First(&vehicle, vehicleID).Error)
	return vehicle.ReservedUnits
}

func sign(orderID, paymentID string) string {
	return utils.SignGatewayPayload(orderID, paymentID, testSecret)
}

var (
	pickup  = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	dropoff = pickup.Add(48 * time.Hour)
)

func createOrder(t *testing.T, svc *Service, vehicleID uint) *models.Booking {
	t.Helper()
	b, err := svc.CreateOrder(context.Background(), 1, vehicleID, pickup, dropoff, 0)
	require.NoError(t, err)
	return b
}

func confirm(t *testing.T, svc *Service, b *models.Booking, paymentID string) (*models.Booking, error) {
	t.Helper()
	return svc.ConfirmPayment(context.Background(), b.GatewayOrderID, paymentID, sign(b.GatewayOrderID, paymentID))
}

func TestCreateOrderSnapshotsServerPrice(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)

	b := createOrder(t, svc, vehicleID)

	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.False(t, b.HoldsUnit)
	assert.NotEmpty(t, b.GatewayOrderID)
	// 2 full days at 300: 600 + 108 tax + 10 handling
	assert.Equal(t, 2, b.Price.ChargedDays)
	assert.Equal(t, 718.0, b.Price.Total)

	// Order creation never claims inventory
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))
}

func TestCreateOrderInvalidWindow(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)

	_, err := svc.CreateOrder(context.Background(), 1, vehicleID, dropoff, pickup, 0)
	assert.ErrorIs(t, err, pricing.ErrInvalidWindow)

	var count int64
	require.NoError(t, db.Model(&models.Booking{}).Count(&count).Error)
	assert.Zero(t, count, "rejected orders must leave no booking behind")
}

func TestCreateOrderUnknownVehicle(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateOrder(context.Background(), 1, 9999, pickup, dropoff, 0)
	assert.ErrorIs(t, err, inventory.ErrVehicleNotFound)
}

func TestConfirmPaymentReservesAndClaims(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)
	b := createOrder(t, svc, vehicleID)

	out, err := confirm(t, svc, b, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusReserved, out.Status)
	assert.True(t, out.HoldsUnit)
	assert.Equal(t, "pay_1", out.GatewayPaymentID)
	assert.Equal(t, 1, reservedUnits(t, db, vehicleID))

	var attempt models.PaymentAttempt
	require.NoError(t, db.Where("gateway_payment_id = ?", "pay_1").First(&attempt).Error)
	assert.Equal(t, models.PaymentOutcomeVerified, attempt.Outcome)
	assert.Equal(t, out.ID, attempt.BookingID)
}

func TestConfirmPaymentIdempotentReplay(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 3)
	b := createOrder(t, svc, vehicleID)

	first, err := confirm(t, svc, b, "pay_replay")
	require.NoError(t, err)

	second, err := confirm(t, svc, b, "pay_replay")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Status, second.Status)
	// The unit was claimed exactly once, not twice
	assert.Equal(t, 1, reservedUnits(t, db, vehicleID))

	var attempts int64
	require.NoError(t, db.Model(&models.PaymentAttempt{}).Count(&attempts).Error)
	assert.Equal(t, int64(1), attempts)
}

func TestConfirmPaymentInvalidSignature(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)
	b := createOrder(t, svc, vehicleID)

	_, err := svc.ConfirmPayment(context.Background(), b.GatewayOrderID, "pay_x", "forged")
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	// Booking unpaid and untouched, nothing claimed, nothing recorded
	reloaded, err := svc.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, reloaded.Status)
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))

	var attempts int64
	require.NoError(t, db.Model(&models.PaymentAttempt{}).Count(&attempts).Error)
	assert.Zero(t, attempts)
}

func TestConfirmPaymentUnknownOrder(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ConfirmPayment(context.Background(), "order_none", "pay_1", sign("order_none", "pay_1"))
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestConfirmPaymentLockedRetries(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)
	b := createOrder(t, svc, vehicleID)

	locked := NewService(db, &fakeGateway{}, deniedLocker{}, "INR")
	_, err := locked.ConfirmPayment(context.Background(), b.GatewayOrderID, "pay_1", sign(b.GatewayOrderID, "pay_1"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))
}

func TestConfirmPaymentCapacityExceededCompensates(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)
	first := createOrder(t, svc, vehicleID)
	second := createOrder(t, svc, vehicleID)

	_, err := confirm(t, svc, first, "pay_a")
	require.NoError(t, err)

	out, err := confirm(t, svc, second, "pay_b")
	assert.ErrorIs(t, err, inventory.ErrCapacityExceeded)
	require.NotNil(t, out)
	assert.Equal(t, models.BookingStatusCancelled, out.Status)
	assert.Equal(t, models.CancelReasonCapacityExceeded, out.CancelReason)
	assert.False(t, out.HoldsUnit)
	// The payment was real: it is recorded so the replay stays idempotent
	// and the caller can drive the refund.
	var attempt models.PaymentAttempt
	require.NoError(t, db.Where("gateway_payment_id = ?", "pay_b").First(&attempt).Error)
	assert.Equal(t, models.PaymentOutcomeVerified, attempt.Outcome)

	assert.Equal(t, 1, reservedUnits(t, db, vehicleID))
}

func TestNoOverbooking(t *testing.T) {
	svc, db := newTestService(t)
	const capacity = 2
	const orders = 5
	vehicleID := seedVehicle(t, db, capacity)

	reserved, cancelled := 0, 0
	for i := 0; i < orders; i++ {
		b := createOrder(t, svc, vehicleID)
		out, err := confirm(t, svc, b, fmt.Sprintf("pay_over_%d", i))
		switch {
		case err == nil:
			assert.Equal(t, models.BookingStatusReserved, out.Status)
			reserved++
		default:
			require.ErrorIs(t, err, inventory.ErrCapacityExceeded)
			assert.Equal(t, models.BookingStatusCancelled, out.Status)
			cancelled++
		}
	}

	assert.Equal(t, capacity, reserved)
	assert.Equal(t, orders-capacity, cancelled)
	assert.Equal(t, capacity, reservedUnits(t, db, vehicleID))
}

func TestCancelReleasesExactlyOnce(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)
	b := createOrder(t, svc, vehicleID)
	_, err := confirm(t, svc, b, "pay_1")
	require.NoError(t, err)
	require.Equal(t, 1, reservedUnits(t, db, vehicleID))

	out, err := svc.Cancel(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, out.Status)
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))

	// Second cancel is a no-op and must not release again
	out, err = svc.Cancel(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, out.Status)
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))
}

func TestCancelPendingHasNoLedgerEffect(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)
	b := createOrder(t, svc, vehicleID)

	out, err := svc.Cancel(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, out.Status)
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))
}

func TestCancelCompletedRefused(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)
	b := createOrder(t, svc, vehicleID)
	_, err := confirm(t, svc, b, "pay_1")
	require.NoError(t, err)
	_, err = svc.Start(context.Background(), b.ID)
	require.NoError(t, err)
	_, err = svc.Complete(context.Background(), b.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))
}

func TestRentalLifecycle(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)
	b := createOrder(t, svc, vehicleID)
	_, err := confirm(t, svc, b, "pay_1")
	require.NoError(t, err)

	// Handover keeps the unit held
	out, err := svc.Start(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusActive, out.Status)
	assert.True(t, out.HoldsUnit)
	assert.Equal(t, 1, reservedUnits(t, db, vehicleID))

	// Return releases it
	out, err = svc.Complete(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, out.Status)
	assert.False(t, out.HoldsUnit)
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))

	// Completing twice is refused and does not release again
	_, err = svc.Complete(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))
}

func TestStartRequiresReserved(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)
	b := createOrder(t, svc, vehicleID)

	_, err := svc.Start(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestExpireIsNoopAfterPayment(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)
	b := createOrder(t, svc, vehicleID)
	_, err := confirm(t, svc, b, "pay_1")
	require.NoError(t, err)

	out, err := svc.Expire(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusReserved, out.Status)
	assert.Equal(t, 1, reservedUnits(t, db, vehicleID))
}

func TestExpireCancelsPending(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)
	b := createOrder(t, svc, vehicleID)

	out, err := svc.Expire(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, out.Status)
	assert.Equal(t, models.CancelReasonExpired, out.CancelReason)
}

func TestConfirmAfterExpiryRecordsRejection(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 1)
	b := createOrder(t, svc, vehicleID)

	_, err := svc.Expire(context.Background(), b.ID)
	require.NoError(t, err)

	out, err := confirm(t, svc, b, "pay_late")
	assert.ErrorIs(t, err, ErrOrderExpired)
	require.NotNil(t, out)
	assert.Equal(t, models.BookingStatusCancelled, out.Status)
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))

	var attempt models.PaymentAttempt
	require.NoError(t, db.Where("gateway_payment_id = ?", "pay_late").First(&attempt).Error)
	assert.Equal(t, models.PaymentOutcomeRejected, attempt.Outcome)

	// Replaying the late payment yields the same rejection, once
	_, err = confirm(t, svc, b, "pay_late")
	assert.ErrorIs(t, err, ErrOrderExpired)
	var attempts int64
	require.NoError(t, db.Model(&models.PaymentAttempt{}).Count(&attempts).Error)
	assert.Equal(t, int64(1), attempts)
}

func TestExpireStaleSweepsOldCheckouts(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 2)
	stale := createOrder(t, svc, vehicleID)
	fresh := createOrder(t, svc, vehicleID)

	// Backdate the stale checkout past the window
	require.NoError(t, db.Model(&models.Booking{}).
		Where("id = ?", stale.ID).
		UpdateColumn("created_at", time.Now().Add(-CheckoutWindow-time.Minute)).Error)

	n, err := svc.ExpireStale(context.Background(), CheckoutWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out, err := svc.Get(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, out.Status)

	out, err = svc.Get(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, out.Status)
}

func TestQuoteIsSideEffectFree(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 2)

	quote, available, err := svc.Quote(context.Background(), vehicleID, pickup, dropoff, 0)
	require.NoError(t, err)
	assert.Equal(t, 718.0, quote.Total)
	assert.Equal(t, 2, available)
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))

	var count int64
	require.NoError(t, db.Model(&models.Booking{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListByStatus(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 3)

	b := createOrder(t, svc, vehicleID)
	_, err := confirm(t, svc, b, "pay_list")
	require.NoError(t, err)
	createOrder(t, svc, vehicleID)

	all, err := svc.ListByStatus(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	reserved, err := svc.ListByStatus(context.Background(), models.BookingStatusReserved)
	require.NoError(t, err)
	require.Len(t, reserved, 1)
	assert.Equal(t, b.ID, reserved[0].ID)
}

func TestListForClient(t *testing.T) {
	svc, db := newTestService(t)
	vehicleID := seedVehicle(t, db, 3)

	mine := createOrder(t, svc, vehicleID)
	other, err := svc.CreateOrder(context.Background(), 2, vehicleID, pickup, dropoff, 0)
	require.NoError(t, err)

	bookings, err := svc.ListForClient(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, mine.ID, bookings[0].ID)
	assert.NotEqual(t, other.ID, bookings[0].ID)
}
