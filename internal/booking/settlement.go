package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bkurui/fleetrent-backend/internal/inventory"
	"github.com/bkurui/fleetrent-backend/internal/models"
	"github.com/bkurui/fleetrent-backend/pkg/pricing"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentGateway is the external gateway the coordinator settles against.
// CreateOrder registers a charge for the given amount and returns the gateway
// order id; VerifySignature checks the proof delivered by the payment callback
// using a constant-time comparison.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receipt string, notes map[string]interface{}) (string, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// Locker provides mutual exclusion per key across service replicas. Webhook
// redeliveries for the same payment id must serialize here.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

const (
	settleLockTTL = 30 * time.Second
	// CheckoutWindow is how long an unpaid order survives before the reaper
	// expires it.
	CheckoutWindow = 30 * time.Minute
)

// Service is the settlement coordinator. It owns every mutation of a
// booking's lifecycle and is the only caller of the inventory ledger.
type Service struct {
	db       *gorm.DB
	ledger   *inventory.Ledger
	gateway  PaymentGateway
	locker   Locker
	currency string
}

func NewService(db *gorm.DB, gateway PaymentGateway, locker Locker, currency string) *Service {
	if currency == "" {
		currency = "INR"
	}
	return &Service{
		db:       db,
		ledger:   inventory.NewLedger(db),
		gateway:  gateway,
		locker:   locker,
		currency: currency,
	}
}

// Quote prices a window against the vehicle's current fare without side
// effects. The returned available-unit count is advisory; nothing is held.
func (s *Service) Quote(ctx context.Context, vehicleID uint, pickupAt, dropoffAt time.Time, accessoryCount int) (pricing.Quote, int, error) {
	vehicle, err := s.ledger.Snapshot(ctx, vehicleID)
	if err != nil {
		return pricing.Quote{}, 0, err
	}
	quote, err := pricing.Calculate(vehicle.FarePerDay, pickupAt, dropoffAt, accessoryCount)
	if err != nil {
		return pricing.Quote{}, 0, err
	}
	return quote, vehicle.AvailableUnits(), nil
}

// CreateOrder recomputes the price server side, registers a gateway order for
// it and creates a PENDING booking carrying the immutable price snapshot.
// No inventory is claimed yet: a unit is only held once payment is verified,
// so an abandoned checkout never keeps a vehicle hostage.
func (s *Service) CreateOrder(ctx context.Context, clientID, vehicleID uint, pickupAt, dropoffAt time.Time, accessoryCount int) (*models.Booking, error) {
	vehicle, err := s.ledger.Snapshot(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	quote, err := pricing.Calculate(vehicle.FarePerDay, pickupAt, dropoffAt, accessoryCount)
	if err != nil {
		return nil, err
	}

	receipt := uuid.NewString()
	orderID, err := s.gateway.CreateOrder(ctx, quote.TotalMinorUnits(), s.currency, receipt, map[string]interface{}{
		"vehicleId": fmt.Sprintf("%d", vehicleID),
		"clientId":  fmt.Sprintf("%d", clientID),
	})
	if err != nil {
		return nil, fmt.Errorf("gateway order creation failed: %w", err)
	}

	b := models.Booking{
		ClientID:       clientID,
		VehicleID:      vehicleID,
		PickupAt:       pickupAt,
		DropoffAt:      dropoffAt,
		AccessoryCount: accessoryCount,
		Status:         models.BookingStatusPending,
		Price:          quote,
		GatewayOrderID: orderID,
	}
	if err := s.db.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// ConfirmPayment settles a gateway callback. Verification failures leave the
// booking PENDING. A payment id that was already settled returns the prior
// result unchanged: no second transition, no second claim. On a verified
// first delivery the booking moves PENDING → RESERVED and one unit is claimed,
// both in one transaction. If the fleet filled up between checkout and
// payment, the booking is cancelled instead and ErrCapacityExceeded is
// returned alongside it; the caller owes the customer a refund.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, paymentID, signature string) (*models.Booking, error) {
	if !s.gateway.VerifySignature(orderID, paymentID, signature) {
		log.Printf("settlement: invalid signature for order %s payment %s (possible tamper attempt)", orderID, paymentID)
		return nil, ErrSignatureInvalid
	}

	var b models.Booking
	if err := s.db.WithContext(ctx).Where("gateway_order_id = ?", orderID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	// Serialize concurrent redeliveries of the same payment across replicas.
	lockKey := "settle:payment:" + paymentID
	ok, err := s.locker.Acquire(ctx, lockKey, settleLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	defer func() {
		if err := s.locker.Release(context.Background(), lockKey); err != nil {
			log.Printf("settlement: failed to release lock %s: %v", lockKey, err)
		}
	}()

	var settleErr error
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Idempotency ledger first: a replay returns the recorded outcome.
		var prior models.PaymentAttempt
		err := tx.Where("gateway_payment_id = ?", paymentID).First(&prior).Error
		if err == nil {
			if err := tx.First(&b, prior.BookingID).Error; err != nil {
				return err
			}
			if prior.Outcome == models.PaymentOutcomeRejected {
				settleErr = ErrOrderExpired
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// Claim the PENDING → RESERVED transition with a conditional update;
		// losing it means the reaper or an admin got there first.
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", b.ID, models.BookingStatusPending).
			Updates(map[string]interface{}{
				"status":             models.BookingStatusReserved,
				"holds_unit":         true,
				"gateway_payment_id": paymentID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.First(&b, b.ID).Error; err != nil {
				return err
			}
			if err := tx.Create(&models.PaymentAttempt{
				GatewayOrderID:   orderID,
				GatewayPaymentID: paymentID,
				BookingID:        b.ID,
				Outcome:          models.PaymentOutcomeRejected,
				VerifiedAt:       time.Now().UTC(),
			}).Error; err != nil {
				return err
			}
			settleErr = ErrOrderExpired
			return nil
		}

		claimErr := s.ledger.WithTx(tx).Claim(ctx, b.VehicleID)
		switch {
		case claimErr == nil:
			b.Status = models.BookingStatusReserved
			b.HoldsUnit = true
			b.GatewayPaymentID = paymentID
		case errors.Is(claimErr, inventory.ErrCapacityExceeded), errors.Is(claimErr, inventory.ErrVehicleNotFound):
			// Payment succeeded but no unit is left: compensate by cancelling
			// in the same transaction. The caller must refund.
			if err := tx.Model(&models.Booking{}).
				Where("id = ?", b.ID).
				Updates(map[string]interface{}{
					"status":        models.BookingStatusCancelled,
					"holds_unit":    false,
					"cancel_reason": models.CancelReasonCapacityExceeded,
				}).Error; err != nil {
				return err
			}
			b.Status = models.BookingStatusCancelled
			b.HoldsUnit = false
			b.CancelReason = models.CancelReasonCapacityExceeded
			b.GatewayPaymentID = paymentID
			settleErr = inventory.ErrCapacityExceeded
		default:
			return claimErr
		}

		return tx.Create(&models.PaymentAttempt{
			GatewayOrderID:   orderID,
			GatewayPaymentID: paymentID,
			BookingID:        b.ID,
			Outcome:          models.PaymentOutcomeVerified,
			VerifiedAt:       time.Now().UTC(),
		}).Error
	})
	if txErr != nil {
		return nil, txErr
	}
	return &b, settleErr
}

// Cancel drives the administrative cancellation transition. Cancelling a
// RESERVED or ACTIVE booking releases its unit exactly once; re-cancelling an
// already CANCELLED booking is a no-op. COMPLETED bookings cannot be
// cancelled.
func (s *Service) Cancel(ctx context.Context, bookingID uint) (*models.Booking, error) {
	return s.cancel(ctx, bookingID, models.CancelReasonAdministrative, false)
}

// Expire is the reaper-safe variant of Cancel: it only acts on a PENDING
// booking and is a no-op if payment already settled in the interim.
func (s *Service) Expire(ctx context.Context, bookingID uint) (*models.Booking, error) {
	return s.cancel(ctx, bookingID, models.CancelReasonExpired, true)
}

func (s *Service) cancel(ctx context.Context, bookingID uint, reason string, pendingOnly bool) (*models.Booking, error) {
	var b models.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}

		cancelUpdates := map[string]interface{}{
			"status":        models.BookingStatusCancelled,
			"holds_unit":    false,
			"cancel_reason": reason,
		}

		if !pendingOnly {
			// Winning this conditional update is what makes the release
			// exactly-once: only one cancellation can move the booking out of
			// a unit-holding state.
			res := tx.Model(&models.Booking{}).
				Where("id = ? AND status IN ?", bookingID,
					[]models.BookingStatus{models.BookingStatusReserved, models.BookingStatusActive}).
				Updates(cancelUpdates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				if err := s.ledger.WithTx(tx).Release(ctx, b.VehicleID); err != nil {
					return err
				}
				b.Status = models.BookingStatusCancelled
				b.HoldsUnit = false
				b.CancelReason = reason
				return nil
			}
		}

		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", bookingID, models.BookingStatusPending).
			Updates(cancelUpdates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			b.Status = models.BookingStatusCancelled
			b.HoldsUnit = false
			b.CancelReason = reason
			return nil
		}

		// Lost every conditional update: the booking is already settled or
		// terminal. Reload and decide.
		if err := tx.First(&b, bookingID).Error; err != nil {
			return err
		}
		if b.Status == models.BookingStatusCancelled {
			return nil // idempotent no-op
		}
		if pendingOnly {
			return nil // payment won the race; expiry backs off
		}
		return ErrInvalidTransition
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Start marks the pickup handover: RESERVED → ACTIVE. The unit stays held.
func (s *Service) Start(ctx context.Context, bookingID uint) (*models.Booking, error) {
	return s.advance(ctx, bookingID, models.BookingStatusReserved, models.BookingStatusActive)
}

// Complete marks the return: ACTIVE → COMPLETED and releases the unit.
func (s *Service) Complete(ctx context.Context, bookingID uint) (*models.Booking, error) {
	return s.advance(ctx, bookingID, models.BookingStatusActive, models.BookingStatusCompleted)
}

func (s *Service) advance(ctx context.Context, bookingID uint, from, to models.BookingStatus) (*models.Booking, error) {
	if !CanTransition(from, to) {
		return nil, ErrInvalidTransition
	}
	var b models.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", bookingID, from).
			Updates(map[string]interface{}{
				"status":     to,
				"holds_unit": HoldsUnit(to),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		b.Status = to
		b.HoldsUnit = HoldsUnit(to)
		if !HoldsUnit(to) {
			return s.ledger.WithTx(tx).Release(ctx, b.VehicleID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Get loads a booking by id.
func (s *Service) Get(ctx context.Context, bookingID uint) (*models.Booking, error) {
	var b models.Booking
	if err := s.db.WithContext(ctx).First(&b, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// ListForClient returns a customer's booking history, newest first.
func (s *Service) ListForClient(ctx context.Context, clientID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&bookings).Error
	return bookings, err
}

// ListByStatus returns all bookings, optionally filtered by status, newest
// first. Staff dashboard view.
func (s *Service) ListByStatus(ctx context.Context, status models.BookingStatus) ([]models.Booking, error) {
	var bookings []models.Booking
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Find(&bookings).Error
	return bookings, err
}

// ExpireStale sweeps PENDING bookings whose checkout window has elapsed
// through the Expire path. Returns how many were expired.
func (s *Service) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	var stale []models.Booking
	if err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.BookingStatusPending, cutoff).
		Find(&stale).Error; err != nil {
		return 0, err
	}

	expired := 0
	for _, b := range stale {
		out, err := s.Expire(ctx, b.ID)
		if err != nil {
			log.Printf("settlement: failed to expire booking %d: %v", b.ID, err)
			continue
		}
		if out.Status == models.BookingStatusCancelled && out.CancelReason == models.CancelReasonExpired {
			expired++
		}
	}
	return expired, nil
}

// RunExpiry runs the checkout reaper until the context is cancelled.
func (s *Service) RunExpiry(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.ExpireStale(ctx, CheckoutWindow); err != nil {
				log.Printf("settlement: expiry sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("settlement: expired %d stale checkout(s)", n)
			}
		}
	}
}
