package inventory

import (
	"context"
	"errors"

	"github.com/bkurui/fleetrent-backend/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrCapacityExceeded means every unit of the vehicle is already reserved.
	ErrCapacityExceeded = errors.New("no units available for vehicle")
	// ErrVehicleNotFound means the vehicle id does not exist.
	ErrVehicleNotFound = errors.New("vehicle not found")
)

// Ledger owns the reserved-unit counter of each vehicle. Both operations are
// single conditional UPDATEs so the capacity check and the increment are one
// indivisible statement at the storage layer; concurrent claims against the
// same vehicle serialize on the row and can never push reserved_units past
// total_units or below zero. A read-then-write sequence is exactly the race
// this type exists to rule out.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx returns a Ledger bound to an open transaction so a claim or release
// commits or rolls back together with the booking-state change that caused it.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx}
}

// Claim reserves one unit of the vehicle. It returns ErrCapacityExceeded when
// the fleet is fully reserved and ErrVehicleNotFound for an unknown id.
func (l *Ledger) Claim(ctx context.Context, vehicleID uint) error {
	res := l.db.WithContext(ctx).
		Model(&models.Vehicle{}).
		Where("id = ? AND reserved_units < total_units", vehicleID).
		UpdateColumn("reserved_units", gorm.Expr("reserved_units + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := l.db.WithContext(ctx).
			Model(&models.Vehicle{}).
			Where("id = ?", vehicleID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrVehicleNotFound
		}
		return ErrCapacityExceeded
	}
	return nil
}

// Release returns one unit of the vehicle to the pool. Releasing when nothing
// is reserved is a no-op rather than an error, so duplicate release signals
// (webhook redeliveries, retried cancellations) are harmless.
func (l *Ledger) Release(ctx context.Context, vehicleID uint) error {
	return l.db.WithContext(ctx).
		Model(&models.Vehicle{}).
		Where("id = ? AND reserved_units > 0", vehicleID).
		UpdateColumn("reserved_units", gorm.Expr("reserved_units - 1")).Error
}

// Snapshot reads the current counters for a vehicle.
func (l *Ledger) Snapshot(ctx context.Context, vehicleID uint) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := l.db.WithContext(ctx).First(&vehicle, vehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}
