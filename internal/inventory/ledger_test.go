package inventory

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/bkurui/fleetrent-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Vehicle{}))
	return db
}

func seedVehicle(t *testing.T, db *gorm.DB, totalUnits int) uint {
	t.Helper()
	vehicle := models.Vehicle{
		Name:       "Pickup Truck",
		Category:   "truck",
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

func TestClaimStopsAtCapacity(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()
	vehicleID := seedVehicle(t, db, 2)

	require.NoError(t, ledger.Claim(ctx, vehicleID))
	require.NoError(t, ledger.Claim(ctx, vehicleID))
	assert.ErrorIs(t, ledger.Claim(ctx, vehicleID), ErrCapacityExceeded)
	assert.Equal(t, 2, reservedUnits(t, db, vehicleID))
}

func TestClaimUnknownVehicle(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db)

	assert.ErrorIs(t, ledger.Claim(context.Background(), 9999), ErrVehicleNotFound)
}

func TestReleaseFloorsAtZero(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()
	vehicleID := seedVehicle(t, db, 3)

	// Releasing with nothing reserved is a no-op, not an error
	require.NoError(t, ledger.Release(ctx, vehicleID))
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))

	require.NoError(t, ledger.Claim(ctx, vehicleID))
	require.NoError(t, ledger.Release(ctx, vehicleID))
	require.NoError(t, ledger.Release(ctx, vehicleID))
	assert.Equal(t, 0, reservedUnits(t, db, vehicleID))
}

func TestClaimReleaseBalance(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()
	vehicleID := seedVehicle(t, db, 3)

	// Any interleaving of claims and releases keeps the counter inside
	// [0, totalUnits]; successful claims minus releases is the balance.
	ops := []string{"claim", "claim", "release", "claim", "claim", "claim", "release", "release", "release", "release"}
	balance := 0
	for _, op := range ops {
		switch op {
		case "claim":
			if err := ledger.Claim(ctx, vehicleID); err == nil {
				balance++
			} else {
				require.ErrorIs(t, err, ErrCapacityExceeded)
			}
		case "release":
			require.NoError(t, ledger.Release(ctx, vehicleID))
			if balance > 0 {
				balance--
			}
		}
		got := reservedUnits(t, db, vehicleID)
		assert.Equal(t, balance, got)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, 3)
	}
}

func TestSnapshot(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()
	vehicleID := seedVehicle(t, db, 5)

	require.NoError(t, ledger.Claim(ctx, vehicleID))

	vehicle, err := ledger.Snapshot(ctx, vehicleID)
	require.NoError(t, err)
	assert.Equal(t, 5, vehicle.TotalUnits)
	assert.Equal(t, 1, vehicle.ReservedUnits)
	assert.Equal(t, 4, vehicle.AvailableUnits())

	_, err = ledger.Snapshot(ctx, 9999)
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}
