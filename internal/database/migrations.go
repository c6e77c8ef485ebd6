package database

import (
	"github.com/bkurui/fleetrent-backend/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.Vehicle{},
		&models.Booking{},
		&models.PaymentAttempt{},
	)
	if err != nil {
		return err
	}

	if db.Migrator().HasTable(&models.User{}) {
		db.Exec(`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_user_type_check`)
		db.Exec(`ALTER TABLE users ADD CONSTRAINT users_user_type_check CHECK (user_type IN ('customer', 'staff'))`)
	}

	// Counter sanity: the ledger's conditional updates keep these invariants
	// at runtime, the check constraints keep bad rows from ever sneaking in
	// through manual edits.
	if db.Migrator().HasTable(&models.Vehicle{}) {
		db.Exec(`ALTER TABLE vehicles DROP CONSTRAINT IF EXISTS vehicles_reserved_units_check`)
		db.Exec(`ALTER TABLE vehicles ADD CONSTRAINT vehicles_reserved_units_check CHECK (reserved_units >= 0 AND reserved_units <= total_units)`)
	}

	return nil
}
