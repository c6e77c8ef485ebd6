package booking

import "github.com/bkurui/fleetrent-backend/internal/models"

// Legal lifecycle transitions. COMPLETED and CANCELLED are terminal.
var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingStatusPending:  {models.BookingStatusReserved, models.BookingStatusCancelled},
	models.BookingStatusReserved: {models.BookingStatusActive, models.BookingStatusCancelled},
	models.BookingStatusActive:   {models.BookingStatusCompleted, models.BookingStatusCancelled},
}

// CanTransition reports whether from → to is a legal lifecycle change.
func CanTransition(from, to models.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HoldsUnit reports whether a booking in the given state holds a claimed
// unit against the vehicle's inventory.
func HoldsUnit(status models.BookingStatus) bool {
	return status == models.BookingStatusReserved || status == models.BookingStatusActive
}
