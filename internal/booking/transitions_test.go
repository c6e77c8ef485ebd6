package booking

import (
	"testing"

	"github.com/bkurui/fleetrent-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to models.BookingStatus }{
		{models.BookingStatusPending, models.BookingStatusReserved},
		{models.BookingStatusPending, models.BookingStatusCancelled},
		{models.BookingStatusReserved, models.BookingStatusActive},
		{models.BookingStatusReserved, models.BookingStatusCancelled},
		{models.BookingStatusActive, models.BookingStatusCompleted},
		{models.BookingStatusActive, models.BookingStatusCancelled},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct{ from, to models.BookingStatus }{
		{models.BookingStatusPending, models.BookingStatusActive},
		{models.BookingStatusPending, models.BookingStatusCompleted},
		{models.BookingStatusReserved, models.BookingStatusCompleted},
		{models.BookingStatusActive, models.BookingStatusReserved},
		{models.BookingStatusCompleted, models.BookingStatusCancelled},
		{models.BookingStatusCancelled, models.BookingStatusPending},
		{models.BookingStatusCancelled, models.BookingStatusReserved},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []models.BookingStatus{
		models.BookingStatusPending,
		models.BookingStatusReserved,
		models.BookingStatusActive,
		models.BookingStatusCompleted,
		models.BookingStatusCancelled,
	}
	for _, to := range all {
		assert.False(t, CanTransition(models.BookingStatusCompleted, to))
		assert.False(t, CanTransition(models.BookingStatusCancelled, to))
	}
}

func TestHoldsUnit(t *testing.T) {
	assert.False(t, HoldsUnit(models.BookingStatusPending))
	assert.True(t, HoldsUnit(models.BookingStatusReserved))
	assert.True(t, HoldsUnit(models.BookingStatusActive))
	assert.False(t, HoldsUnit(models.BookingStatusCompleted))
	assert.False(t, HoldsUnit(models.BookingStatusCancelled))
}
