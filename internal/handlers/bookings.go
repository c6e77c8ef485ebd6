package handlers

import (
	"strconv"

	"github.com/bkurui/fleetrent-backend/internal/booking"
	"github.com/bkurui/fleetrent-backend/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func bookingID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid booking ID"})
		return 0, false
	}
	return uint(id), true
}

// GetBooking returns a booking with its price breakdown. Customers can only
// see their own bookings; staff can see any.
func GetBooking(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingID(c)
		if !ok {
			return
		}

		b, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			respondCoreError(c, err)
			return
		}

		if b.ClientID != c.GetUint("userId") && c.GetString("userType") != string(models.UserTypeStaff) {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		c.JSON(200, b)
	}
}

// GetClientBookings retrieves the authenticated customer's booking history.
func GetClientBookings(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookings, err := svc.ListForClient(c.Request.Context(), c.GetUint("userId"))
		if err != nil {
			respondCoreError(c, err)
			return
		}
		c.JSON(200, bookings)
	}
}

// GetAllBookings lists every booking for the staff dashboard, optionally
// filtered by ?status=.
func GetAllBookings(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookings, err := svc.ListByStatus(c.Request.Context(), models.BookingStatus(c.Query("status")))
		if err != nil {
			respondCoreError(c, err)
			return
		}
		c.JSON(200, bookings)
	}
}

// CancelBooking drives the administrative cancellation transition. Calling it
// on an already-cancelled booking is a no-op.
func CancelBooking(db *gorm.DB, svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingID(c)
		if !ok {
			return
		}

		b, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			respondCoreError(c, err)
			return
		}
		if b.ClientID != c.GetUint("userId") && c.GetString("userType") != string(models.UserTypeStaff) {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		wasPaid := b.HoldsUnit
		b, err = svc.Cancel(c.Request.Context(), id)
		if err != nil {
			respondCoreError(c, err)
			return
		}

		go notifyBookingUpdate(db, b, wasPaid)
		c.JSON(200, b)
	}
}

// StartRental records the pickup handover (staff): RESERVED → ACTIVE.
func StartRental(db *gorm.DB, svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingID(c)
		if !ok {
			return
		}

		b, err := svc.Start(c.Request.Context(), id)
		if err != nil {
			respondCoreError(c, err)
			return
		}

		go notifyBookingUpdate(db, b, false)
		c.JSON(200, b)
	}
}

// CompleteRental records the vehicle return (staff): ACTIVE → COMPLETED,
// releasing the unit back to the fleet.
func CompleteRental(db *gorm.DB, svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingID(c)
		if !ok {
			return
		}

		b, err := svc.Complete(c.Request.Context(), id)
		if err != nil {
			respondCoreError(c, err)
			return
		}

		go notifyBookingUpdate(db, b, false)
		c.JSON(200, b)
	}
}
