package handlers

import (
	"errors"
	"log"

	"github.com/bkurui/fleetrent-backend/internal/booking"
	"github.com/bkurui/fleetrent-backend/internal/inventory"
	"github.com/bkurui/fleetrent-backend/pkg/pricing"
	"github.com/gin-gonic/gin"
)

// respondCoreError maps settlement failures onto HTTP statuses. Everything
// the core returns is one of the known kinds; anything else is logged with
// context and surfaced opaquely.
func respondCoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pricing.ErrInvalidWindow):
		c.JSON(400, gin.H{"error": err.Error()})
	case errors.Is(err, inventory.ErrVehicleNotFound),
		errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, booking.ErrOrderNotFound):
		c.JSON(404, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrSignatureInvalid):
		c.JSON(401, gin.H{"error": err.Error()})
	case errors.Is(err, inventory.ErrCapacityExceeded):
		c.JSON(409, gin.H{"error": "no units available", "refundDue": true})
	case errors.Is(err, booking.ErrOrderExpired):
		c.JSON(409, gin.H{"error": err.Error(), "refundDue": true})
	case errors.Is(err, booking.ErrInvalidTransition):
		c.JSON(409, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrConflict):
		c.JSON(409, gin.H{"error": err.Error(), "retry": true})
	default:
		log.Printf("handlers: internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(500, gin.H{"error": "Internal server error"})
	}
}
