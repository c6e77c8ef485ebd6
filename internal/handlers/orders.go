package handlers

import (
	"errors"
	"time"

	"github.com/bkurui/fleetrent-backend/internal/booking"
	"github.com/bkurui/fleetrent-backend/internal/inventory"
	"github.com/bkurui/fleetrent-backend/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type QuoteInput struct {
	VehicleID      uint      `json:"vehicleId" binding:"required"`
	PickupAt       time.Time `json:"pickupAt" binding:"required"`
	DropoffAt      time.Time `json:"dropoffAt" binding:"required"`
	AccessoryCount int       `json:"accessoryCount" binding:"gte=0"`
}

// Quote prices a rental window without side effects. The response is
// advisory: the authoritative price is recomputed at order creation.
func Quote(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input QuoteInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		quote, available, err := svc.Quote(c.Request.Context(), input.VehicleID, input.PickupAt, input.DropoffAt, input.AccessoryCount)
		if err != nil {
			respondCoreError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"quote":          quote,
			"availableUnits": available,
		})
	}
}

// CreateOrder opens a checkout: server-side price, gateway order, PENDING
// booking. No unit is claimed until payment is verified.
func CreateOrder(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input QuoteInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		b, err := svc.CreateOrder(c.Request.Context(), userId, input.VehicleID, input.PickupAt, input.DropoffAt, input.AccessoryCount)
		if err != nil {
			respondCoreError(c, err)
			return
		}

		c.JSON(201, gin.H{
			"orderId": b.GatewayOrderID,
			"booking": b,
		})
	}
}

type ConfirmPaymentInput struct {
	PaymentID string `json:"paymentId" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// ConfirmPayment settles the gateway callback for an order. Idempotent per
// payment id: replays return the already-settled booking.
func ConfirmPayment(db *gorm.DB, svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("orderId")

		var input ConfirmPaymentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		b, err := svc.ConfirmPayment(c.Request.Context(), orderID, input.PaymentID, input.Signature)
		if err != nil {
			// Capacity loss after a successful payment still settled the
			// booking (as CANCELLED): notify with the refund obligation.
			if b != nil && errors.Is(err, inventory.ErrCapacityExceeded) {
				go notifyBookingUpdate(db, b, true)
			}
			respondCoreError(c, err)
			return
		}

		if b.Status == models.BookingStatusReserved {
			go notifyBookingUpdate(db, b, false)
		}

		c.JSON(200, b)
	}
}
