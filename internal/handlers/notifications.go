package handlers

import (
	"context"
	"log"

	"github.com/bkurui/fleetrent-backend/internal/models"
	"github.com/bkurui/fleetrent-backend/internal/services"
	"github.com/bkurui/fleetrent-backend/pkg/utils"
	"gorm.io/gorm"
)

// notifyBookingUpdate fans a committed booking transition out to the
// notification collaborators: email to the customer and a Redis publish that
// feeds every replica's websocket hub. Strictly best-effort and invoked only
// after the core transition has durably committed. Failures are logged and
// never roll anything back.
func notifyBookingUpdate(db *gorm.DB, b *models.Booking, refundDue bool) {
	ctx := context.Background()

	if err := services.PublishBookingUpdate(ctx, b.ID, b.ClientID, b.VehicleID, string(b.Status)); err != nil {
		log.Printf("notify: failed to publish booking %d update: %v", b.ID, err)
	}

	var user models.User
	if err := db.First(&user, b.ClientID).Error; err != nil {
		log.Printf("notify: failed to load client %d for booking %d: %v", b.ClientID, b.ID, err)
		return
	}

	switch b.Status {
	case models.BookingStatusReserved:
		var vehicle models.Vehicle
		if err := db.First(&vehicle, b.VehicleID).Error; err != nil {
			log.Printf("notify: failed to load vehicle %d for booking %d: %v", b.VehicleID, b.ID, err)
			return
		}
		if err := utils.SendBookingReservedEmail(user.Email, vehicle.Name, b.PickupAt, b.DropoffAt, b.Price.Total); err != nil {
			log.Printf("notify: failed to email reservation for booking %d: %v", b.ID, err)
		}
	case models.BookingStatusCancelled:
		if err := utils.SendBookingCancelledEmail(user.Email, refundDue); err != nil {
			log.Printf("notify: failed to email cancellation for booking %d: %v", b.ID, err)
		}
	}
}
