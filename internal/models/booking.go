package models

import (
	"time"

	"github.com/bkurui/fleetrent-backend/pkg/pricing"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusReserved  BookingStatus = "RESERVED"
	BookingStatusActive    BookingStatus = "ACTIVE"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Cancellation reasons recorded on CANCELLED bookings.
const (
	CancelReasonCapacityExceeded = "capacity_exceeded"
	CancelReasonPaymentFailed    = "payment_failed"
	CancelReasonExpired          = "checkout_expired"
	CancelReasonAdministrative   = "administrative"
)

type Booking struct {
	gorm.Model
	ClientID       uint          `json:"clientId" gorm:"not null;index"`
	Client         User          `json:"-"`
	VehicleID      uint          `json:"vehicleId" gorm:"not null;index"`
	PickupAt       time.Time     `json:"pickupAt" gorm:"not null"`
	DropoffAt      time.Time     `json:"dropoffAt" gorm:"not null"`
	AccessoryCount int           `json:"accessoryCount"`
	Status         BookingStatus `json:"status" gorm:"not null;default:'PENDING';index"`
	HoldsUnit      bool          `json:"holdsUnit" gorm:"not null;default:false"`
	CancelReason   string        `json:"cancelReason,omitempty"`

	// Price snapshot taken at order-creation time. Immutable afterwards so the
	// charged amount cannot drift from the quote the gateway order was made for.
	Price pricing.Quote `json:"price" gorm:"embedded;embeddedPrefix:price_"`

	// Gateway references. The order id exists from order creation; payment id
	// only after a verified settlement.
	GatewayOrderID   string `json:"gatewayOrderId" gorm:"uniqueIndex;not null"`
	GatewayPaymentID string `json:"gatewayPaymentId,omitempty"`
}

// Terminal reports whether no further transitions are legal.
func (b *Booking) Terminal() bool {
	return b.Status == BookingStatusCompleted || b.Status == BookingStatusCancelled
}
