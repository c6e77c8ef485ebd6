package models

import (
	"time"

	"gorm.io/gorm"
)

type PaymentOutcome string

const (
	PaymentOutcomeVerified PaymentOutcome = "verified"
	PaymentOutcomeRejected PaymentOutcome = "rejected"
)

// PaymentAttempt is the append-only idempotency ledger for gateway callbacks.
// The unique index on GatewayPaymentID guarantees a replayed confirmation can
// never settle twice, even across service replicas.
type PaymentAttempt struct {
	gorm.Model
	GatewayOrderID   string         `json:"gatewayOrderId" gorm:"index;not null"`
	GatewayPaymentID string         `json:"gatewayPaymentId" gorm:"uniqueIndex;not null"`
	BookingID        uint           `json:"bookingId" gorm:"not null"`
	Outcome          PaymentOutcome `json:"outcome" gorm:"not null"`
	VerifiedAt       time.Time      `json:"verifiedAt"`
}
