package pricing

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidWindow is returned when the rental window is empty or inverted.
var ErrInvalidWindow = errors.New("dropoff must be after pickup")

const (
	// TaxRate is the flat tax applied to the rental subtotal and surcharge
	TaxRate = 0.18
	// HandlingFee is the fixed per-booking handling charge
	HandlingFee = 10.0
	// AccessoryFee is the flat surcharge when optional accessories are requested
	AccessoryFee = 50.0

	minutesPerDay = 24 * 60
	halfDay       = 12 * 60
)

// Quote is the priced breakdown for a rental window. It is computed once,
// server side, at order-creation time and snapshotted onto the booking; the
// quote a client previews is advisory only and never trusted for charging.
type Quote struct {
	ChargedDays     int     `json:"chargedDays"`
	ChargedHours    int     `json:"chargedHours"`
	Subtotal        float64 `json:"subtotal"`
	Tax             float64 `json:"tax"`
	HandlingFee     float64 `json:"handlingFee"`
	SurchargeAmount float64 `json:"surchargeAmount"`
	SurchargeTax    float64 `json:"surchargeTax"`
	Total           float64 `json:"total"`
	Note            string  `json:"note,omitempty"`
}

// Calculate prices a rental of the given window at farePerDay.
//
// Windows up to one day are charged a flat single day (minimum-charge policy).
// Longer windows are charged per full day; a partial day of more than twelve
// hours rounds up to a full day, anything shorter is prorated hourly at
// farePerDay/24. Pure function: no clock reads, deterministic for fixed input.
func Calculate(farePerDay float64, pickupAt, dropoffAt time.Time, accessoryCount int) (Quote, error) {
	if !dropoffAt.After(pickupAt) {
		return Quote{}, ErrInvalidWindow
	}

	minutes := int(dropoffAt.Sub(pickupAt) / time.Minute)

	var q Quote
	switch {
	case minutes <= minutesPerDay:
		q.ChargedDays = 1
		q.Subtotal = farePerDay
		q.Note = "minimum one-day charge applied"
	default:
		q.ChargedDays = minutes / minutesPerDay
		remainder := minutes % minutesPerDay
		switch {
		case remainder == 0:
			q.Subtotal = farePerDay * float64(q.ChargedDays)
		case remainder > halfDay:
			// More than half an extra day rounds up to a full day.
			q.ChargedDays++
			q.Subtotal = farePerDay * float64(q.ChargedDays)
			q.Note = "partial day over 12h charged as full day"
		default:
			q.ChargedHours = int(math.Ceil(float64(remainder) / 60.0))
			q.Subtotal = farePerDay*float64(q.ChargedDays) + (farePerDay/24.0)*float64(q.ChargedHours)
		}
	}

	// Each addend is rounded before summation; the order is fixed so the same
	// input always reproduces the same total.
	q.Subtotal = roundCents(q.Subtotal)
	q.Tax = roundUnit(q.Subtotal * TaxRate)
	q.HandlingFee = HandlingFee

	if accessoryCount > 0 {
		q.SurchargeAmount = AccessoryFee
		q.SurchargeTax = roundUnit(q.SurchargeAmount * TaxRate)
	}

	q.Total = q.Subtotal + q.Tax + q.HandlingFee + q.SurchargeAmount + q.SurchargeTax
	return q, nil
}

// TotalMinorUnits returns the total expressed in minor currency units, the
// denomination the payment gateway charges in.
func (q Quote) TotalMinorUnits() int64 {
	return int64(math.Round(q.Total * 100))
}

// roundCents rounds to 2 decimal places.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// roundUnit rounds half-up to the nearest whole currency unit.
func roundUnit(v float64) float64 {
	return math.Floor(v + 0.5)
}
