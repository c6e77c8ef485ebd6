package booking

import "errors"

// Failure kinds surfaced by the settlement coordinator. Everything the core
// can fail with is one of these (or a ledger/pricing sentinel it wraps);
// handlers map them to HTTP statuses and nothing escapes unclassified.
var (
	// ErrBookingNotFound means the booking id does not exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrOrderNotFound means no booking carries the gateway order id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrSignatureInvalid means the payment proof failed verification. The
	// booking is left unpaid and untouched.
	ErrSignatureInvalid = errors.New("payment signature invalid")

	// ErrOrderExpired means payment arrived for an order that is no longer
	// payable (typically cancelled by the checkout reaper). The payment is
	// recorded as rejected and the caller owes the customer a refund.
	ErrOrderExpired = errors.New("order is no longer payable")

	// ErrInvalidTransition means the requested lifecycle change is not legal
	// from the booking's current state.
	ErrInvalidTransition = errors.New("illegal booking state transition")

	// ErrConflict means a concurrent actor holds the settlement lock for the
	// same payment. The single operation is safe to retry.
	ErrConflict = errors.New("settlement in progress, retry")
)
