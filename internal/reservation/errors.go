package reservation

import (
    "errors"
    "fmt"
    "strings"

    "github.com/iliyamo/sound-rental/internal/repository"
)

// ErrNotFound is returned when the reservation (or the reservation owning a
// payment session) does not exist.
var ErrNotFound = repository.ErrNotFound

// ErrManualQuote is returned by Submit for quotes that need a manual
// estimate (out-of-zone delivery or a headcount above the top tier).  It is
// a fallback path, not a failure.
var ErrManualQuote = errors.New("quote requires a manual estimate")

// ErrInvalidTransition is returned when a requested status change is not
// allowed from the reservation's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrPaymentUnavailable wraps failures to open a payment session.  No
// reservation is stored when it is returned.
var ErrPaymentUnavailable = errors.New("payment provider unavailable")

// AvailabilityError means the slot was no longer free when the booking was
// submitted.  No reservation is stored.
type AvailabilityError struct {
    Reason    string
    Conflicts []string
}

func (e *AvailabilityError) Error() string {
    if len(e.Conflicts) == 0 {
        return "slot unavailable: " + e.Reason
    }
    return fmt.Sprintf("slot unavailable: %s (%s)", e.Reason, strings.Join(e.Conflicts, ", "))
}

// VerificationError is a transient failure while asking the payment
// provider for a session status.  The stored status is left untouched.
type VerificationError struct {
    ReservationID string
    Err           error
}

func (e *VerificationError) Error() string {
    return fmt.Sprintf("verify payment for reservation %s: %v", e.ReservationID, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }
