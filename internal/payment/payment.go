// Package payment wraps the hosted checkout provider.  The reservation state
// machine only sees Session, SessionStatus and Notification; the Stripe
// adapter and the webhook parser translate to and from the provider's API.
package payment

import (
    "errors"
    "strings"
    "time"

    "github.com/google/uuid"
)

// SessionStatus is the provider-side state of a checkout session.
type SessionStatus string

const (
    StatusPaid    SessionStatus = "PAID"
    StatusUnpaid  SessionStatus = "UNPAID"
    StatusExpired SessionStatus = "EXPIRED"
)

// Session is an opened checkout session.
type Session struct {
    Ref         string `json:"session_ref"`
    RedirectURL string `json:"redirect_url"`
}

// MinHoldTTL is the shortest hold that can back a checkout session.  Stripe
// rejects sessions expiring less than 30 minutes after creation, measured
// on its own clock, so the extra minute absorbs latency and clock skew.
const MinHoldTTL = 31 * time.Minute

// SessionRequest describes the amount to collect for a reservation.
type SessionRequest struct {
    ReservationID string
    AmountCents   int64
    Description   string
    Email         string
    ExpiresAtUnix int64
}

// Notification is a provider callback reduced to what reconciliation needs.
type Notification struct {
    EventID       string
    SessionRef    string
    ReservationID string
    Status        SessionStatus
}

// ErrIgnoredEvent is returned by the webhook parser for well-formed events
// that do not affect a reservation.
var ErrIgnoredEvent = errors.New("payment: event ignored")

// ErrInvalidSignature is returned when a webhook payload cannot be
// authenticated.
var ErrInvalidSignature = errors.New("payment: invalid webhook signature")

// idempotencyNamespace scopes the keys derived by IdempotencyKey.
var idempotencyNamespace = uuid.MustParse("5f0c7d52-8a53-4b8e-9f39-3c7c1b1c2a61")

// IdempotencyKey derives a stable key for an operation on a reservation so
// that a retried request reuses the provider object created by the first.
func IdempotencyKey(reservationID, op string) string {
    return uuid.NewSHA1(idempotencyNamespace, []byte(reservationID+":"+op)).String()
}

// expandURL substitutes the reservation id into a configured redirect URL.
func expandURL(tmpl, reservationID string) string {
    return strings.ReplaceAll(tmpl, "{RESERVATION_ID}", reservationID)
}
