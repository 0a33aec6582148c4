package model

import "time"

// Status is the lifecycle state of a reservation.
type Status string

const (
    // StatusDraft is the wizard state held by the client.  It is never
    // persisted; it exists so that callers can describe the full lifecycle.
    StatusDraft Status = "DRAFT"
    // StatusAwaitingPayment is a hold: the slot is provisionally occupied
    // until the payment session is confirmed or the hold expires.
    StatusAwaitingPayment Status = "AWAITING_PAYMENT"
    // StatusConfirmed means the deposit has been paid.
    StatusConfirmed Status = "CONFIRMED"
    StatusCancelled Status = "CANCELLED"
    StatusExpired   Status = "EXPIRED"
)

// transitions lists, for each persisted status, the statuses it may move to.
// Anything not listed is rejected.  CANCELLED has no exits.
var transitions = map[Status][]Status{
    StatusDraft:           {StatusAwaitingPayment},
    StatusAwaitingPayment: {StatusConfirmed, StatusExpired, StatusCancelled},
    StatusConfirmed:       {StatusCancelled},
    StatusExpired:         {StatusCancelled},
}

// CanTransition reports whether moving from s to next is a legal step.
func (s Status) CanTransition(next Status) bool {
    for _, t := range transitions[s] {
        if t == next {
            return true
        }
    }
    return false
}

// Terminal reports whether no further payment-driven change can happen.
func (s Status) Terminal() bool {
    return s == StatusCancelled || s == StatusExpired
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
    switch s {
    case StatusDraft, StatusAwaitingPayment, StatusConfirmed, StatusCancelled, StatusExpired:
        return true
    }
    return false
}

// Reservation is the durable record of a booking.  It is written once in
// AWAITING_PAYMENT together with its payment session reference and then
// only ever changes status through the reservation state machine.
//
// Fields:
//  ID            – UUID assigned before the payment session is opened.
//  PackageID     – catalogue package reserved.
//  Family        – package family, used for availability pools.
//  Tier          – capacity tier resolved from the headcount.
//  Headcount     – declared number of guests.
//  StartsAt      – event start (UTC).
//  EndsAt        – event end (UTC, exclusive).
//  Zone          – delivery zone resolved from the postal code.
//  PostalCode    – postal code the zone was resolved from.
//  TotalCents    – payable total.
//  DepositCents  – amount charged through the payment session.
//  BalanceCents  – TotalCents - DepositCents.
//  CautionCents  – refundable security amount, collected separately.
//  Email         – customer contact.
//  Status        – lifecycle state.
//  PaymentRef    – external payment session reference.
//  HoldExpiresAt – after this instant an unpaid hold no longer blocks the slot.
//  NotifiedAt    – when the confirmation was published, nil until then.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Reservation struct {
    ID            string     `json:"id"`
    PackageID     string     `json:"package_id"`
    Family        Family     `json:"family"`
    Tier          Tier       `json:"tier"`
    Headcount     int        `json:"headcount"`
    StartsAt      time.Time  `json:"starts_at"`
    EndsAt        time.Time  `json:"ends_at"`
    Zone          string     `json:"zone"`
    PostalCode    string     `json:"postal_code"`
    TotalCents    int64      `json:"total_cents"`
    DepositCents  int64      `json:"deposit_cents"`
    BalanceCents  int64      `json:"balance_cents"`
    CautionCents  int64      `json:"caution_cents"`
    Email         string     `json:"email"`
    Status        Status     `json:"status"`
    PaymentRef    *string    `json:"payment_ref,omitempty"`
    HoldExpiresAt time.Time  `json:"hold_expires_at"`
    NotifiedAt    *time.Time `json:"notified_at,omitempty"`
    CreatedAt     time.Time  `json:"created_at"`
    UpdatedAt     time.Time  `json:"updated_at"`
}

// Span returns the reserved interval.
func (r *Reservation) Span() Span { return Span{Start: r.StartsAt, End: r.EndsAt} }

// HoldActive reports whether the reservation still occupies its slot at now.
// Confirmed reservations always do; unpaid holds only until they expire.
func (r *Reservation) HoldActive(now time.Time) bool {
    switch r.Status {
    case StatusConfirmed:
        return true
    case StatusAwaitingPayment:
        return r.HoldExpiresAt.After(now)
    }
    return false
}
