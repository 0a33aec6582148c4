// Package queue defines message payloads exchanged over the message broker
// and the consumer that records confirmed reservations in the ledger.
package queue

import (
    "time"

    "github.com/iliyamo/sound-rental/internal/model"
)

// ReservationConfirmedQueue is the durable queue confirmed reservations are
// published to.
const ReservationConfirmedQueue = "reservation.confirmed"

// ReservationConfirmedEvent is published once when a reservation moves to
// CONFIRMED.  It carries enough information for downstream consumers to
// log, notify, or count revenue without querying the primary database.
type ReservationConfirmedEvent struct {
    ReservationID string `json:"reservation_id"`
    PackageID     string `json:"package_id"`
    Family        string `json:"family"`
    Tier          string `json:"tier"`
    Headcount     int    `json:"headcount"`
    StartsAt      string `json:"starts_at"`
    EndsAt        string `json:"ends_at"`
    Zone          string `json:"zone"`
    Email         string `json:"email"`
    TotalCents    int64  `json:"total_cents"`
    DepositCents  int64  `json:"deposit_cents"`
    BalanceCents  int64  `json:"balance_cents"`
    CautionCents  int64  `json:"caution_cents"`
    ConfirmedAt   string `json:"confirmed_at"`
}

// NewReservationConfirmedEvent builds the event for a confirmed reservation.
func NewReservationConfirmedEvent(res model.Reservation, at time.Time) ReservationConfirmedEvent {
    return ReservationConfirmedEvent{
        ReservationID: res.ID,
        PackageID:     res.PackageID,
        Family:        string(res.Family),
        Tier:          string(res.Tier),
        Headcount:     res.Headcount,
        StartsAt:      res.StartsAt.UTC().Format(time.RFC3339),
        EndsAt:        res.EndsAt.UTC().Format(time.RFC3339),
        Zone:          res.Zone,
        Email:         res.Email,
        TotalCents:    res.TotalCents,
        DepositCents:  res.DepositCents,
        BalanceCents:  res.BalanceCents,
        CautionCents:  res.CautionCents,
        ConfirmedAt:   at.UTC().Format(time.RFC3339),
    }
}
