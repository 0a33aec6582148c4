package pricing

import (
    "time"

    "github.com/iliyamo/sound-rental/internal/model"
)

// SurchargeKind identifies a line of the surcharge breakdown.
type SurchargeKind string

const (
    SurchargeDelivery      SurchargeKind = "delivery"
    SurchargeInstallation  SurchargeKind = "installation"
    SurchargeNextDayPickup SurchargeKind = "next_day_pickup"
)

// Surcharge is one automatic line item.  Mandatory surcharges are shown to
// the customer as non-negotiable.
type Surcharge struct {
    Kind        SurchargeKind `json:"kind"`
    AmountCents int64         `json:"amount_cents"`
    Mandatory   bool          `json:"mandatory"`
}

// PickupCutoffHour is the hour after which equipment can no longer be
// collected on the night of the event.
const PickupCutoffHour = 2

// Delivery returns the delivery supplement line for z.  ok is false for
// hors_zone, which cannot be priced automatically.
func Delivery(z Zone) (s Surcharge, ok bool) {
    amount, ok := DeliverySupplement(z)
    if !ok {
        return Surcharge{}, false
    }
    return Surcharge{Kind: SurchargeDelivery, AmountCents: amount, Mandatory: true}, true
}

// Installation returns the installation fee for tier.  present is true iff
// the tier is above S.
func Installation(tier model.Tier) (s Surcharge, present bool) {
    amount, present := installationFees[tier]
    if !present {
        return Surcharge{}, false
    }
    return Surcharge{Kind: SurchargeInstallation, AmountCents: amount, Mandatory: true}, true
}

// PickupDeadline returns the last instant at which equipment for an event
// starting at start can be collected without a next-day pickup.
//
// The event night is the calendar date of start, or the previous date when
// start falls before the cutoff hour (an event starting at 00:30 belongs to
// the previous night).  The deadline is the cutoff hour on the following
// day, in start's location.
func PickupDeadline(start time.Time) time.Time {
    night := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
    if start.Hour() < PickupCutoffHour {
        night = night.AddDate(0, 0, -1)
    }
    next := night.AddDate(0, 0, 1)
    return time.Date(next.Year(), next.Month(), next.Day(), PickupCutoffHour, 0, 0, 0, start.Location())
}

// NeedsNextDayPickup reports whether the span ends strictly after the
// pickup deadline.  Spans covering several days are charged once.
func NeedsNextDayPickup(span model.Span) bool {
    return span.End.After(PickupDeadline(span.Start))
}

// NextDayPickup returns the next-day pickup line for span in zone.
// applies is false when no fee is due.  priced is false when a fee is due
// but the zone has no automatic price.
func NextDayPickup(span model.Span, z Zone) (s Surcharge, applies, priced bool) {
    if !NeedsNextDayPickup(span) {
        return Surcharge{}, false, true
    }
    amount, ok := nextDayPickupFees[z]
    if !ok {
        return Surcharge{}, true, false
    }
    return Surcharge{Kind: SurchargeNextDayPickup, AmountCents: amount, Mandatory: true}, true, true
}
