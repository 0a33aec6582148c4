// Package availability decides whether a proposed span can still be
// committed for a package family.  It reads the reservation store and never
// writes to it; the state machine re-runs the check right before it opens a
// payment session.
package availability

import (
    "context"
    "fmt"
    "time"

    "github.com/iliyamo/sound-rental/internal/model"
)

// Store is the read side of the reservation store the checker needs.
type Store interface {
    ListOverlapping(ctx context.Context, family model.Family, span model.Span, now time.Time) ([]model.Reservation, error)
}

// Reasons reported by Check when a slot cannot be committed.
const (
    ReasonInvalidSpan   = "invalid_span"
    ReasonPoolExhausted = "pool_exhausted"
    ReasonNoPool        = "no_pool"
)

// Result is the verdict for a span.  Conflicts lists the ids of the
// reservations occupying the pool when Available is false.
type Result struct {
    Available bool     `json:"available"`
    Reason    string   `json:"reason,omitempty"`
    Conflicts []string `json:"conflicts,omitempty"`
}

// Checker counts live reservations against a per-family pool capacity.
type Checker struct {
    store    Store
    capacity map[model.Family]int
    now      func() time.Time
}

// NewChecker builds a Checker.  Families missing from capacity have no
// pool and are never available.
func NewChecker(store Store, capacity map[model.Family]int) *Checker {
    caps := make(map[model.Family]int, len(capacity))
    for f, n := range capacity {
        caps[f] = n
    }
    return &Checker{store: store, capacity: caps, now: time.Now}
}

// WithClock replaces the time source used to decide whether a hold has
// expired.  It returns c.
func (c *Checker) WithClock(now func() time.Time) *Checker {
    c.now = now
    return c
}

// Capacity returns the pool size configured for a family.
func (c *Checker) Capacity(family model.Family) int { return c.capacity[family] }

// Check reports whether span can be booked for family.  Only confirmed
// reservations and unexpired holds count; the span is half-open so a booking
// that ends exactly when the proposed one starts does not conflict.
func (c *Checker) Check(ctx context.Context, span model.Span, family model.Family) (Result, error) {
    if !span.Valid() {
        return Result{Reason: ReasonInvalidSpan}, nil
    }
    capacity := c.capacity[family]
    if capacity <= 0 {
        return Result{Reason: ReasonNoPool}, nil
    }
    live, err := c.store.ListOverlapping(ctx, family, span, c.now())
    if err != nil {
        return Result{}, fmt.Errorf("query overlapping reservations: %w", err)
    }
    if len(live) < capacity {
        return Result{Available: true}, nil
    }
    ids := make([]string, 0, len(live))
    for _, r := range live {
        ids = append(ids, r.ID)
    }
    return Result{Reason: ReasonPoolExhausted, Conflicts: ids}, nil
}
