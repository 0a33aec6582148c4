package model

import "time"

// Span is a half-open interval [Start, End).
type Span struct {
    Start time.Time `json:"start"`
    End   time.Time `json:"end"`
}

// Valid reports whether End is strictly after Start.
func (s Span) Valid() bool { return s.End.After(s.Start) }

// Overlaps reports whether s and o share at least one instant.  Spans that
// only touch (one ends exactly when the other starts) do not overlap.
func (s Span) Overlaps(o Span) bool {
    return s.Start.Before(o.End) && o.Start.Before(s.End)
}
