// Package pricing turns a booking request into a priced, tiered quote.
// Everything in this package is a pure function over its inputs and the
// static tables in catalogue.go; nothing here performs I/O.
package pricing

import "fmt"

// ValidationError reports input that must be corrected before any quote or
// external call can happen.
type ValidationError struct {
    Field  string
    Reason string
}

func (e *ValidationError) Error() string {
    return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
    return &ValidationError{Field: field, Reason: reason}
}

// ManualReason explains why a quote could not be priced automatically.
type ManualReason string

const (
    ManualOutOfZone    ManualReason = "hors_zone"
    ManualAboveTopTier ManualReason = "above_top_tier"
)
