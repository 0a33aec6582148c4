// Package repository persists reservations.  ReservationRepo talks to MySQL
// with hand-written SQL; MemoryReservationRepo keeps the same contract in
// process for tests and single-node development.  The sentinel values below
// let higher layers tell failure scenarios apart without inspecting driver
// errors.
package repository

import "errors"

// ErrNotFound is returned when no reservation matches the lookup.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("reservation not found")

// ErrConflict is returned when an insert collides with an existing row,
// such as a second reservation carrying the same payment reference.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
