// Package repository defines sentinel error values shared across the
// repositories. Handlers and the reconciliation service compare
// against these with errors.Is to map failures onto HTTP responses or
// to fold expected races into benign outcomes.
package repository

import "errors"

// ErrTicketNotFound is returned when a ticket referenced by an
// operation does not exist.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrBookingNotFound is returned when a booking referenced by a
// settlement or status update does not exist. During reconciliation it
// aborts the settlement before any ledger write.
var ErrBookingNotFound = errors.New("booking not found")

// ErrInsufficientStock is returned when a conditional stock decrement
// would drive a ticket's quantity negative. The decrement is not
// applied.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrDuplicateTransaction is returned when inserting a ledger entry
// violates the unique constraint on transaction_id. This is the
// expected outcome when two confirmations race on the same session and
// is treated as already-processed, not as a fatal error.
var ErrDuplicateTransaction = errors.New("duplicate transaction")

// ErrEmailExists is returned when registering a user with an email
// that is already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as a vendor trying to change the status
// of a booking that has already been settled. Handlers translate this
// into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by someone else, such as a vendor editing another
// vendor's ticket. Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")
