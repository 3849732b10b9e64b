package model

import "time"

// Booking lifecycle states. A booking starts out pending and becomes
// paid exactly once, when payment reconciliation settles it. Vendors
// may move a booking between the non-settled states (for example to
// reject a request), but never into or out of paid.
const (
	BookingStatusPending  = "pending"
	BookingStatusPaid     = "paid"
	BookingStatusRejected = "rejected"
)

// Booking records a user's request for a quantity of one ticket.
// TransactionID is set if and only if BookingStatus is paid; the
// repository enforces the transition atomically.
//
// Fields:
//  ID            – primary key identifier.
//  TicketID      – ticket being booked.
//  UserEmail     – buyer's email.
//  VendorEmail   – ticket vendor's email.
//  Quantity      – number of tickets requested.
//  BookingStatus – pending, paid or rejected.
//  TransactionID – provider transaction that settled the booking
//                  (nil until settled).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Booking struct {
	ID            uint64    // bookings.id
	TicketID      uint64    // bookings.ticket_id
	UserEmail     string    // bookings.user_email
	VendorEmail   string    // bookings.vendor_email
	Quantity      uint32    // bookings.quantity
	BookingStatus string    // bookings.booking_status
	TransactionID *string   // bookings.transaction_id (nullable)
	CreatedAt     time.Time // bookings.created_at
	UpdatedAt     time.Time // bookings.updated_at
}
