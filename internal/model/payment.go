package model

import "time"

// PaymentEntry is a row of the append-only payment ledger. Exactly one
// entry exists per provider transaction identifier; the UNIQUE key on
// payments.transaction_id backs the idempotency guarantee of payment
// confirmation. Entries are never mutated or deleted.
//
// Fields:
//  ID            – primary key identifier.
//  TransactionID – provider-assigned payment identifier (unique).
//  BookingID     – booking settled by this payment.
//  UserEmail     – buyer's email as reported by the provider session.
//  VendorEmail   – vendor's email from the session metadata.
//  TicketTitle   – ticket title snapshot at settlement time.
//  Amount        – amount in major currency units.
//  PaymentStatus – provider payment status at settlement ("paid").
//  CreatedAt     – when the entry was written.
type PaymentEntry struct {
	ID            uint64    // payments.id
	TransactionID string    // payments.transaction_id
	BookingID     uint64    // payments.booking_id
	UserEmail     string    // payments.user_email
	VendorEmail   string    // payments.vendor_email
	TicketTitle   string    // payments.ticket_title
	Amount        float64   // payments.amount
	PaymentStatus string    // payments.payment_status
	CreatedAt     time.Time // payments.created_at
}
