// Package queue defines the settlement event payload and the RabbitMQ
// publisher/consumer that move it.
package queue

// PaymentSettledEvent is published after a payment reconciliation
// commits its ledger entry. It carries enough information for
// downstream consumers to log or notify without querying the primary
// database.
type PaymentSettledEvent struct {
	TransactionID string  `json:"transaction_id"`
	BookingID     uint64  `json:"booking_id"`
	UserEmail     string  `json:"user_email"`
	VendorEmail   string  `json:"vendor_email"`
	TicketTitle   string  `json:"ticket_title"`
	Amount        float64 `json:"amount"`
	SettledAt     string  `json:"settled_at"`
}
