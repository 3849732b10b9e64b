package model

import "time"

// Ticket statuses controlled by admin moderation. Only approved
// tickets are visible in public listings and bookable.
const (
	TicketStatusPending  = "pending"
	TicketStatusApproved = "approved"
	TicketStatusRejected = "rejected"
)

// Ticket is a transport ticket listing owned by a vendor. Quantity is
// the remaining stock; reconciliation decrements it and must never
// drive it negative, so all stock adjustments go through the
// conditional decrement in the ticket repository.
//
// Fields:
//  ID          – primary key identifier.
//  VendorEmail – email of the vendor who listed the ticket.
//  Title       – display title (also copied into ledger entries).
//  Origin      – departure location.
//  Destination – arrival location.
//  DepartureAt – scheduled departure time (UTC).
//  PriceCents  – unit price in minor currency units.
//  Quantity    – remaining non-negative stock.
//  ImageURL    – optional listing image.
//  Status      – moderation state (pending/approved/rejected).
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Ticket struct {
	ID          uint64    // tickets.id
	VendorEmail string    // tickets.vendor_email
	Title       string    // tickets.title
	Origin      string    // tickets.origin
	Destination string    // tickets.destination
	DepartureAt time.Time // tickets.departure_at
	PriceCents  uint32    // tickets.price_cents
	Quantity    uint32    // tickets.quantity
	ImageURL    *string   // tickets.image_url (nullable)
	Status      string    // tickets.status
	CreatedAt   time.Time // tickets.created_at
	UpdatedAt   time.Time // tickets.updated_at
}
