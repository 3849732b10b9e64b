package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ticketry/backend/internal/model"
)

// TicketRepo provides persistence for ticket listings and the
// conditional stock decrement used by payment reconciliation. All
// timestamps are stored in UTC.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// that span tickets, bookings and the payment ledger.
func (r *TicketRepo) DB() *sql.DB { return r.db }

const ticketColumns = `id, vendor_email, title, origin, destination, departure_at, price_cents, quantity, image_url, status, created_at, updated_at`

func scanTicket(row interface{ Scan(...interface{}) error }) (*model.Ticket, error) {
	var t model.Ticket
	var imageURL sql.NullString
	err := row.Scan(&t.ID, &t.VendorEmail, &t.Title, &t.Origin, &t.Destination,
		&t.DepartureAt, &t.PriceCents, &t.Quantity, &imageURL, &t.Status,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if imageURL.Valid {
		u := imageURL.String
		t.ImageURL = &u
	}
	return &t, nil
}

// Create inserts a new ticket in pending moderation state and
// populates the generated ID on the provided struct.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets (vendor_email, title, origin, destination, departure_at, price_cents, quantity, image_url, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var imageURL interface{}
	if t.ImageURL != nil {
		imageURL = *t.ImageURL
	}
	if t.Status == "" {
		t.Status = model.TicketStatusPending
	}
	res, err := r.db.ExecContext(ctx, q, t.VendorEmail, t.Title, t.Origin, t.Destination,
		t.DepartureAt.UTC().Format("2006-01-02 15:04:05"), t.PriceCents, t.Quantity, imageURL, t.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByID fetches a single ticket. Returns ErrTicketNotFound when no
// row exists.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	t, err := scanTicket(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrTicketNotFound
	}
	return t, err
}

// ListApproved returns approved tickets for public browsing, newest
// first. An optional destination filter narrows the result.
func (r *TicketRepo) ListApproved(ctx context.Context, destination string) ([]model.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM tickets WHERE status = ?`
	args := []interface{}{model.TicketStatusApproved}
	if d := strings.TrimSpace(destination); d != "" {
		q += ` AND destination LIKE ?`
		args = append(args, "%"+d+"%")
	}
	q += ` ORDER BY created_at DESC`
	return r.list(ctx, q, args...)
}

// ListByVendor returns every ticket a vendor has listed, regardless of
// moderation state.
func (r *TicketRepo) ListByVendor(ctx context.Context, vendorEmail string) ([]model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE vendor_email = ? ORDER BY created_at DESC`
	return r.list(ctx, q, vendorEmail)
}

func (r *TicketRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Update rewrites the descriptive fields of a vendor's own ticket and
// resets moderation to pending so edits are re-reviewed. It returns
// ErrTicketNotFound when the ticket does not exist and ErrForbidden
// when it belongs to a different vendor.
func (r *TicketRepo) Update(ctx context.Context, t *model.Ticket, vendorEmail string) error {
	if err := r.checkOwnership(ctx, t.ID, vendorEmail); err != nil {
		return err
	}
	const q = `UPDATE tickets SET title = ?, origin = ?, destination = ?, departure_at = ?,
	           price_cents = ?, quantity = ?, image_url = ?, status = ? WHERE id = ?`
	var imageURL interface{}
	if t.ImageURL != nil {
		imageURL = *t.ImageURL
	}
	_, err := r.db.ExecContext(ctx, q, t.Title, t.Origin, t.Destination,
		t.DepartureAt.UTC().Format("2006-01-02 15:04:05"), t.PriceCents, t.Quantity,
		imageURL, model.TicketStatusPending, t.ID)
	return err
}

// Delete removes a vendor's own ticket. Same ownership semantics as
// Update.
func (r *TicketRepo) Delete(ctx context.Context, id uint64, vendorEmail string) error {
	if err := r.checkOwnership(ctx, id, vendorEmail); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	return err
}

func (r *TicketRepo) checkOwnership(ctx context.Context, id uint64, vendorEmail string) error {
	var owner string
	err := r.db.QueryRowContext(ctx, `SELECT vendor_email FROM tickets WHERE id = ?`, id).Scan(&owner)
	if err == sql.ErrNoRows {
		return ErrTicketNotFound
	}
	if err != nil {
		return err
	}
	if !strings.EqualFold(owner, vendorEmail) {
		return ErrForbidden
	}
	return nil
}

// SetStatus moves a ticket between moderation states. Used by admin
// moderation only.
func (r *TicketRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tickets SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// DecrementStockTx applies a bounded stock decrement inside the given
// transaction. The decrement and the floor check are a single
// conditional UPDATE so concurrent settlements against the same ticket
// serialize in the storage engine and can never interleave into a lost
// update or a negative quantity. Returns ErrInsufficientStock when the
// remaining quantity is smaller than qty and ErrTicketNotFound when
// the ticket does not exist.
func (r *TicketRepo) DecrementStockTx(ctx context.Context, tx *sql.Tx, ticketID uint64, qty uint32) error {
	if qty == 0 {
		return nil
	}
	const q = `UPDATE tickets SET quantity = quantity - ? WHERE id = ? AND quantity >= ?`
	res, err := tx.ExecContext(ctx, q, qty, ticketID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// Zero rows: either the ticket is missing or the floor condition
	// failed. Distinguish the two for the caller.
	var id uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM tickets WHERE id = ?`, ticketID).Scan(&id)
	if err == sql.ErrNoRows {
		return ErrTicketNotFound
	}
	if err != nil {
		return err
	}
	return ErrInsufficientStock
}
