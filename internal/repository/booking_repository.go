package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ticketry/backend/internal/model"
)

// BookingRepo provides persistence for bookings and the single
// lifecycle transition payment reconciliation depends on: pending to
// paid with the settling transaction identifier attached.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, ticket_id, user_email, vendor_email, quantity, booking_status, transaction_id, created_at, updated_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (*model.Booking, error) {
	var b model.Booking
	var txnID sql.NullString
	err := row.Scan(&b.ID, &b.TicketID, &b.UserEmail, &b.VendorEmail, &b.Quantity,
		&b.BookingStatus, &txnID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if txnID.Valid {
		id := txnID.String
		b.TransactionID = &id
	}
	return &b, nil
}

// Create inserts a booking in pending state and populates the
// generated ID.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (ticket_id, user_email, vendor_email, quantity, booking_status)
	           VALUES (?, ?, ?, ?, ?)`
	if b.BookingStatus == "" {
		b.BookingStatus = model.BookingStatusPending
	}
	res, err := r.db.ExecContext(ctx, q, b.TicketID, b.UserEmail, b.VendorEmail, b.Quantity, b.BookingStatus)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID fetches a single booking. Returns ErrBookingNotFound when no
// row exists.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// ListByUser returns a user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userEmail string) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE user_email = ? ORDER BY created_at DESC`
	return r.list(ctx, q, userEmail)
}

// ListByVendor returns bookings placed against a vendor's tickets,
// newest first.
func (r *BookingRepo) ListByVendor(ctx context.Context, vendorEmail string) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE vendor_email = ? ORDER BY created_at DESC`
	return r.list(ctx, q, vendorEmail)
}

func (r *BookingRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// MarkPaidTx transitions a booking from pending to paid inside the
// given transaction, attaching the provider transaction identifier.
// The transition is a single conditional UPDATE; zero affected rows
// means the booking does not exist and the settlement must abort
// before any ledger write. There is no reverse transition.
func (r *BookingRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, bookingID uint64, transactionID string) error {
	const q = `UPDATE bookings SET booking_status = ?, transaction_id = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, model.BookingStatusPaid, transactionID, bookingID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// UpdateStatusForVendor lets a vendor move one of their bookings
// between non-settled states. Paid bookings are immutable here; the
// settlement fields belong to reconciliation alone. Returns
// ErrBookingNotFound, ErrForbidden, or ErrConflict for a paid booking.
func (r *BookingRepo) UpdateStatusForVendor(ctx context.Context, bookingID uint64, vendorEmail, status string) error {
	var owner, current string
	err := r.db.QueryRowContext(ctx,
		`SELECT vendor_email, booking_status FROM bookings WHERE id = ?`, bookingID).
		Scan(&owner, &current)
	if err == sql.ErrNoRows {
		return ErrBookingNotFound
	}
	if err != nil {
		return err
	}
	if !strings.EqualFold(owner, vendorEmail) {
		return ErrForbidden
	}
	if current == model.BookingStatusPaid || status == model.BookingStatusPaid {
		return ErrConflict
	}
	_, err = r.db.ExecContext(ctx, `UPDATE bookings SET booking_status = ? WHERE id = ?`, status, bookingID)
	return err
}
