package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/ticketry/backend/internal/model"
)

// mysqlDuplicateEntry is the server error code raised when an insert
// violates a unique key.
const mysqlDuplicateEntry = 1062

// PaymentRepo persists the append-only payment ledger. The point
// lookup on transaction_id is the fast path of the idempotency check;
// the UNIQUE key enforced by InsertTx is the correctness guarantee
// when two confirmations race past the lookup.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// FindByTransactionID returns the ledger entry for a provider
// transaction, or sql.ErrNoRows when none exists. Reconciliation uses
// the absence of a row as permission to proceed with settlement.
func (r *PaymentRepo) FindByTransactionID(ctx context.Context, transactionID string) (*model.PaymentEntry, error) {
	const q = `SELECT id, transaction_id, booking_id, user_email, vendor_email, ticket_title, amount, payment_status, created_at
	           FROM payments WHERE transaction_id = ? LIMIT 1`
	var e model.PaymentEntry
	err := r.db.QueryRowContext(ctx, q, transactionID).Scan(
		&e.ID, &e.TransactionID, &e.BookingID, &e.UserEmail, &e.VendorEmail,
		&e.TicketTitle, &e.Amount, &e.PaymentStatus, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertTx appends a ledger entry inside the given transaction.
// Violating the unique key on transaction_id yields
// ErrDuplicateTransaction, which callers treat as the already-processed
// outcome of a concurrent confirmation.
func (r *PaymentRepo) InsertTx(ctx context.Context, tx *sql.Tx, e *model.PaymentEntry) error {
	const q = `INSERT INTO payments (transaction_id, booking_id, user_email, vendor_email, ticket_title, amount, payment_status)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, e.TransactionID, e.BookingID, e.UserEmail,
		e.VendorEmail, e.TicketTitle, e.Amount, e.PaymentStatus)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrDuplicateTransaction
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// ListByUser returns a user's payment history, newest first.
func (r *PaymentRepo) ListByUser(ctx context.Context, userEmail string) ([]model.PaymentEntry, error) {
	const q = `SELECT id, transaction_id, booking_id, user_email, vendor_email, ticket_title, amount, payment_status, created_at
	           FROM payments WHERE user_email = ? ORDER BY created_at DESC`
	return r.list(ctx, q, userEmail)
}

// VendorRevenue sums the settled amounts credited to a vendor.
func (r *PaymentRepo) VendorRevenue(ctx context.Context, vendorEmail string) (float64, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE vendor_email = ?`
	var total float64
	err := r.db.QueryRowContext(ctx, q, vendorEmail).Scan(&total)
	return total, err
}

func (r *PaymentRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.PaymentEntry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PaymentEntry, 0)
	for rows.Next() {
		var e model.PaymentEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.BookingID, &e.UserEmail,
			&e.VendorEmail, &e.TicketTitle, &e.Amount, &e.PaymentStatus, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
