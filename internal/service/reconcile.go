// Package service contains the payment reconciliation orchestrator:
// the one component that writes to more than one entity class per
// invocation. Everything else in the application exposes single-entity
// operations.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/ticketry/backend/internal/model"
	"github.com/ticketry/backend/internal/payment"
	"github.com/ticketry/backend/internal/queue"
	"github.com/ticketry/backend/internal/repository"
)

// ErrPaymentNotVerified is returned when the provider session exists
// but the checkout was not completed. Terminal; no state is mutated.
var ErrPaymentNotVerified = errors.New("payment not verified")

// ErrSettlementIncomplete is returned for failures between the
// idempotency gate and the ledger commit. No successful result is
// returned unless the ledger entry was durably written; retrying the
// same session reference is safe because the gate short-circuits once
// the entry lands.
var ErrSettlementIncomplete = errors.New("settlement incomplete")

// Confirmation statuses returned to the caller.
const (
	StatusSettled          = "success"
	StatusAlreadyProcessed = "already-processed"
)

// Confirmation is the caller-visible outcome of ConfirmPayment.
type Confirmation struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	TicketTitle   string `json:"ticketTitle,omitempty"`
}

// SessionRetriever resolves an opaque session reference to the
// provider's view of the checkout session.
type SessionRetriever interface {
	RetrieveSession(ctx context.Context, sessionRef string) (*payment.Session, error)
}

// SettlementPublisher emits a settlement event after the ledger entry
// commits. Publishing is best-effort; failures never affect the
// confirmation result.
type SettlementPublisher interface {
	PublishPaymentSettled(ctx context.Context, ev queue.PaymentSettledEvent) error
}

// Reconciler settles provider payments against bookings, ticket stock
// and the payment ledger. Each invocation is an independent unit of
// work; no global lock serializes confirmations. For a single
// transaction identifier, at most one invocation proceeds past the
// idempotency gate to a durable ledger write — enforced by the unique
// key on payments.transaction_id, not by application locking.
type Reconciler struct {
	db        *sql.DB
	provider  SessionRetriever
	payments  *repository.PaymentRepo
	bookings  *repository.BookingRepo
	tickets   *repository.TicketRepo
	publisher SettlementPublisher
}

// NewReconciler wires the orchestrator. The publisher may be nil, in
// which case settlement events are skipped.
func NewReconciler(db *sql.DB, provider SessionRetriever, payments *repository.PaymentRepo,
	bookings *repository.BookingRepo, tickets *repository.TicketRepo, publisher SettlementPublisher) *Reconciler {
	if db == nil || provider == nil || payments == nil || bookings == nil || tickets == nil {
		panic("nil dependency passed to NewReconciler")
	}
	return &Reconciler{
		db:        db,
		provider:  provider,
		payments:  payments,
		bookings:  bookings,
		tickets:   tickets,
		publisher: publisher,
	}
}

// ConfirmPayment verifies a provider checkout session exactly once and
// settles it: booking to paid, ticket stock decremented, ledger entry
// written. Re-invoking with the same session reference is always safe
// and converges to the same outcome.
func (r *Reconciler) ConfirmPayment(ctx context.Context, sessionRef string) (*Confirmation, error) {
	sess, err := r.provider.RetrieveSession(ctx, sessionRef)
	if err != nil {
		return nil, err
	}

	transactionID := sess.TransactionID
	if transactionID == "" {
		// No confirmed payment reference on the session means the
		// checkout never completed.
		return nil, ErrPaymentNotVerified
	}

	// Idempotency gate: this check happens before any write. The
	// unique ledger key backstops the race where two confirmations
	// both pass it.
	if _, err := r.payments.FindByTransactionID(ctx, transactionID); err == nil {
		return &Confirmation{Status: StatusAlreadyProcessed, TransactionID: transactionID}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}

	if !sess.Paid() {
		return nil, ErrPaymentNotVerified
	}

	bookingID, err := strconv.ParseUint(sess.Metadata[payment.MetaBookingID], 10, 64)
	if err != nil || bookingID == 0 {
		// Session metadata does not reference a booking we know:
		// inconsistency between provider and store.
		return nil, repository.ErrBookingNotFound
	}

	entry := &model.PaymentEntry{
		TransactionID: transactionID,
		BookingID:     bookingID,
		UserEmail:     sess.Metadata[payment.MetaUserEmail],
		VendorEmail:   sess.Metadata[payment.MetaVendorEmail],
		TicketTitle:   sess.Metadata[payment.MetaTicketTitle],
		Amount:        float64(sess.AmountTotal) / 100,
		PaymentStatus: sess.PaymentStatus,
	}
	if entry.UserEmail == "" {
		entry.UserEmail = sess.CustomerEmail
	}

	if err := r.settle(ctx, sess, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicateTransaction) {
			// A concurrent confirmation won the race between our
			// lookup and insert. Equivalent to already-processed.
			return &Confirmation{Status: StatusAlreadyProcessed, TransactionID: transactionID}, nil
		}
		return nil, err
	}

	if r.publisher != nil {
		ev := queue.PaymentSettledEvent{
			TransactionID: transactionID,
			BookingID:     bookingID,
			UserEmail:     entry.UserEmail,
			VendorEmail:   entry.VendorEmail,
			TicketTitle:   entry.TicketTitle,
			Amount:        entry.Amount,
			SettledAt:     time.Now().UTC().Format(time.RFC3339),
		}
		if err := r.publisher.PublishPaymentSettled(ctx, ev); err != nil {
			log.Printf("reconcile: publish settled event failed for %s: %v", transactionID, err)
		}
	}

	return &Confirmation{
		Status:        StatusSettled,
		TransactionID: transactionID,
		CustomerEmail: sess.CustomerEmail,
		TicketTitle:   entry.TicketTitle,
	}, nil
}

// settle runs the settlement sequence in one storage transaction: the
// booking transition, the bounded stock decrement, and the ledger
// write as the commit marker. Typed sentinels (booking missing, stock
// short, duplicate transaction) pass through untouched; anything else
// is wrapped as settlement-incomplete so the caller knows a retry will
// converge.
func (r *Reconciler) settle(ctx context.Context, sess *payment.Session, entry *model.PaymentEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrSettlementIncomplete, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := r.bookings.MarkPaidTx(ctx, tx, entry.BookingID, entry.TransactionID); err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return err
		}
		return fmt.Errorf("%w: mark booking paid: %v", ErrSettlementIncomplete, err)
	}

	if rawTicketID := sess.Metadata[payment.MetaTicketID]; rawTicketID != "" {
		ticketID, err := strconv.ParseUint(rawTicketID, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad ticketId %q", ErrSettlementIncomplete, rawTicketID)
		}
		qty := parseQuantity(sess.Metadata[payment.MetaTicketQuantity])
		if err := r.tickets.DecrementStockTx(ctx, tx, ticketID, qty); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) || errors.Is(err, repository.ErrTicketNotFound) {
				return err
			}
			return fmt.Errorf("%w: decrement stock: %v", ErrSettlementIncomplete, err)
		}
	}

	if err := r.payments.InsertTx(ctx, tx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicateTransaction) {
			return err
		}
		return fmt.Errorf("%w: write ledger entry: %v", ErrSettlementIncomplete, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrSettlementIncomplete, err)
	}
	committed = true
	return nil
}

// parseQuantity reads the ticketQuantity metadata value, defaulting to
// one ticket when it is absent or malformed.
func parseQuantity(raw string) uint32 {
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return 1
	}
	return uint32(n)
}
