package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketry/backend/internal/payment"
	"github.com/ticketry/backend/internal/queue"
	"github.com/ticketry/backend/internal/repository"
)

type fakeRetriever struct {
	sess *payment.Session
	err  error
}

func (f *fakeRetriever) RetrieveSession(_ context.Context, _ string) (*payment.Session, error) {
	return f.sess, f.err
}

type capturePublisher struct {
	events []queue.PaymentSettledEvent
	err    error
}

func (p *capturePublisher) PublishPaymentSettled(_ context.Context, ev queue.PaymentSettledEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func newTestReconciler(t *testing.T, retr SessionRetriever, pub SettlementPublisher) (*Reconciler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	r := NewReconciler(db, retr,
		repository.NewPaymentRepo(db),
		repository.NewBookingRepo(db),
		repository.NewTicketRepo(db),
		pub)
	return r, mock
}

func paidSession() *payment.Session {
	return &payment.Session{
		ID:            "cs_test_1",
		TransactionID: "pi_1",
		PaymentStatus: "paid",
		AmountTotal:   150000,
		CustomerEmail: "buyer@example.com",
		Metadata: map[string]string{
			payment.MetaBookingID:      "1",
			payment.MetaTicketID:       "2",
			payment.MetaTicketQuantity: "2",
			payment.MetaUserEmail:      "buyer@example.com",
			payment.MetaVendorEmail:    "vendor@example.com",
			payment.MetaTicketTitle:    "Express to Oslo",
		},
	}
}

const (
	ledgerLookupQ = `SELECT id, transaction_id, booking_id, user_email, vendor_email, ticket_title, amount, payment_status, created_at`
	markPaidQ     = `UPDATE bookings SET booking_status = ?, transaction_id = ? WHERE id = ?`
	decrementQ    = `UPDATE tickets SET quantity = quantity - ? WHERE id = ? AND quantity >= ?`
	insertLedgerQ = `INSERT INTO payments`
	ticketExistsQ = `SELECT id FROM tickets WHERE id = ?`
)

func expectNoLedgerEntry(mock sqlmock.Sqlmock, txnID string) {
	mock.ExpectQuery(regexp.QuoteMeta(ledgerLookupQ)).
		WithArgs(txnID).
		WillReturnError(sql.ErrNoRows)
}

func TestConfirmPayment_Settles(t *testing.T) {
	pub := &capturePublisher{}
	r, mock := newTestReconciler(t, &fakeRetriever{sess: paidSession()}, pub)

	expectNoLedgerEntry(mock, "pi_1")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(markPaidQ)).
		WithArgs("paid", "pi_1", uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(decrementQ)).
		WithArgs(uint32(2), uint64(2), uint32(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertLedgerQ)).
		WithArgs("pi_1", uint64(1), "buyer@example.com", "vendor@example.com",
			"Express to Oslo", float64(1500), "paid").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	res, err := r.ConfirmPayment(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, res.Status)
	assert.Equal(t, "pi_1", res.TransactionID)
	assert.Equal(t, "Express to Oslo", res.TicketTitle)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "pi_1", pub.events[0].TransactionID)
	assert.Equal(t, float64(1500), pub.events[0].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_AlreadyProcessed(t *testing.T) {
	r, mock := newTestReconciler(t, &fakeRetriever{sess: paidSession()}, nil)

	cols := []string{"id", "transaction_id", "booking_id", "user_email", "vendor_email",
		"ticket_title", "amount", "payment_status", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta(ledgerLookupQ)).
		WithArgs("pi_1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(7, "pi_1", 1, "buyer@example.com", "vendor@example.com",
				"Express to Oslo", 1500.0, "paid", time.Now()))

	res, err := r.ConfirmPayment(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyProcessed, res.Status)
	assert.Equal(t, "pi_1", res.TransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_UnpaidSession(t *testing.T) {
	sess := paidSession()
	sess.PaymentStatus = "unpaid"
	r, mock := newTestReconciler(t, &fakeRetriever{sess: sess}, nil)

	expectNoLedgerEntry(mock, "pi_1")

	res, err := r.ConfirmPayment(context.Background(), "cs_test_1")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrPaymentNotVerified)
	// No transaction was ever opened.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_NoTransactionID(t *testing.T) {
	sess := paidSession()
	sess.TransactionID = ""
	r, mock := newTestReconciler(t, &fakeRetriever{sess: sess}, nil)

	res, err := r.ConfirmPayment(context.Background(), "cs_test_1")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrPaymentNotVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_ProviderUnavailable(t *testing.T) {
	r, mock := newTestReconciler(t, &fakeRetriever{err: payment.ErrProviderUnavailable}, nil)

	res, err := r.ConfirmPayment(context.Background(), "cs_test_1")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, payment.ErrProviderUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_DuplicateInsertRace(t *testing.T) {
	pub := &capturePublisher{}
	r, mock := newTestReconciler(t, &fakeRetriever{sess: paidSession()}, pub)

	expectNoLedgerEntry(mock, "pi_1")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(markPaidQ)).
		WithArgs("paid", "pi_1", uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(decrementQ)).
		WithArgs(uint32(2), uint64(2), uint32(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertLedgerQ)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	res, err := r.ConfirmPayment(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyProcessed, res.Status)
	// The loser of the race settles nothing and publishes nothing.
	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_BookingMissing(t *testing.T) {
	r, mock := newTestReconciler(t, &fakeRetriever{sess: paidSession()}, nil)

	expectNoLedgerEntry(mock, "pi_1")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(markPaidQ)).
		WithArgs("paid", "pi_1", uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	res, err := r.ConfirmPayment(context.Background(), "cs_test_1")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_BadBookingMetadata(t *testing.T) {
	sess := paidSession()
	sess.Metadata[payment.MetaBookingID] = "not-a-number"
	r, mock := newTestReconciler(t, &fakeRetriever{sess: sess}, nil)

	expectNoLedgerEntry(mock, "pi_1")

	res, err := r.ConfirmPayment(context.Background(), "cs_test_1")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_InsufficientStock(t *testing.T) {
	r, mock := newTestReconciler(t, &fakeRetriever{sess: paidSession()}, nil)

	expectNoLedgerEntry(mock, "pi_1")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(markPaidQ)).
		WithArgs("paid", "pi_1", uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(decrementQ)).
		WithArgs(uint32(2), uint64(2), uint32(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(ticketExistsQ)).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectRollback()

	res, err := r.ConfirmPayment(context.Background(), "cs_test_1")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_NoTicketMetadataSkipsDecrement(t *testing.T) {
	sess := paidSession()
	delete(sess.Metadata, payment.MetaTicketID)
	r, mock := newTestReconciler(t, &fakeRetriever{sess: sess}, nil)

	expectNoLedgerEntry(mock, "pi_1")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(markPaidQ)).
		WithArgs("paid", "pi_1", uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertLedgerQ)).
		WithArgs("pi_1", uint64(1), "buyer@example.com", "vendor@example.com",
			"Express to Oslo", float64(1500), "paid").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	res, err := r.ConfirmPayment(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_CommitFailureIsIncomplete(t *testing.T) {
	r, mock := newTestReconciler(t, &fakeRetriever{sess: paidSession()}, nil)

	expectNoLedgerEntry(mock, "pi_1")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(markPaidQ)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(decrementQ)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertLedgerQ)).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit().WillReturnError(errors.New("deadlock"))

	res, err := r.ConfirmPayment(context.Background(), "cs_test_1")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrSettlementIncomplete)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_PublishFailureDoesNotFailConfirmation(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	r, mock := newTestReconciler(t, &fakeRetriever{sess: paidSession()}, pub)

	expectNoLedgerEntry(mock, "pi_1")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(markPaidQ)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(decrementQ)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertLedgerQ)).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	res, err := r.ConfirmPayment(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseQuantity(t *testing.T) {
	assert.Equal(t, uint32(2), parseQuantity("2"))
	assert.Equal(t, uint32(1), parseQuantity(""))
	assert.Equal(t, uint32(1), parseQuantity("zero"))
	assert.Equal(t, uint32(1), parseQuantity("0"))
}
