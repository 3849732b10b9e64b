package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const decrementStockQ = `UPDATE tickets SET quantity = quantity - ? WHERE id = ? AND quantity >= ?`

func TestTicketRepoDecrementStockTx(t *testing.T) {
	newTx := func(t *testing.T) (*TicketRepo, *sql.Tx, sqlmock.Sqlmock) {
		t.Helper()
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		mock.ExpectBegin()
		tx, err := db.Begin()
		require.NoError(t, err)
		return NewTicketRepo(db), tx, mock
	}

	t.Run("decrements when stock suffices", func(t *testing.T) {
		repo, tx, mock := newTx(t)
		mock.ExpectExec(regexp.QuoteMeta(decrementStockQ)).
			WithArgs(uint32(2), uint64(10), uint32(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.DecrementStockTx(context.Background(), tx, 10, 2)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient stock", func(t *testing.T) {
		repo, tx, mock := newTx(t)
		mock.ExpectExec(regexp.QuoteMeta(decrementStockQ)).
			WithArgs(uint32(5), uint64(10), uint32(5)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM tickets WHERE id = ?`)).
			WithArgs(uint64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

		err := repo.DecrementStockTx(context.Background(), tx, 10, 5)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ticket missing", func(t *testing.T) {
		repo, tx, mock := newTx(t)
		mock.ExpectExec(regexp.QuoteMeta(decrementStockQ)).
			WithArgs(uint32(1), uint64(99), uint32(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM tickets WHERE id = ?`)).
			WithArgs(uint64(99)).
			WillReturnError(sql.ErrNoRows)

		err := repo.DecrementStockTx(context.Background(), tx, 99, 1)
		assert.ErrorIs(t, err, ErrTicketNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero quantity is a no-op", func(t *testing.T) {
		repo, tx, mock := newTx(t)
		err := repo.DecrementStockTx(context.Background(), tx, 10, 0)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTicketRepoSetStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTicketRepo(db)

	t.Run("updates existing ticket", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE tickets SET status = ? WHERE id = ?`)).
			WithArgs("approved", uint64(10)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.SetStatus(context.Background(), 10, "approved"))
	})

	t.Run("missing ticket", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE tickets SET status = ? WHERE id = ?`)).
			WithArgs("approved", uint64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.SetStatus(context.Background(), 99, "approved"), ErrTicketNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepoOwnership(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTicketRepo(db)

	t.Run("delete by owner", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT vendor_email FROM tickets WHERE id = ?`)).
			WithArgs(uint64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"vendor_email"}).AddRow("vendor@example.com"))
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM tickets WHERE id = ?`)).
			WithArgs(uint64(10)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.Delete(context.Background(), 10, "vendor@example.com"))
	})

	t.Run("delete by stranger", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT vendor_email FROM tickets WHERE id = ?`)).
			WithArgs(uint64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"vendor_email"}).AddRow("vendor@example.com"))
		assert.ErrorIs(t, repo.Delete(context.Background(), 10, "other@example.com"), ErrForbidden)
	})

	t.Run("delete missing", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT vendor_email FROM tickets WHERE id = ?`)).
			WithArgs(uint64(99)).
			WillReturnError(sql.ErrNoRows)
		assert.ErrorIs(t, repo.Delete(context.Background(), 99, "vendor@example.com"), ErrTicketNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
