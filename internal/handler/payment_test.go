package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketry/backend/internal/payment"
	"github.com/ticketry/backend/internal/repository"
	"github.com/ticketry/backend/internal/service"
)

type fakeConfirmer struct {
	result *service.Confirmation
	err    error

	gotRef string
}

func (f *fakeConfirmer) ConfirmPayment(_ context.Context, sessionRef string) (*service.Confirmation, error) {
	f.gotRef = sessionRef
	return f.result, f.err
}

func confirmRequest(t *testing.T, h *PaymentHandler, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.Confirm(c))
	return rec
}

func TestPaymentConfirm(t *testing.T) {
	t.Run("settled", func(t *testing.T) {
		fc := &fakeConfirmer{result: &service.Confirmation{
			Status:        service.StatusSettled,
			TransactionID: "pi_1",
			TicketTitle:   "Express to Oslo",
		}}
		h := &PaymentHandler{Confirmer: fc}

		rec := confirmRequest(t, h, "/v1/payments/confirm?session_id=cs_test_1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "cs_test_1", fc.gotRef)

		var body service.Confirmation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, service.StatusSettled, body.Status)
		assert.Equal(t, "pi_1", body.TransactionID)
	})

	t.Run("already processed", func(t *testing.T) {
		fc := &fakeConfirmer{result: &service.Confirmation{
			Status:        service.StatusAlreadyProcessed,
			TransactionID: "pi_1",
		}}
		h := &PaymentHandler{Confirmer: fc}

		rec := confirmRequest(t, h, "/v1/payments/confirm?session_id=cs_test_1")
		assert.Equal(t, http.StatusOK, rec.Code)

		var body service.Confirmation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, service.StatusAlreadyProcessed, body.Status)
	})

	t.Run("missing session_id", func(t *testing.T) {
		h := &PaymentHandler{Confirmer: &fakeConfirmer{}}
		rec := confirmRequest(t, h, "/v1/payments/confirm")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("error mapping", func(t *testing.T) {
		cases := []struct {
			name string
			err  error
			code int
		}{
			{"not verified", service.ErrPaymentNotVerified, http.StatusBadRequest},
			{"session missing", payment.ErrSessionNotFound, http.StatusNotFound},
			{"booking missing", repository.ErrBookingNotFound, http.StatusNotFound},
			{"ticket missing", repository.ErrTicketNotFound, http.StatusNotFound},
			{"stock short", repository.ErrInsufficientStock, http.StatusConflict},
			{"provider down", payment.ErrProviderUnavailable, http.StatusInternalServerError},
			{"settlement incomplete", service.ErrSettlementIncomplete, http.StatusInternalServerError},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				h := &PaymentHandler{Confirmer: &fakeConfirmer{err: tc.err}}
				rec := confirmRequest(t, h, "/v1/payments/confirm?session_id=cs_test_1")
				assert.Equal(t, tc.code, rec.Code)
			})
		}
	})
}
