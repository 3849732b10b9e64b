package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ticketry/backend/internal/auth"
	"github.com/ticketry/backend/internal/config"
	"github.com/ticketry/backend/internal/model"
	"github.com/ticketry/backend/internal/payment"
	"github.com/ticketry/backend/internal/repository"
	"github.com/ticketry/backend/internal/service"
)

// PaymentConfirmer is the reconciliation entry point the handler
// drives. Satisfied by *service.Reconciler.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, sessionRef string) (*service.Confirmation, error)
}

// CheckoutCreator opens a provider checkout session for a pending
// booking. Satisfied by *payment.Client.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, in payment.CheckoutInput) (id, url string, err error)
}

// PaymentHandler serves checkout creation, payment confirmation and
// the ledger read side.
type PaymentHandler struct {
	Cfg       config.Config
	Confirmer PaymentConfirmer
	Checkout  CheckoutCreator
	Bookings  *repository.BookingRepo
	Tickets   *repository.TicketRepo
	Payments  *repository.PaymentRepo
}

func NewPaymentHandler(cfg config.Config, confirmer PaymentConfirmer, checkout CheckoutCreator,
	bookings *repository.BookingRepo, tickets *repository.TicketRepo, payments *repository.PaymentRepo) *PaymentHandler {
	if confirmer == nil || checkout == nil || bookings == nil || tickets == nil || payments == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Cfg: cfg, Confirmer: confirmer, Checkout: checkout,
		Bookings: bookings, Tickets: tickets, Payments: payments}
}

// CreateCheckout handles POST /v1/payments/checkout/:bookingId: opens
// a provider checkout session for the caller's own pending booking and
// returns the redirect URL. The session carries the booking metadata
// the confirmation flow settles from.
func (h *PaymentHandler) CreateCheckout(c echo.Context) error {
	id := identity(c)
	if aerr := auth.Check(id, auth.RequireRole(auth.RoleUser)); aerr != nil {
		return denied(c, aerr)
	}
	bookingID, err := pathID(c, "bookingId")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	b, err := h.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load booking"})
	}
	if aerr := auth.Check(id, auth.RequireEmail(b.UserEmail)); aerr != nil {
		return denied(c, aerr)
	}
	if b.BookingStatus != model.BookingStatusPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not pending"})
	}

	t, err := h.Tickets.GetByID(ctx, b.TicketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load ticket"})
	}

	sessionID, url, err := h.Checkout.CreateCheckoutSession(ctx, payment.CheckoutInput{
		BookingID:      b.ID,
		TicketID:       t.ID,
		TicketTitle:    t.Title,
		UserEmail:      b.UserEmail,
		VendorEmail:    b.VendorEmail,
		Quantity:       b.Quantity,
		UnitPriceCents: t.PriceCents,
		SuccessURL:     h.Cfg.CheckoutSuccess,
		CancelURL:      h.Cfg.CheckoutCancel,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create checkout session"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"session_id": sessionID, "url": url})
}

// Confirm handles GET /v1/payments/confirm?session_id=...: the single
// confirmation entry point the client redirect calls after checkout.
// It is reachable without authentication — the session reference is
// the capability — and safe to invoke any number of times.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	sessionRef := c.QueryParam("session_id")
	if sessionRef == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id is required"})
	}

	result, err := h.Confirmer.ConfirmPayment(c.Request().Context(), sessionRef)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotVerified):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment not verified"})
		case errors.Is(err, payment.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		case errors.Is(err, repository.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, repository.ErrTicketNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		case errors.Is(err, repository.ErrInsufficientStock):
			return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient stock"})
		}
		// Provider unavailable, settlement incomplete, storage errors:
		// retrying the same session reference is safe.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirmation failed"})
	}
	return c.JSON(http.StatusOK, result)
}

type paymentResp struct {
	ID            uint64  `json:"id"`
	TransactionID string  `json:"transaction_id"`
	BookingID     uint64  `json:"booking_id"`
	VendorEmail   string  `json:"vendor_email"`
	TicketTitle   string  `json:"ticket_title"`
	Amount        float64 `json:"amount"`
	PaymentStatus string  `json:"payment_status"`
	CreatedAt     string  `json:"created_at"`
}

func toPaymentResp(e *model.PaymentEntry) paymentResp {
	return paymentResp{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		BookingID:     e.BookingID,
		VendorEmail:   e.VendorEmail,
		TicketTitle:   e.TicketTitle,
		Amount:        e.Amount,
		PaymentStatus: e.PaymentStatus,
		CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// History handles GET /v1/payments: the caller's ledger entries.
func (h *PaymentHandler) History(c echo.Context) error {
	id := identity(c)
	if aerr := auth.Check(id); aerr != nil {
		return denied(c, aerr)
	}
	entries, err := h.Payments.ListByUser(c.Request().Context(), id.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load payments"})
	}
	out := make([]paymentResp, 0, len(entries))
	for i := range entries {
		out = append(out, toPaymentResp(&entries[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// VendorRevenue handles GET /v1/vendor/revenue: the sum of settled
// amounts credited to the calling vendor.
func (h *PaymentHandler) VendorRevenue(c echo.Context) error {
	id := identity(c)
	if aerr := auth.Check(id, auth.RequireRole(auth.RoleVendor)); aerr != nil {
		return denied(c, aerr)
	}
	total, err := h.Payments.VendorRevenue(c.Request().Context(), id.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load revenue"})
	}
	return c.JSON(http.StatusOK, echo.Map{"vendor_email": id.Email, "revenue": total})
}
