package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ticketry/backend/internal/auth"
	"github.com/ticketry/backend/internal/model"
	"github.com/ticketry/backend/internal/repository"
)

// BookingHandler serves booking creation and the user/vendor views of
// bookings. Settlement (pending -> paid) is not reachable from here;
// that transition belongs to payment reconciliation alone.
type BookingHandler struct {
	Bookings *repository.BookingRepo
	Tickets  *repository.TicketRepo
}

func NewBookingHandler(bookings *repository.BookingRepo, tickets *repository.TicketRepo) *BookingHandler {
	if bookings == nil || tickets == nil {
		panic("nil repository passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, Tickets: tickets}
}

type createBookingReq struct {
	TicketID uint64 `json:"ticket_id" validate:"required,gt=0"`
	Quantity uint32 `json:"quantity" validate:"required,gt=0"`
}

type bookingResp struct {
	ID            uint64  `json:"id"`
	TicketID      uint64  `json:"ticket_id"`
	UserEmail     string  `json:"user_email"`
	VendorEmail   string  `json:"vendor_email"`
	Quantity      uint32  `json:"quantity"`
	BookingStatus string  `json:"booking_status"`
	TransactionID *string `json:"transaction_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func toBookingResp(b *model.Booking) bookingResp {
	return bookingResp{
		ID:            b.ID,
		TicketID:      b.TicketID,
		UserEmail:     b.UserEmail,
		VendorEmail:   b.VendorEmail,
		Quantity:      b.Quantity,
		BookingStatus: b.BookingStatus,
		TransactionID: b.TransactionID,
		CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Create handles POST /v1/bookings: a user requests a quantity of an
// approved ticket. The booking starts pending; stock is not touched
// until payment settles. The quantity is validated against current
// stock as a courtesy check only — the conditional decrement during
// settlement is what actually protects the floor.
func (h *BookingHandler) Create(c echo.Context) error {
	id := identity(c)
	if aerr := auth.Check(id, auth.RequireRole(auth.RoleUser)); aerr != nil {
		return denied(c, aerr)
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	t, err := h.Tickets.GetByID(ctx, req.TicketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load ticket"})
	}
	if t.Status != model.TicketStatusApproved {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	}
	if t.Quantity < req.Quantity {
		return c.JSON(http.StatusConflict, echo.Map{"error": "not enough tickets available"})
	}

	b := &model.Booking{
		TicketID:    t.ID,
		UserEmail:   id.Email,
		VendorEmail: t.VendorEmail,
		Quantity:    req.Quantity,
	}
	if err := h.Bookings.Create(ctx, b); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create booking"})
	}
	fresh, err := h.Bookings.GetByID(ctx, b.ID)
	if err != nil {
		return c.JSON(http.StatusCreated, echo.Map{"item": toBookingResp(b)})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": toBookingResp(fresh)})
}

// ListMine handles GET /v1/bookings: the caller's bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	id := identity(c)
	if aerr := auth.Check(id); aerr != nil {
		return denied(c, aerr)
	}
	bookings, err := h.Bookings.ListByUser(c.Request().Context(), id.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	items := make([]bookingResp, 0, len(bookings))
	for i := range bookings {
		items = append(items, toBookingResp(&bookings[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListForVendor handles GET /v1/vendor/bookings: bookings placed
// against the calling vendor's tickets.
func (h *BookingHandler) ListForVendor(c echo.Context) error {
	id := identity(c)
	if aerr := auth.Check(id, auth.RequireRole(auth.RoleVendor)); aerr != nil {
		return denied(c, aerr)
	}
	bookings, err := h.Bookings.ListByVendor(c.Request().Context(), id.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	items := make([]bookingResp, 0, len(bookings))
	for i := range bookings {
		items = append(items, toBookingResp(&bookings[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type updateBookingReq struct {
	Status string `json:"status" validate:"required,oneof=pending rejected"`
}

// UpdateStatus handles PATCH /v1/vendor/bookings/:id/status. Vendors
// can move their bookings between non-settled states only; paid is off
// limits in both directions.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	id := identity(c)
	if aerr := auth.Check(id, auth.RequireRole(auth.RoleVendor)); aerr != nil {
		return denied(c, aerr)
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.Bookings.UpdateStatusForVendor(c.Request().Context(), bookingID, id.Email, req.Status); err != nil {
		switch {
		case errors.Is(err, repository.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking already settled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update booking"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": bookingID, "status": req.Status})
}
