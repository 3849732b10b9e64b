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

// TicketHandler serves public browsing, vendor listing management and
// admin moderation of tickets.
type TicketHandler struct {
	Tickets *repository.TicketRepo
}

func NewTicketHandler(tickets *repository.TicketRepo) *TicketHandler {
	if tickets == nil {
		panic("nil repository passed to NewTicketHandler")
	}
	return &TicketHandler{Tickets: tickets}
}

type ticketReq struct {
	Title       string  `json:"title" validate:"required"`
	Origin      string  `json:"origin" validate:"required"`
	Destination string  `json:"destination" validate:"required"`
	DepartureAt string  `json:"departure_at" validate:"required"`
	PriceCents  uint32  `json:"price_cents" validate:"required,gt=0"`
	Quantity    uint32  `json:"quantity" validate:"required,gt=0"`
	ImageURL    *string `json:"image_url"`
}

type ticketResp struct {
	ID          uint64  `json:"id"`
	VendorEmail string  `json:"vendor_email"`
	Title       string  `json:"title"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	DepartureAt string  `json:"departure_at"`
	PriceCents  uint32  `json:"price_cents"`
	Quantity    uint32  `json:"quantity"`
	ImageURL    *string `json:"image_url,omitempty"`
	Status      string  `json:"status"`
}

func toTicketResp(t *model.Ticket) ticketResp {
	return ticketResp{
		ID:          t.ID,
		VendorEmail: t.VendorEmail,
		Title:       t.Title,
		Origin:      t.Origin,
		Destination: t.Destination,
		DepartureAt: t.DepartureAt.UTC().Format(time.RFC3339),
		PriceCents:  t.PriceCents,
		Quantity:    t.Quantity,
		ImageURL:    t.ImageURL,
		Status:      t.Status,
	}
}

func (h *TicketHandler) bindTicket(c echo.Context) (*model.Ticket, error) {
	var req ticketReq
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return nil, err
	}
	dep, err := time.Parse(time.RFC3339, req.DepartureAt)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid departure_at format")
	}
	return &model.Ticket{
		Title:       req.Title,
		Origin:      req.Origin,
		Destination: req.Destination,
		DepartureAt: dep.UTC(),
		PriceCents:  req.PriceCents,
		Quantity:    req.Quantity,
		ImageURL:    req.ImageURL,
	}, nil
}

// ListPublic handles GET /v1/tickets: approved tickets only, with an
// optional ?destination= filter. Sits behind the response cache.
func (h *TicketHandler) ListPublic(c echo.Context) error {
	tickets, err := h.Tickets.ListApproved(c.Request().Context(), c.QueryParam("destination"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tickets"})
	}
	items := make([]ticketResp, 0, len(tickets))
	for i := range tickets {
		items = append(items, toTicketResp(&tickets[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/tickets/:id for a single approved ticket.
func (h *TicketHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.Tickets.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load ticket"})
	}
	if t.Status != model.TicketStatusApproved {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toTicketResp(t)})
}

// Create handles POST /v1/vendor/tickets. New listings start in
// pending moderation state.
func (h *TicketHandler) Create(c echo.Context) error {
	id := identity(c)
	if aerr := auth.Check(id, auth.RequireRole(auth.RoleVendor)); aerr != nil {
		return denied(c, aerr)
	}
	t, err := h.bindTicket(c)
	if err != nil {
		return err
	}
	t.VendorEmail = id.Email
	if err := h.Tickets.Create(c.Request().Context(), t); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create ticket"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": toTicketResp(t)})
}

// ListMine handles GET /v1/vendor/tickets: every listing of the
// calling vendor, any moderation state.
func (h *TicketHandler) ListMine(c echo.Context) error {
	id := identity(c)
	if aerr := auth.Check(id, auth.RequireRole(auth.RoleVendor)); aerr != nil {
		return denied(c, aerr)
	}
	tickets, err := h.Tickets.ListByVendor(c.Request().Context(), id.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tickets"})
	}
	items := make([]ticketResp, 0, len(tickets))
	for i := range tickets {
		items = append(items, toTicketResp(&tickets[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Update handles PUT /v1/vendor/tickets/:id. Edits send the listing
// back to pending moderation.
func (h *TicketHandler) Update(c echo.Context) error {
	id := identity(c)
	if aerr := auth.Check(id, auth.RequireRole(auth.RoleVendor)); aerr != nil {
		return denied(c, aerr)
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.bindTicket(c)
	if err != nil {
		return err
	}
	t.ID = ticketID
	if err := h.Tickets.Update(c.Request().Context(), t, id.Email); err != nil {
		switch {
		case errors.Is(err, repository.ErrTicketNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update ticket"})
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": ticketID})
}

// Delete handles DELETE /v1/vendor/tickets/:id.
func (h *TicketHandler) Delete(c echo.Context) error {
	id := identity(c)
	if aerr := auth.Check(id, auth.RequireRole(auth.RoleVendor)); aerr != nil {
		return denied(c, aerr)
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Tickets.Delete(c.Request().Context(), ticketID, id.Email); err != nil {
		switch {
		case errors.Is(err, repository.ErrTicketNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not delete ticket"})
	}
	return c.NoContent(http.StatusNoContent)
}

type moderateReq struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

// Moderate handles PATCH /v1/admin/tickets/:id/status: admin approves
// or rejects a listing.
func (h *TicketHandler) Moderate(c echo.Context) error {
	id := identity(c)
	if aerr := auth.Check(id, auth.RequireRole(auth.RoleAdmin)); aerr != nil {
		return denied(c, aerr)
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req moderateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.Tickets.SetStatus(c.Request().Context(), ticketID, req.Status); err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update status"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": ticketID, "status": req.Status})
}
