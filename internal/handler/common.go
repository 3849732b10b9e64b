package handler

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/ticketry/backend/internal/auth"
	mw "github.com/ticketry/backend/internal/middleware"
)

// Validator adapts go-playground/validator to Echo's Validator
// interface so handlers can declare constraints on request DTOs with
// struct tags.
type Validator struct{ v *validator.Validate }

func NewValidator() *Validator { return &Validator{v: validator.New()} }

func (va *Validator) Validate(i interface{}) error {
	if err := va.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// identity returns the verified caller stored by the JWT middleware.
func identity(c echo.Context) auth.Identity {
	return mw.IdentityFrom(c)
}

// denied writes the HTTP response for a typed authorization failure:
// 401 when no valid identity was presented, 403 otherwise.
func denied(c echo.Context, aerr *auth.Error) error {
	if aerr.Unauthenticated() {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
