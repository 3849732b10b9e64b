// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ticketry/backend/internal/config"
	"github.com/ticketry/backend/internal/handler"
	"github.com/ticketry/backend/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Public ticket browsing sits behind the Redis response cache; when the
// cache is disabled or Redis is down the middleware passes through.
func RegisterRoutes(e *echo.Echo, t *handler.TicketHandler, rdb *redis.Client) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	cache := middleware.ResponseCache(config.LoadCacheConfig(), rdb)
	e.GET("/v1/tickets", t.ListPublic, cache)
	e.GET("/v1/tickets/:id", t.Get, cache)
}

// RegisterAuth registers authentication routes. Unauthenticated token
// operations live under /v1/auth; /v1/me requires a valid access token.
// JWTAuth only establishes the caller's identity — role checks happen
// inside handlers through the auth guards.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterTickets registers vendor ticket management and admin
// moderation. All routes require authentication; the handlers enforce
// the VENDOR and ADMIN roles themselves.
func RegisterTickets(e *echo.Echo, t *handler.TicketHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.POST("/vendor/tickets", t.Create)
	g.GET("/vendor/tickets", t.ListMine)
	g.PUT("/vendor/tickets/:id", t.Update)
	g.DELETE("/vendor/tickets/:id", t.Delete)
	g.PATCH("/admin/tickets/:id/status", t.Moderate)
}

// RegisterBookings registers booking creation and the user/vendor
// booking views.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.POST("/bookings", b.Create)
	g.GET("/bookings", b.ListMine)
	g.GET("/vendor/bookings", b.ListForVendor)
	g.PATCH("/vendor/bookings/:id/status", b.UpdateStatus)
}

// RegisterPayments registers checkout and confirmation. The confirm
// endpoint is deliberately unauthenticated: the provider redirect that
// calls it carries no bearer token, and the opaque session reference is
// the capability. It is rate limited instead, since each call costs a
// provider API round trip.
func RegisterPayments(e *echo.Echo, p *handler.PaymentHandler, rdb *redis.Client, jwtSecret string) {
	limit := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)
	e.GET("/v1/payments/confirm", p.Confirm, limit)

	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.POST("/payments/checkout/:bookingId", p.CreateCheckout)
	g.GET("/payments", p.History)
	g.GET("/vendor/revenue", p.VendorRevenue)
}
