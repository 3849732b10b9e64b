// Package payment wraps the Stripe Checkout API behind a small client
// the rest of the application consumes. Sessions are owned by the
// provider and read-only to this system.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
)

// ErrSessionNotFound is returned when the provider does not know the
// supplied session reference.
var ErrSessionNotFound = errors.New("checkout session not found")

// ErrProviderUnavailable is returned when the provider cannot be
// reached or answers with a transient failure, including retrieval
// timeouts. Paid status is never assumed on timeout; the caller may
// retry the whole confirmation.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// Metadata keys attached to checkout sessions at creation time and
// read back during reconciliation.
const (
	MetaBookingID      = "bookingId"
	MetaTicketID       = "ticketId"
	MetaUserEmail      = "userEmail"
	MetaVendorEmail    = "vendorEmail"
	MetaTicketQuantity = "ticketQuantity"
	MetaTicketTitle    = "ticketTitle"
)

// Session is the subset of a provider checkout session that
// reconciliation needs. TransactionID is the provider-assigned payment
// identifier and the idempotency key for settlement.
type Session struct {
	ID            string
	TransactionID string
	PaymentStatus string
	AmountTotal   int64 // minor currency units
	CustomerEmail string
	Metadata      map[string]string
}

// Paid reports whether the checkout completed successfully.
func (s *Session) Paid() bool {
	return s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

// CheckoutInput describes the session to create for a pending booking.
type CheckoutInput struct {
	BookingID      uint64
	TicketID       uint64
	TicketTitle    string
	UserEmail      string
	VendorEmail    string
	Quantity       uint32
	UnitPriceCents uint32
	SuccessURL     string
	CancelURL      string
}

// Client talks to Stripe Checkout. Every call is bounded by the
// configured timeout.
type Client struct {
	timeout time.Duration
}

// NewClient configures the Stripe SDK with the secret key and returns
// a client whose calls time out after the given duration.
func NewClient(secretKey string, timeout time.Duration) *Client {
	stripe.Key = secretKey
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{timeout: timeout}
}

// RetrieveSession fetches a checkout session by its opaque reference.
// Unknown references map to ErrSessionNotFound; every other failure,
// including timeouts, maps to ErrProviderUnavailable.
func (c *Client) RetrieveSession(ctx context.Context, sessionRef string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(sessionRef, params)
	if err != nil {
		return nil, mapStripeError(err)
	}

	out := &Session{
		ID:            sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Metadata:      sess.Metadata,
	}
	if sess.PaymentIntent != nil {
		out.TransactionID = sess.PaymentIntent.ID
	}
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		out.CustomerEmail = sess.CustomerDetails.Email
	} else {
		out.CustomerEmail = sess.CustomerEmail
	}
	return out, nil
}

// CreateCheckoutSession opens a payment-mode checkout session for a
// pending booking and stamps the booking metadata onto it so the
// confirmation flow can settle without extra lookups.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(in.SuccessURL),
		CancelURL:     stripe.String(in.CancelURL),
		CustomerEmail: stripe.String(in.UserEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(int64(in.UnitPriceCents)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.TicketTitle),
					},
				},
				Quantity: stripe.Int64(int64(in.Quantity)),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetaBookingID, fmt.Sprintf("%d", in.BookingID))
	params.AddMetadata(MetaTicketID, fmt.Sprintf("%d", in.TicketID))
	params.AddMetadata(MetaUserEmail, in.UserEmail)
	params.AddMetadata(MetaVendorEmail, in.VendorEmail)
	params.AddMetadata(MetaTicketQuantity, fmt.Sprintf("%d", in.Quantity))
	params.AddMetadata(MetaTicketTitle, in.TicketTitle)

	sess, err := session.New(params)
	if err != nil {
		return "", "", mapStripeError(err)
	}
	return sess.ID, sess.URL, nil
}

// mapStripeError translates SDK failures into the package sentinels
// while keeping the original message for logs.
func mapStripeError(err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		if sErr.HTTPStatusCode == 404 || sErr.Code == stripe.ErrorCodeResourceMissing {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sErr.Code)
		}
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
