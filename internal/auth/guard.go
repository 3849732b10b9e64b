// Package auth holds the caller identity extracted from access tokens
// and the composable guard predicates handlers evaluate before acting.
// Guards replace role-check middleware chains: each is an explicit
// function returning a typed failure, so authorization decisions are
// visible at the call site instead of hidden in route wiring.
package auth

import "fmt"

// Roles known to the marketplace.
const (
	RoleUser   = "USER"
	RoleVendor = "VENDOR"
	RoleAdmin  = "ADMIN"
)

// Identity is the verified caller: populated by the JWT middleware and
// consumed by guards and handlers.
type Identity struct {
	UserID uint64
	Email  string
	Role   string
}

// Error is a typed authorization failure. Reason distinguishes a
// missing identity from an insufficient one so handlers can answer 401
// versus 403.
type Error struct {
	Reason string // "unauthenticated" or "forbidden"
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("authorization failed (%s): %s", e.Reason, e.Detail)
}

// Unauthenticated reports whether the failure means no valid identity
// was presented at all.
func (e *Error) Unauthenticated() bool { return e.Reason == "unauthenticated" }

// Guard is a predicate over the caller identity. A nil return grants
// access.
type Guard func(Identity) *Error

// Check evaluates guards in order and returns the first failure. An
// identity with no user ID fails immediately as unauthenticated.
func Check(id Identity, guards ...Guard) *Error {
	if id.UserID == 0 {
		return &Error{Reason: "unauthenticated", Detail: "no verified identity"}
	}
	for _, g := range guards {
		if err := g(id); err != nil {
			return err
		}
	}
	return nil
}

// RequireRole grants access when the identity holds any of the given
// roles.
func RequireRole(roles ...string) Guard {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(id Identity) *Error {
		if !allowed[id.Role] {
			return &Error{Reason: "forbidden", Detail: "role " + id.Role + " not permitted"}
		}
		return nil
	}
}

// RequireEmail grants access when the identity's email matches the
// resource owner's, used for vendor- and user-owned resources.
func RequireEmail(email string) Guard {
	return func(id Identity) *Error {
		if id.Email != email {
			return &Error{Reason: "forbidden", Detail: "resource owned by another account"}
		}
		return nil
	}
}
