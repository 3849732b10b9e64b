package model

import "time"

// User represents an application user record as stored in the `users`
// table. The role determines which part of the marketplace the account
// can operate: USER accounts browse and book tickets, VENDOR accounts
// list tickets and manage bookings placed against them, and ADMIN
// accounts moderate listings.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address; bookings and ledger entries
//                 reference users by this value.
//  PasswordHash – bcrypt hashed password.
//  Role         – USER, VENDOR or ADMIN.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. Each
// refresh token belongs to a user and carries expiry and revocation
// metadata. The plain token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
