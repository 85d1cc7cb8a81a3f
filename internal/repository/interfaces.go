// Package repository defines the persistence interfaces the registry can
// write through to. Both stores are optional; the registry runs fully
// in-memory when they are nil.
package repository

import "context"

// UserRecord is the durable shape of a registered user.
type UserRecord struct {
	Username     string
	PasswordHash string
	IsAdmin      bool
}

// UserStore persists registered users across restarts.
type UserStore interface {
	// Load returns every stored user.
	Load(ctx context.Context) ([]UserRecord, error)
	// Save creates or replaces a user record.
	Save(ctx context.Context, u UserRecord) error
	// Delete removes a user record. Deleting an absent user is not an error.
	Delete(ctx context.Context, username string) error
}

// RevocationStore persists revoked token IDs across restarts.
type RevocationStore interface {
	// Load returns every revoked token ID.
	Load(ctx context.Context) ([]string, error)
	// Revoke records a token ID as revoked.
	Revoke(ctx context.Context, tokenID string) error
	// IsRevoked reports whether the token ID has been revoked.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
