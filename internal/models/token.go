package models

import (
	"time"

	"github.com/google/uuid"
)

// Persisted refresh token
// Valid while not expired and not revoked
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time // nil if token not revoked
}

func (t RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued on login
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Decoded and verified access token payload
type AccessClaim struct {
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
}
