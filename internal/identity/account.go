// Package identity is the account authority: it owns credentials, custom
// claims and sessions. Callers address accounts by an opaque uid or by
// email and never touch the underlying tables directly.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")
	ErrInvalidToken       = errors.New("invalid token")
)

// ClaimAdmin is the boolean custom claim consulted by admin-only checks.
const ClaimAdmin = "admin"

// Account is the identity-provider view of a user.
type Account struct {
	UID              string
	Email            string
	DisplayName      string
	Disabled         bool
	Claims           map[string]any
	TokensValidAfter time.Time // sessions issued before this instant are dead
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsAdmin reports the admin custom claim.
func (a Account) IsAdmin() bool {
	v, _ := a.Claims[ClaimAdmin].(bool)
	return v
}

// NewAccount carries the fields accepted by CreateUser.
type NewAccount struct {
	Email       string
	Password    string
	DisplayName string
	Claims      map[string]any
}

// Provider is the set of account operations the rest of the service relies on.
type Provider interface {
	GetUser(ctx context.Context, uid string) (Account, error)
	GetUserByEmail(ctx context.Context, email string) (Account, error)
	CreateUser(ctx context.Context, in NewAccount) (Account, error)
	DeleteUser(ctx context.Context, uid string) error
	SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error
	RevokeSessions(ctx context.Context, uid string) error
}
