package identity

import (
	"context"
	"errors"
	"time"
)

// SessionStore is the persistence needed to run password sessions.
// MySQLProvider implements it.
type SessionStore interface {
	GetUser(ctx context.Context, uid string) (Account, error)
	Authenticate(ctx context.Context, email, password string) (Account, error)
	StoreRefresh(ctx context.Context, uid, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeRefresh(ctx context.Context, tokenHash string) error
}

// Session is a freshly minted access/refresh pair.
type Session struct {
	Account Account
	Access  AccessToken
	Refresh RefreshToken
}

// Sessions issues and checks tokens for accounts.
type Sessions struct {
	store      SessionStore
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewSessions(store SessionStore, secret string, accessTTL, refreshTTL time.Duration) *Sessions {
	return &Sessions{store: store, secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// Login verifies credentials and returns a new session.
func (s *Sessions) Login(ctx context.Context, email, password string) (Session, error) {
	a, err := s.store.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, a)
}

// Refresh rotates a refresh token. Revoked, expired or unknown tokens fail
// with ErrInvalidToken.
func (s *Sessions) Refresh(ctx context.Context, raw string) (Session, error) {
	hash := HashRefreshRaw(raw)
	uid, err := s.store.ValidateRefresh(ctx, hash)
	if err != nil {
		return Session{}, err
	}
	// The conditional revoke is the rotation point: a concurrent replay of
	// the same token loses here and never gets a new pair.
	if err := s.store.RevokeRefresh(ctx, hash); err != nil {
		return Session{}, err
	}
	a, err := s.store.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, err
	}
	if a.Disabled {
		return Session{}, ErrUserDisabled
	}
	return s.issue(ctx, a)
}

// Logout revokes a single refresh token.
func (s *Sessions) Logout(ctx context.Context, raw string) error {
	hash := HashRefreshRaw(raw)
	if _, err := s.store.ValidateRefresh(ctx, hash); err != nil {
		return err
	}
	return s.store.RevokeRefresh(ctx, hash)
}

// Authorize parses an access token and rejects it when the account is gone
// or its sessions were revoked after the token was issued.
func (s *Sessions) Authorize(ctx context.Context, raw string) (AccessClaims, error) {
	claims, err := ParseAccessToken(s.secret, raw)
	if err != nil {
		return AccessClaims{}, err
	}
	a, err := s.store.GetUser(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AccessClaims{}, ErrInvalidToken
		}
		return AccessClaims{}, err
	}
	if a.Disabled || claims.IssuedAt.Before(a.TokensValidAfter.Truncate(time.Second)) {
		return AccessClaims{}, ErrInvalidToken
	}
	return claims, nil
}

func (s *Sessions) issue(ctx context.Context, a Account) (Session, error) {
	now := s.now()
	access, err := NewAccessToken(s.secret, a, s.accessTTL, now)
	if err != nil {
		return Session{}, err
	}
	refresh, err := NewRefreshToken(s.refreshTTL, now)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.StoreRefresh(ctx, a.UID, HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, err
	}
	return Session{Account: a, Access: access, Refresh: refresh}, nil
}
