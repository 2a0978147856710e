package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSessions struct {
	accounts map[string]Account
	password map[string]string
	refresh  map[string]string // hash -> uid
}

func newMemSessions() *memSessions {
	return &memSessions{accounts: map[string]Account{}, password: map[string]string{}, refresh: map[string]string{}}
}

func (m *memSessions) GetUser(_ context.Context, uid string) (Account, error) {
	a, ok := m.accounts[uid]
	if !ok {
		return Account{}, ErrUserNotFound
	}
	return a, nil
}

func (m *memSessions) Authenticate(_ context.Context, email, password string) (Account, error) {
	for _, a := range m.accounts {
		if a.Email == email && m.password[a.UID] == password {
			return a, nil
		}
	}
	return Account{}, ErrInvalidCredentials
}

func (m *memSessions) StoreRefresh(_ context.Context, uid, hash string, _ time.Time) error {
	m.refresh[hash] = uid
	return nil
}

func (m *memSessions) ValidateRefresh(_ context.Context, hash string) (string, error) {
	uid, ok := m.refresh[hash]
	if !ok {
		return "", ErrInvalidToken
	}
	return uid, nil
}

func (m *memSessions) RevokeRefresh(_ context.Context, hash string) error {
	if _, ok := m.refresh[hash]; !ok {
		return ErrInvalidToken
	}
	delete(m.refresh, hash)
	return nil
}

// replayedSessions lets a concurrent refresh win between validate and revoke.
type replayedSessions struct {
	*memSessions
}

func (r replayedSessions) ValidateRefresh(ctx context.Context, hash string) (string, error) {
	uid, err := r.memSessions.ValidateRefresh(ctx, hash)
	if err == nil {
		delete(r.refresh, hash)
	}
	return uid, err
}

func TestSessions_LoginRefreshAuthorize(t *testing.T) {
	store := newMemSessions()
	store.accounts["u1"] = Account{UID: "u1", Email: "a@x.com", Claims: map[string]any{"admin": true}}
	store.password["u1"] = "pw"
	s := NewSessions(store, "secret", time.Minute, time.Hour)
	ctx := context.Background()

	sess, err := s.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	claims, err := s.Authorize(ctx, sess.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UID)
	assert.True(t, claims.Admin)

	next, err := s.Refresh(ctx, sess.Refresh.Raw)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Refresh.Raw, next.Refresh.Raw)

	_, err = s.Refresh(ctx, sess.Refresh.Raw)
	assert.ErrorIs(t, err, ErrInvalidToken, "rotated token must not be reusable")
}

func TestSessions_AuthorizeRejectsRevokedTokens(t *testing.T) {
	store := newMemSessions()
	store.accounts["u1"] = Account{UID: "u1", Email: "a@x.com"}
	store.password["u1"] = "pw"
	s := NewSessions(store, "secret", time.Hour, time.Hour)
	issued := time.Now().UTC().Truncate(time.Second)
	s.now = func() time.Time { return issued }
	ctx := context.Background()

	sess, err := s.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	a := store.accounts["u1"]
	a.TokensValidAfter = issued.Add(time.Minute)
	store.accounts["u1"] = a

	_, err = ParseAccessToken("secret", sess.Access.Token)
	require.NoError(t, err, "token itself is still well-formed")
	_, err = s.Authorize(ctx, sess.Access.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessToken_WrongSecretAndExpiry(t *testing.T) {
	a := Account{UID: "u1", Email: "a@x.com"}

	tok, err := NewAccessToken("right", a, time.Hour, time.Now())
	require.NoError(t, err)
	_, err = ParseAccessToken("wrong", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewAccessToken("right", a, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseAccessToken("right", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashRefreshRaw_Stable(t *testing.T) {
	assert.Equal(t, HashRefreshRaw("abc"), HashRefreshRaw("abc"))
	assert.Len(t, HashRefreshRaw("abc"), 64)
}

func TestSessions_Logout(t *testing.T) {
	store := newMemSessions()
	store.accounts["u1"] = Account{UID: "u1", Email: "a@x.com"}
	store.password["u1"] = "pw"
	s := NewSessions(store, "secret", time.Minute, time.Hour)
	ctx := context.Background()

	sess, err := s.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx, sess.Refresh.Raw))
	assert.ErrorIs(t, s.Logout(ctx, sess.Refresh.Raw), ErrInvalidToken)
	_, err = s.Refresh(ctx, sess.Refresh.Raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessions_RefreshReplayLosesRace(t *testing.T) {
	mem := newMemSessions()
	mem.accounts["u1"] = Account{UID: "u1", Email: "a@x.com"}
	mem.password["u1"] = "pw"
	ctx := context.Background()

	sess, err := NewSessions(mem, "secret", time.Minute, time.Hour).Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	require.Len(t, mem.refresh, 1)

	s := NewSessions(replayedSessions{mem}, "secret", time.Minute, time.Hour)
	_, err = s.Refresh(ctx, sess.Refresh.Raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Empty(t, mem.refresh, "loser must not be issued a new refresh token")
}
