package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MySQLProvider stores accounts in the 'accounts' table and refresh tokens
// in 'refresh_tokens' (hash only, never the raw value).
type MySQLProvider struct {
	DB         *sql.DB
	BcryptCost int
}

func NewMySQLProvider(db *sql.DB, bcryptCost int) *MySQLProvider {
	return &MySQLProvider{DB: db, BcryptCost: bcryptCost}
}

const accountColumns = "uid,email,display_name,disabled,custom_claims,tokens_valid_after,created_at,updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, extra ...any) (Account, error) {
	var (
		a          Account
		claims     []byte
		validAfter sql.NullTime
	)
	dest := append([]any{&a.UID, &a.Email, &a.DisplayName, &a.Disabled, &claims, &validAfter, &a.CreatedAt, &a.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrUserNotFound
		}
		return Account{}, err
	}
	a.Claims = map[string]any{}
	if len(claims) > 0 {
		if err := json.Unmarshal(claims, &a.Claims); err != nil {
			return Account{}, err
		}
	}
	if validAfter.Valid {
		a.TokensValidAfter = validAfter.Time
	}
	return a, nil
}

// GetUser fetches an account by uid.
func (p *MySQLProvider) GetUser(ctx context.Context, uid string) (Account, error) {
	row := p.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE uid=? LIMIT 1", uid)
	return scanAccount(row)
}

// GetUserByEmail fetches an account by normalized email.
func (p *MySQLProvider) GetUserByEmail(ctx context.Context, email string) (Account, error) {
	row := p.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", normalizeEmail(email))
	return scanAccount(row)
}

// CreateUser inserts a new account with a random uid and a bcrypt hash of
// the password.
func (p *MySQLProvider) CreateUser(ctx context.Context, in NewAccount) (Account, error) {
	email := normalizeEmail(in.Email)
	hash, err := HashPassword(in.Password, p.BcryptCost)
	if err != nil {
		return Account{}, err
	}
	claims := in.Claims
	if claims == nil {
		claims = map[string]any{}
	}
	rawClaims, err := json.Marshal(claims)
	if err != nil {
		return Account{}, err
	}
	uid := uuid.NewString()
	_, err = p.DB.ExecContext(ctx,
		"INSERT INTO accounts (uid, email, password_hash, display_name, custom_claims) VALUES (?,?,?,?,?)",
		uid, email, hash, strings.TrimSpace(in.DisplayName), rawClaims)
	if err != nil {
		if isDuplicate(err) {
			return Account{}, ErrEmailExists
		}
		return Account{}, err
	}
	now := time.Now().UTC()
	return Account{
		UID:         uid,
		Email:       email,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Claims:      claims,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// DeleteUser removes an account; refresh tokens go with it (ON DELETE CASCADE).
func (p *MySQLProvider) DeleteUser(ctx context.Context, uid string) error {
	res, err := p.DB.ExecContext(ctx, "DELETE FROM accounts WHERE uid=?", uid)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// SetCustomClaims replaces the account's claim set.
func (p *MySQLProvider) SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error {
	if claims == nil {
		claims = map[string]any{}
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	res, err := p.DB.ExecContext(ctx,
		"UPDATE accounts SET custom_claims=?, updated_at=NOW() WHERE uid=?", raw, uid)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// RevokeSessions revokes every active refresh token of the account and
// moves tokens_valid_after forward so outstanding access tokens stop
// working as well.
func (p *MySQLProvider) RevokeSessions(ctx context.Context, uid string) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Bound from Go so the cutoff is UTC regardless of the session time_zone.
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"UPDATE accounts SET tokens_valid_after=? WHERE uid=?", now, uid)
	if err != nil {
		return err
	}
	if err := mustAffect(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE uid=? AND revoked_at IS NULL", now, uid); err != nil {
		return err
	}
	return tx.Commit()
}

// Authenticate checks an email/password pair.
func (p *MySQLProvider) Authenticate(ctx context.Context, email, password string) (Account, error) {
	var hash string
	row := p.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+",password_hash FROM accounts WHERE email=? LIMIT 1", normalizeEmail(email))
	a, err := scanAccount(row, &hash)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if !VerifyPassword(hash, password) {
		return Account{}, ErrInvalidCredentials
	}
	if a.Disabled {
		return Account{}, ErrUserDisabled
	}
	return a, nil
}

// StoreRefresh inserts a refresh token hash row.
func (p *MySQLProvider) StoreRefresh(ctx context.Context, uid, tokenHash string, exp time.Time) error {
	_, err := p.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (uid, token_hash, expires_at) VALUES (?,?,?)",
		uid, tokenHash, exp)
	return err
}

// ValidateRefresh returns the uid if a non-revoked, non-expired token exists.
func (p *MySQLProvider) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
	var (
		uid       string
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := p.DB.QueryRowContext(ctx,
		"SELECT uid, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&uid, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	if revokedAt.Valid || time.Now().UTC().After(expiresAt) {
		return "", ErrInvalidToken
	}
	return uid, nil
}

// RevokeRefresh marks a single token as revoked. Only one caller can win
// for a given token; the rest get ErrInvalidToken.
func (p *MySQLProvider) RevokeRefresh(ctx context.Context, tokenHash string) error {
	res, err := p.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		time.Now().UTC(), tokenHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidToken
	}
	return nil
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
