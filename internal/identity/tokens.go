package identity // tokens.go creates and parses session tokens

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA‑256 hashing for refresh tokens
    "encoding/hex"  // hex encoding
    "errors"        // error matching for jwt validation errors
    "time"          // expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken is a signed JWT plus its expiry.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// RefreshToken is the raw value handed to the client; only its hash is stored.
type RefreshToken struct {
    Raw string
    Exp time.Time
}

// AccessClaims is what a verified access token asserts about its bearer.
type AccessClaims struct {
    UID      string
    Email    string
    Admin    bool
    IssuedAt time.Time
}

// NewAccessToken signs an HS256 JWT carrying sub, email and the admin
// custom claim.  A role change only shows up in tokens minted after it,
// which is why role changes revoke sessions.
func NewAccessToken(secret string, a Account, ttl time.Duration, now time.Time) (AccessToken, error) {
    exp := now.UTC().Add(ttl)
    claims := jwt.MapClaims{
        "sub":      a.UID,
        "email":    a.Email,
        ClaimAdmin: a.IsAdmin(),
        "exp":      exp.Unix(),
        "iat":      now.UTC().Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken validates signature, algorithm and expiry.
func ParseAccessToken(secret, raw string) (AccessClaims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        if errors.Is(err, jwt.ErrTokenExpired) {
            return AccessClaims{}, errors.Join(ErrInvalidToken, jwt.ErrTokenExpired)
        }
        return AccessClaims{}, ErrInvalidToken
    }
    mc, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return AccessClaims{}, ErrInvalidToken
    }
    sub, _ := mc["sub"].(string)
    if sub == "" {
        return AccessClaims{}, ErrInvalidToken
    }
    out := AccessClaims{UID: sub}
    out.Email, _ = mc["email"].(string)
    out.Admin, _ = mc[ClaimAdmin].(bool)
    if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
        out.IssuedAt = iat.Time
    }
    return out, nil
}

// NewRefreshToken returns 48 random bytes hex-encoded and their expiry.
func NewRefreshToken(ttl time.Duration, now time.Time) (RefreshToken, error) {
    buf := make([]byte, 48)
    if _, err := rand.Read(buf); err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{Raw: hex.EncodeToString(buf), Exp: now.UTC().Add(ttl)}, nil
}

// HashRefreshRaw returns the SHA‑256 hex digest stored in refresh_tokens.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}
