package middleware

import (
    "context"
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/pms-auth-service/internal/identity"
)

// Authorizer checks a raw access token. identity.Sessions implements it.
type Authorizer interface {
    Authorize(ctx context.Context, raw string) (identity.AccessClaims, error)
}

// JWTAuth validates a Bearer access token and stores its subject, email and
// admin claim in the context. Tokens minted before the account's sessions
// were revoked are rejected, so a role change takes effect immediately.
func JWTAuth(auth Authorizer) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            h := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(h, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false, "error": "missing bearer token"})
            }
            raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))

            claims, err := auth.Authorize(c.Request().Context(), raw)
            if err != nil {
                if errors.Is(err, identity.ErrInvalidToken) {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false, "error": "invalid token"})
                }
                return c.JSON(http.StatusInternalServerError, echo.Map{"ok": false, "error": "token check failed"})
            }

            c.Set(ctxUID, claims.UID)
            c.Set(ctxEmail, claims.Email)
            c.Set(ctxAdmin, claims.Admin)
            return next(c)
        }
    }
}
