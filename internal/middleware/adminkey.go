package middleware

import (
    "crypto/subtle"
    "net/http"

    "github.com/labstack/echo/v4"
)

// AdminKeyHeader carries the shared secret for the admin endpoints.
const AdminKeyHeader = "x-admin-key"

// AdminKey rejects requests whose x-admin-key header does not match key.
// An empty key disables the check.
func AdminKey(key string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        if key == "" {
            return next
        }
        want := []byte(key)
        return func(c echo.Context) error {
            got := []byte(c.Request().Header.Get(AdminKeyHeader))
            if subtle.ConstantTimeCompare(got, want) != 1 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false, "error": "Unauthorized"})
            }
            return next(c)
        }
    }
}
