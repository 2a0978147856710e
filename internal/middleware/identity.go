package middleware

// identity.go holds the context keys JWTAuth fills in and accessors for
// handlers and other middleware.

import "github.com/labstack/echo/v4"

const (
    ctxUID   = "user_id"
    ctxEmail = "email"
    ctxAdmin = "admin"
)

// UID returns the authenticated account id, or "" when the request carried
// no valid bearer token.
func UID(c echo.Context) string {
    s, _ := c.Get(ctxUID).(string)
    return s
}

// Email returns the email asserted by the access token.
func Email(c echo.Context) string {
    s, _ := c.Get(ctxEmail).(string)
    return s
}

// IsAdmin reports the admin claim of the access token.
func IsAdmin(c echo.Context) bool {
    b, _ := c.Get(ctxAdmin).(bool)
    return b
}

// userID is the rate limiter's view of the caller.
func userID(c echo.Context) string {
    if uid := UID(c); uid != "" {
        return uid
    }
    return "anon"
}
