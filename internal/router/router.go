package router

import (
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/pms-auth-service/internal/handler"
    "github.com/iliyamo/pms-auth-service/internal/logging"
    "github.com/iliyamo/pms-auth-service/internal/middleware"
)

// Setup installs the middleware every route shares: panic recovery, open
// CORS for the browser clients, and one structured log line per request.
func Setup(e *echo.Echo, log logging.Logger) {
    e.HideBanner = true
    e.Use(echomw.Recover())
    e.Use(echomw.CORS())
    e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogMethod:   true,
        LogURIPath:  true,
        LogStatus:   true,
        LogLatency:  true,
        LogRemoteIP: true,
        LogError:    true,
        HandleError: true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            args := []any{"method", v.Method, "path", v.URIPath, "status", v.Status, "latency", v.Latency, "ip", v.RemoteIP}
            if v.Error != nil {
                log.Warn(c.Request().Context(), "request", append(args, "err", v.Error)...)
                return nil
            }
            log.Info(c.Request().Context(), "request", args...)
            return nil
        },
    }))
}

// RegisterRoutes registers routes that need no authentication of any kind.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/health", handler.Health)
}

// RegisterAuth registers the password session endpoints. limit guards the
// credential check; me requires a bearer token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, auth middleware.Authorizer, limit echo.MiddlewareFunc) {
    g := e.Group("/api/auth")
    g.POST("/login", a.Login, limit)
    g.POST("/refresh", a.Refresh)
    g.POST("/logout", a.Logout)
    g.GET("/me", a.Me, middleware.JWTAuth(auth))
}
