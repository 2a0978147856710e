package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/pms-auth-service/internal/handler"
)

// RegisterCodes mounts both verification code flows. Routes that send mail
// or create accounts go through limit.
func RegisterCodes(e *echo.Echo, otp, signup *handler.CodeHandler, limit echo.MiddlewareFunc) {
    e.POST("/send-otp", otp.Send, limit)
    e.POST("/verify-otp", otp.Verify)
    e.POST("/api/auth/signup-with-otp", otp.SignupWithCode, limit)

    api := e.Group("/api")
    api.POST("/generate-auth-code", signup.Send, limit)
    api.POST("/verify-auth-code", signup.Verify)
}
