package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/pms-auth-service/internal/handler"
    "github.com/iliyamo/pms-auth-service/internal/middleware"
)

// RegisterAdmin mounts /api/admin behind the x-admin-key guard. With an
// empty key the group is open.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, adminKey string) {
    g := e.Group("/api/admin", middleware.AdminKey(adminKey))
    g.POST("/set-role", a.SetRole)
    g.POST("/delete-user", a.DeleteUser)
}
