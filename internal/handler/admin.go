package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/pms-auth-service/internal/logging"
    "github.com/iliyamo/pms-auth-service/internal/service"
)

// AdminHandler serves /api/admin. The x-admin-key guard sits in front of it.
type AdminHandler struct {
    Accounts *service.AccountService
    Log      logging.Logger
}

func NewAdminHandler(accounts *service.AccountService, log logging.Logger) *AdminHandler {
    return &AdminHandler{Accounts: accounts, Log: log}
}

type targetReq struct {
    UID   string `json:"uid"`
    Email string `json:"email"`
    Role  string `json:"role"`
}

// SetRole promotes or demotes an account.
func (h *AdminHandler) SetRole(c echo.Context) error {
    var req targetReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid body")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    a, role, err := h.Accounts.SetRole(ctx, req.UID, req.Email, req.Role)
    if err != nil {
        code, msg := adminStatus(err)
        if code == http.StatusInternalServerError {
            h.Log.Error(ctx, "set-role failed", "uid", a.UID, "err", err)
        }
        return fail(c, code, msg)
    }
    h.Log.Info(ctx, "role changed", "uid", a.UID, "role", role)
    return c.JSON(http.StatusOK, echo.Map{"ok": true, "uid": a.UID, "role": role})
}

// DeleteUser removes an account and its profile documents.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
    var req targetReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid body")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    a, err := h.Accounts.DeleteUser(ctx, req.UID, req.Email)
    if err != nil {
        code, msg := adminStatus(err)
        if code == http.StatusInternalServerError {
            h.Log.Error(ctx, "delete-user failed", "uid", a.UID, "err", err)
        }
        return fail(c, code, msg)
    }
    h.Log.Info(ctx, "account deleted", "uid", a.UID)
    return c.JSON(http.StatusOK, echo.Map{"ok": true, "uid": a.UID})
}
