package handler

import (
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/pms-auth-service/internal/identity"
    "github.com/iliyamo/pms-auth-service/internal/logging"
    "github.com/iliyamo/pms-auth-service/internal/middleware"
)

// AuthHandler serves password sessions for accounts created through the
// code flows.
type AuthHandler struct {
    Sessions *identity.Sessions
    Users    identity.Provider
    Log      logging.Logger
}

func NewAuthHandler(s *identity.Sessions, users identity.Provider, log logging.Logger) *AuthHandler {
    return &AuthHandler{Sessions: s, Users: users, Log: log}
}

type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}

type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

type userPart struct {
    UID     string `json:"uid"`
    Email   string `json:"email"`
    IsAdmin bool   `json:"isAdmin"`
}

type authResp struct {
    OK      bool      `json:"ok"`
    User    userPart  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

func sessionResp(s identity.Session) authResp {
    return authResp{
        OK:      true,
        User:    userPart{UID: s.Account.UID, Email: s.Account.Email, IsAdmin: s.Account.IsAdmin()},
        Access:  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
        Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp},
    }
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid body")
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    if req.Email == "" || req.Password == "" {
        return fail(c, http.StatusBadRequest, "email/password required")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    s, err := h.Sessions.Login(ctx, req.Email, req.Password)
    switch {
    case err == nil:
        return c.JSON(http.StatusOK, sessionResp(s))
    case errors.Is(err, identity.ErrInvalidCredentials):
        return fail(c, http.StatusUnauthorized, "invalid credentials")
    case errors.Is(err, identity.ErrUserDisabled):
        return fail(c, http.StatusForbidden, "account disabled")
    }
    h.Log.Error(ctx, "login failed", "email", req.Email, "err", err)
    return fail(c, http.StatusInternalServerError, "login failed")
}

// Refresh: validate by hash, revoke the old token, issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return fail(c, http.StatusBadRequest, "refresh_token required")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    s, err := h.Sessions.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
    switch {
    case err == nil:
        return c.JSON(http.StatusOK, sessionResp(s))
    case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrUserDisabled):
        return fail(c, http.StatusUnauthorized, "invalid refresh")
    }
    h.Log.Error(ctx, "refresh failed", "err", err)
    return fail(c, http.StatusInternalServerError, "refresh failed")
}

// Logout revokes the given refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return fail(c, http.StatusBadRequest, "refresh_token required")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Sessions.Logout(ctx, strings.TrimSpace(req.RefreshToken)); err != nil {
        if errors.Is(err, identity.ErrInvalidToken) {
            return fail(c, http.StatusUnauthorized, "invalid refresh token")
        }
        h.Log.Error(ctx, "logout failed", "err", err)
        return fail(c, http.StatusInternalServerError, "logout failed")
    }
    return c.NoContent(http.StatusNoContent)
}

// Me returns the account behind the bearer token. JWTAuth runs first.
func (h *AuthHandler) Me(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()

    a, err := h.Users.GetUser(ctx, middleware.UID(c))
    if err != nil {
        if errors.Is(err, identity.ErrUserNotFound) {
            return fail(c, http.StatusUnauthorized, "invalid token")
        }
        h.Log.Error(ctx, "me: load account failed", "err", err)
        return fail(c, http.StatusInternalServerError, "load user failed")
    }
    return c.JSON(http.StatusOK, echo.Map{
        "ok":          true,
        "uid":         a.UID,
        "email":       a.Email,
        "displayName": a.DisplayName,
        "isAdmin":     a.IsAdmin(),
    })
}
