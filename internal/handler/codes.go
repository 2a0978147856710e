package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/pms-auth-service/internal/codestore"
    "github.com/iliyamo/pms-auth-service/internal/logging"
    "github.com/iliyamo/pms-auth-service/internal/service"
)

// CodeHandler serves one verification code flow. The OTP and the signup
// approval routes each get their own instance.
type CodeHandler struct {
    Flow *service.CodeFlow
    Log  logging.Logger
}

func NewCodeHandler(flow *service.CodeFlow, log logging.Logger) *CodeHandler {
    return &CodeHandler{Flow: flow, Log: log}
}

type sendReq struct {
    Email     string `json:"email"`
    Password  string `json:"password"`
    FirstName string `json:"firstName"`
    LastName  string `json:"lastName"`
}

// verifyReq accepts the code under either name used by the clients.
type verifyReq struct {
    Email string `json:"email"`
    OTP   string `json:"otp"`
    Code  string `json:"code"`
}

func (r verifyReq) code() string {
    if r.OTP != "" {
        return r.OTP
    }
    return r.Code
}

func reply(c echo.Context, code int, msg string) error {
    return c.JSON(code, echo.Map{"success": code == http.StatusOK, "message": msg})
}

// Send issues a code and mails it.
func (h *CodeHandler) Send(c echo.Context) error {
    msgs := h.Flow.Messages()
    var req sendReq
    if err := c.Bind(&req); err != nil {
        return reply(c, http.StatusBadRequest, msgs.MissingSend)
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    err := h.Flow.Issue(ctx, service.IssueRequest{
        Email:     req.Email,
        Password:  req.Password,
        FirstName: req.FirstName,
        LastName:  req.LastName,
    })
    switch {
    case err == nil:
        return reply(c, http.StatusOK, msgs.Sent)
    case errors.Is(err, service.ErrInvalidInput):
        return reply(c, http.StatusBadRequest, err.Error())
    default:
        h.Log.Error(ctx, "code issuance failed", "err", err)
        return reply(c, http.StatusInternalServerError, msgs.SendFailed)
    }
}

// Verify redeems a code. Every code failure is a 400 with its own message.
func (h *CodeHandler) Verify(c echo.Context) error {
    msgs := h.Flow.Messages()
    var req verifyReq
    if err := c.Bind(&req); err != nil {
        return reply(c, http.StatusBadRequest, msgs.MissingCode)
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Flow.Verify(ctx, req.Email, req.code()); err != nil {
        if msg, ok := codeFailure(msgs, err); ok {
            return reply(c, http.StatusBadRequest, msg)
        }
        h.Log.Error(ctx, "code verification failed", "err", err)
        return reply(c, http.StatusInternalServerError, "Internal Server Error")
    }
    return reply(c, http.StatusOK, msgs.Verified)
}

// codeFailure returns the message for a client-side code failure.
func codeFailure(msgs service.FlowMessages, err error) (string, bool) {
    switch {
    case errors.Is(err, service.ErrInvalidInput):
        return err.Error(), true
    case errors.Is(err, codestore.ErrNotFound):
        return msgs.NotFound, true
    case errors.Is(err, codestore.ErrExpired):
        return msgs.Expired, true
    case errors.Is(err, codestore.ErrMismatch):
        return msgs.Mismatch, true
    }
    return "", false
}

type signupReq struct {
    Email       string `json:"email"`
    Password    string `json:"password"`
    DisplayName string `json:"displayName"`
    OTP         string `json:"otp"`
    Code        string `json:"code"`
}

// SignupWithCode checks the code again and creates the account.
func (h *CodeHandler) SignupWithCode(c echo.Context) error {
    var req signupReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid body")
    }
    code := req.OTP
    if code == "" {
        code = req.Code
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    a, err := h.Flow.Register(ctx, service.RegisterRequest{
        Email:       req.Email,
        Password:    req.Password,
        DisplayName: req.DisplayName,
        Code:        code,
    })
    if err != nil {
        if msg, ok := codeFailure(h.Flow.Messages(), err); ok {
            return fail(c, http.StatusBadRequest, msg)
        }
        if errors.Is(err, service.ErrConflict) {
            return fail(c, http.StatusConflict, "An account with this email already exists.")
        }
        h.Log.Error(ctx, "signup failed", "err", err)
        return fail(c, http.StatusInternalServerError, "Internal Server Error")
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true, "uid": a.UID})
}
