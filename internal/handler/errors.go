package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/pms-auth-service/internal/service"
)

// requestTimeout bounds the collaborator calls made by one request.
const requestTimeout = 10 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// adminStatus maps account service errors to a status and a message that is
// safe to return. Upstream error text never reaches the client.
func adminStatus(err error) (int, string) {
    var pf *service.PartialFailure
    switch {
    case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrForbidden):
        code := http.StatusBadRequest
        if errors.Is(err, service.ErrForbidden) {
            code = http.StatusForbidden
        }
        return code, err.Error()
    case errors.Is(err, service.ErrNotFound):
        return http.StatusNotFound, "Target user not found"
    case errors.As(err, &pf):
        return http.StatusInternalServerError, "Failed at step " + pf.Step
    }
    return http.StatusInternalServerError, "Internal Server Error"
}

func fail(c echo.Context, code int, msg string) error {
    return c.JSON(code, echo.Map{"ok": false, "error": msg})
}
