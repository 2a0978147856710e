package middleware

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/pms-auth-service/internal/config"
    "github.com/iliyamo/pms-auth-service/internal/identity"
    "github.com/iliyamo/pms-auth-service/internal/logging"
)

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestAdminKey(t *testing.T) {
    e := echo.New()
    e.POST("/guarded", okHandler, AdminKey("s3cret"))
    e.POST("/open", okHandler, AdminKey(""))

    req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
    rec := serve(e, req)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    assert.JSONEq(t, `{"ok":false,"error":"Unauthorized"}`, rec.Body.String())

    req = httptest.NewRequest(http.MethodPost, "/guarded", nil)
    req.Header.Set("X-Admin-Key", "wrong")
    assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

    req = httptest.NewRequest(http.MethodPost, "/guarded", nil)
    req.Header.Set("x-admin-key", "s3cret")
    assert.Equal(t, http.StatusOK, serve(e, req).Code)

    req = httptest.NewRequest(http.MethodPost, "/open", nil)
    assert.Equal(t, http.StatusOK, serve(e, req).Code)
}

type authorizerFunc func(ctx context.Context, raw string) (identity.AccessClaims, error)

func (f authorizerFunc) Authorize(ctx context.Context, raw string) (identity.AccessClaims, error) {
    return f(ctx, raw)
}

func TestJWTAuth(t *testing.T) {
    auth := authorizerFunc(func(_ context.Context, raw string) (identity.AccessClaims, error) {
        switch raw {
        case "good":
            return identity.AccessClaims{UID: "u1", Email: "a@x.com", Admin: true}, nil
        case "down":
            return identity.AccessClaims{}, errors.New("db down")
        }
        return identity.AccessClaims{}, identity.ErrInvalidToken
    })
    e := echo.New()
    e.GET("/me", func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"uid": UID(c), "email": Email(c), "admin": IsAdmin(c)})
    }, JWTAuth(auth))

    cases := []struct {
        header string
        code   int
    }{
        {"", http.StatusUnauthorized},
        {"Basic abc", http.StatusUnauthorized},
        {"Bearer bad", http.StatusUnauthorized},
        {"Bearer down", http.StatusInternalServerError},
        {"Bearer good", http.StatusOK},
    }
    for _, tc := range cases {
        req := httptest.NewRequest(http.MethodGet, "/me", nil)
        if tc.header != "" {
            req.Header.Set("Authorization", tc.header)
        }
        rec := serve(e, req)
        assert.Equal(t, tc.code, rec.Code, tc.header)
        if tc.code == http.StatusOK {
            assert.JSONEq(t, `{"uid":"u1","email":"a@x.com","admin":true}`, rec.Body.String())
        }
    }
}

func limiterConfig() config.RateLimitConfig {
    return config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            2 * time.Hour,
        KeyStrategy:    "ip_route",
        Prefix:         "test:rl",
    }
}

func TestTokenBucket_BlocksAfterCapacity(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })

    e := echo.New()
    e.POST("/send-otp", okHandler, NewTokenBucket(limiterConfig(), rdb, logging.Nop()))

    send := func(ip string) *httptest.ResponseRecorder {
        req := httptest.NewRequest(http.MethodPost, "/send-otp", nil)
        req.Header.Set(echo.HeaderXRealIP, ip)
        return serve(e, req)
    }

    first := send("10.0.0.1")
    require.Equal(t, http.StatusOK, first.Code)
    assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
    assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
    require.Equal(t, http.StatusOK, send("10.0.0.1").Code)

    blocked := send("10.0.0.1")
    assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
    assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
    assert.Contains(t, blocked.Body.String(), `"ok":false`)

    assert.Equal(t, http.StatusOK, send("10.0.0.2").Code, "other clients have their own bucket")
    assert.True(t, mr.Exists("test:rl:ip:10.0.0.1:route:POST /send-otp"))
}

func TestTokenBucket_FailsOpen(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
    t.Cleanup(func() { _ = rdb.Close() })
    mr.Close()

    e := echo.New()
    e.POST("/send-otp", okHandler, NewTokenBucket(limiterConfig(), rdb, logging.Nop()))
    for i := 0; i < 5; i++ {
        assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodPost, "/send-otp", nil)).Code)
    }
}

func TestTokenBucket_DisabledPassesThrough(t *testing.T) {
    cfg := limiterConfig()
    cfg.Enabled = false
    e := echo.New()
    e.POST("/send-otp", okHandler, NewTokenBucket(cfg, nil, logging.Nop()))
    assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodPost, "/send-otp", nil)).Code)
}
