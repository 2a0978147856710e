package main

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/pms-auth-service/internal/codestore"
    "github.com/iliyamo/pms-auth-service/internal/config"
    "github.com/iliyamo/pms-auth-service/internal/database"
    "github.com/iliyamo/pms-auth-service/internal/docstore"
    "github.com/iliyamo/pms-auth-service/internal/handler"
    "github.com/iliyamo/pms-auth-service/internal/identity"
    "github.com/iliyamo/pms-auth-service/internal/logging"
    "github.com/iliyamo/pms-auth-service/internal/mailer"
    "github.com/iliyamo/pms-auth-service/internal/middleware"
    "github.com/iliyamo/pms-auth-service/internal/queue"
    "github.com/iliyamo/pms-auth-service/internal/router"
    "github.com/iliyamo/pms-auth-service/internal/service"
)

func main() {
    _ = godotenv.Load() // .env is optional; real environment wins
    cfg := config.Load()
    log := logging.New(cfg.Env, os.Stdout)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Error(ctx, "database unavailable", "err", err)
        os.Exit(1)
    }
    defer db.Close()
    if err := database.Migrate(ctx, db); err != nil {
        log.Error(ctx, "migrations failed", "err", err)
        os.Exit(1)
    }

    ids := identity.NewMySQLProvider(db, cfg.BcryptCost)
    accounts := service.NewAccountService(ids, docStore(cfg, db), publisher(cfg), log, service.AccountConfig{
        ProtectedEmail: cfg.ProtectedEmail,
        AdminEmail:     cfg.AdminNotifyEmail,
    })

    mail := sender(cfg, log)
    otpFlow := service.NewCodeFlow(service.OTPFlow(),
        codestore.New(cfg.OTPTTL, codestore.Digits(6)), mail, accounts, log)
    signupFlow := service.NewCodeFlow(service.SignupApprovalFlow(cfg.AdminNotifyEmail, cfg.ProvisionOnVerify),
        codestore.New(cfg.SignupCodeTTL, codestore.UUIDPrefix(6)), mail, accounts, log)

    sessions := identity.NewSessions(ids, cfg.JWTSecret,
        time.Duration(cfg.AccessTTLMin)*time.Minute, time.Duration(cfg.RefreshTTLDays)*24*time.Hour)

    rdb, err := config.NewRedisClient(ctx)
    if err != nil {
        log.Warn(ctx, "redis unavailable; rate limiting disabled", "err", err)
    } else {
        defer rdb.Close()
    }
    limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)

    if cfg.AuditConsumer && cfg.AMQPURL != "" {
        go func() {
            if err := queue.StartAuditConsumer(ctx, cfg.AMQPURL, cfg.AuditLogDir, log); err != nil && !errors.Is(err, context.Canceled) {
                log.Error(ctx, "audit consumer stopped", "err", err)
            }
        }()
    }

    e := echo.New()
    router.Setup(e, log)
    router.RegisterRoutes(e)
    router.RegisterCodes(e, handler.NewCodeHandler(otpFlow, log), handler.NewCodeHandler(signupFlow, log), limit)
    router.RegisterAuth(e, handler.NewAuthHandler(sessions, ids, log), sessions, limit)
    router.RegisterAdmin(e, handler.NewAdminHandler(accounts, log), cfg.AdminAPIKey)
    if cfg.AdminAPIKey == "" {
        log.Warn(ctx, "ADMIN_API_KEY not set; /api/admin is open")
    }

    go func() {
        addr := ":" + cfg.Port
        log.Info(ctx, "listening", "addr", addr, "env", cfg.Env, "mail", cfg.Mail.Enabled())
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Error(ctx, "server failed", "err", err)
            stop()
        }
    }()

    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.Error(shutdownCtx, "shutdown", "err", err)
    }
}

func docStore(cfg config.Config, db *sql.DB) docstore.Store {
    if cfg.DocStore == "memory" {
        return docstore.NewMemory()
    }
    return docstore.NewMySQLStore(db)
}

func publisher(cfg config.Config) service.EventPublisher {
    if cfg.AMQPURL == "" {
        return nil
    }
    return service.NewAMQPPublisher(cfg.AMQPURL)
}

func sender(cfg config.Config, log logging.Logger) mailer.Sender {
    if !cfg.Mail.Enabled() {
        return mailer.NewLogSender(log)
    }
    return mailer.NewSMTPSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Pass)
}
