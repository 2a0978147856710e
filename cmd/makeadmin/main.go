// Command makeadmin grants the admin role to an existing account, running
// the same protocol as POST /api/admin/set-role.
package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "io"
    "os"
    "time"

    "github.com/joho/godotenv"

    "github.com/iliyamo/pms-auth-service/internal/config"
    "github.com/iliyamo/pms-auth-service/internal/database"
    "github.com/iliyamo/pms-auth-service/internal/docstore"
    "github.com/iliyamo/pms-auth-service/internal/identity"
    "github.com/iliyamo/pms-auth-service/internal/logging"
    "github.com/iliyamo/pms-auth-service/internal/service"
)

var errUsage = errors.New("usage: makeadmin -email someone@example.com")

func main() {
    if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
        fmt.Fprintln(os.Stderr, err)
        if errors.Is(err, errUsage) {
            os.Exit(2)
        }
        os.Exit(1)
    }
}

// run returns instead of exiting so deferred cleanup always happens.
func run(args []string, stdout, stderr io.Writer) error {
    fs := flag.NewFlagSet("makeadmin", flag.ContinueOnError)
    fs.SetOutput(stderr)
    email := fs.String("email", "", "email of the account to promote")
    if err := fs.Parse(args); err != nil {
        return errUsage
    }
    if *email == "" {
        return errUsage
    }

    _ = godotenv.Load()
    cfg := config.Load()
    log := logging.New(cfg.Env, stderr)

    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer cancel()

    db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Error(ctx, "database unavailable", "err", err)
        return fmt.Errorf("open database: %w", err)
    }
    defer db.Close()

    var docs docstore.Store = docstore.NewMySQLStore(db)
    if cfg.DocStore == "memory" {
        docs = docstore.NewMemory()
    }
    var events service.EventPublisher
    if cfg.AMQPURL != "" {
        events = service.NewAMQPPublisher(cfg.AMQPURL)
    }
    accounts := service.NewAccountService(identity.NewMySQLProvider(db, cfg.BcryptCost), docs, events, log,
        service.AccountConfig{ProtectedEmail: cfg.ProtectedEmail, AdminEmail: cfg.AdminNotifyEmail})

    a, _, err := accounts.SetRole(ctx, "", *email, string(service.RoleAdmin))
    if err != nil {
        log.Error(ctx, "failed to set admin claim", "email", *email, "err", err)
        return fmt.Errorf("set admin claim for %s: %w", *email, err)
    }
    fmt.Fprintf(stdout, "admin claim set for %s (uid %s)\n", a.Email, a.UID)
    return nil
}
