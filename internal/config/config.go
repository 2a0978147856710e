package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings" // strings normalizes email-like values
    "time"    // time parses code lifetimes
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets and addresses are strings, lifetimes are
// durations and the remaining knobs are ints or bools.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    DocStore       string // "mysql" (default) or "memory"
    JWTSecret      string // secret used to sign access tokens
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing

    AdminNotifyEmail string // recipient of signup authorization codes
    ProtectedEmail   string // account that can never be demoted or deleted
    AdminAPIKey      string // shared secret for x-admin-key; empty disables the guard

    Mail MailConfig

    SignupCodeTTL     time.Duration // lifetime of admin-approved signup codes
    OTPTTL            time.Duration // lifetime of one-time passwords
    ProvisionOnVerify bool          // create account + profile when a signup code verifies

    AMQPURL       string // broker URL for account audit events; empty disables publishing
    AuditConsumer bool   // run the audit log consumer in-process
    AuditLogDir   string // directory for account.log
}

// MailConfig describes the outbound SMTP account.  When User or Pass is
// empty, messages are logged instead of sent.
type MailConfig struct {
    Host string
    Port int
    User string
    Pass string
}

// Enabled reports whether SMTP credentials are configured.
func (m MailConfig) Enabled() bool { return m.User != "" && m.Pass != "" }

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    docStore := strings.ToLower(getenv("DOCSTORE", "mysql"))
    return Config{
        Env:            getenv("APP_ENV", "dev"),
        Port:           must("APP_PORT"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        DocStore:       docStore,
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
        RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 30),
        BcryptCost:     envInt("BCRYPT_COST", 10),

        AdminNotifyEmail: normalizeEmail(getenv("ADMIN_NOTIFY_EMAIL", "ahoy_sailorboy@yahoo.com")),
        ProtectedEmail:   normalizeEmail(getenv("PROTECTED_EMAIL", "ahoy_sailorboy@yahoo.com")),
        AdminAPIKey:      os.Getenv("ADMIN_API_KEY"),

        Mail: MailConfig{
            Host: getenv("SMTP_HOST", "smtp.gmail.com"),
            Port: envInt("SMTP_PORT", 587),
            User: os.Getenv("EMAIL_USER"),
            Pass: os.Getenv("EMAIL_PASS"),
        },

        SignupCodeTTL:     envDur("SIGNUP_CODE_TTL", 10*time.Minute),
        OTPTTL:            envDur("OTP_TTL", 5*time.Minute),
        ProvisionOnVerify: envBool("SIGNUP_PROVISION_ON_VERIFY", true),

        AMQPURL:       amqpURL(),
        AuditConsumer: envBool("AUDIT_CONSUMER_ENABLED", false),
        AuditLogDir:   getenv("AUDIT_LOG_DIR", "logs"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

func amqpURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func envStr(k, d string) string { return getenv(k, d) }

func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch v {
    case "1","true","TRUE","True","yes","YES","on","ON": return true
    case "0","false","FALSE","False","no","NO","off","OFF": return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
