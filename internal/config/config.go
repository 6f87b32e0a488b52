// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
    "errors"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env      string // APP_ENV (dev, test, prod)
    Port     string // APP_PORT
    LogLevel string // LOG_LEVEL, empty picks the env default

    DBUser string
    DBPass string // may be empty
    DBHost string
    DBPort string
    DBName string

    JWTSecret string // HS256 key shared with the identity provider

    PaystackBaseURL string
    GatewayTimeout  time.Duration
    Currency        string
    CredentialKey   string // passphrase sealing organizer secret keys
    PublicBaseURL   string // where the web app lives; used in ticket and callback links

    TicketIDSuffixLen   int
    TicketIDMaxAttempts int

    AssemblyAIKey     string // empty disables transcription
    AssemblyAIBaseURL string
    TranscribeTimeout time.Duration
    TranscribePoll    time.Duration

    CleanupInterval  time.Duration
    CleanupRetention time.Duration

    MeetingKeyFile string // RS256 private key PEM; empty disables meeting tokens
    MeetingAppID   string
    MeetingKeyID   string // kid header, as shown in the JaaS console

    CORSOrigins []string
    RabbitMQURL string // empty disables the ticket queues
    QueueLogDir string
    FeedPrefix  string
    FeedPoll    time.Duration
}

// Load reads a .env file when present and then the environment.  Missing
// required keys are reported together.
func Load() (Config, error) {
    _ = godotenv.Load()

    var missing []string
    must := func(key string) string {
        v, ok := os.LookupEnv(key)
        if !ok || v == "" {
            missing = append(missing, key)
        }
        return v
    }

    cfg := Config{
        Env:      envStr("APP_ENV", "dev"),
        Port:     envStr("APP_PORT", "8080"),
        LogLevel: os.Getenv("LOG_LEVEL"),

        DBUser: must("DB_USER"),
        DBPass: os.Getenv("DB_PASS"),
        DBHost: must("DB_HOST"),
        DBPort: envStr("DB_PORT", "3306"),
        DBName: must("DB_NAME"),

        JWTSecret: must("JWT_SECRET"),

        PaystackBaseURL: envStr("PAYSTACK_BASE_URL", "https://api.paystack.co"),
        GatewayTimeout:  envDur("GATEWAY_TIMEOUT", 15*time.Second),
        Currency:        envStr("PAYMENT_CURRENCY", "NGN"),
        CredentialKey:   must("CREDENTIAL_KEY"),
        PublicBaseURL:   strings.TrimRight(envStr("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),

        TicketIDSuffixLen:   envInt("TICKET_ID_SUFFIX_LEN", 12),
        TicketIDMaxAttempts: envInt("TICKET_ID_MAX_ATTEMPTS", 5),

        AssemblyAIKey:     os.Getenv("ASSEMBLYAI_API_KEY"),
        AssemblyAIBaseURL: envStr("ASSEMBLYAI_BASE_URL", "https://api.assemblyai.com"),
        TranscribeTimeout: envDur("TRANSCRIBE_TIMEOUT", 10*time.Minute),
        TranscribePoll:    envDur("TRANSCRIBE_POLL_INTERVAL", 3*time.Second),

        CleanupInterval:  envDur("CLEANUP_INTERVAL", 24*time.Hour),
        CleanupRetention: envDur("CLEANUP_RETENTION", 72*time.Hour),

        MeetingKeyFile: os.Getenv("MEETING_KEY_FILE"),
        MeetingAppID:   os.Getenv("MEETING_APP_ID"),
        MeetingKeyID:   os.Getenv("MEETING_KEY_ID"),

        CORSOrigins: splitList(envStr("CORS_ORIGINS", "*")),
        RabbitMQURL: os.Getenv("RABBITMQ_URL"),
        QueueLogDir: envStr("QUEUE_LOG_DIR", "logs"),
        FeedPrefix:  envStr("FEED_PREFIX", "adas"),
        FeedPoll:    envDur("FEED_POLL_INTERVAL", 2*time.Second),
    }
    if len(missing) > 0 {
        return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
    }
    if err := cfg.validate(); err != nil {
        return Config{}, err
    }
    return cfg, nil
}

func (c Config) validate() error {
    var errs []error
    if c.TicketIDSuffixLen < 6 {
        errs = append(errs, fmt.Errorf("TICKET_ID_SUFFIX_LEN must be at least 6, got %d", c.TicketIDSuffixLen))
    }
    if c.TicketIDMaxAttempts < 1 {
        errs = append(errs, fmt.Errorf("TICKET_ID_MAX_ATTEMPTS must be positive, got %d", c.TicketIDMaxAttempts))
    }
    if c.GatewayTimeout <= 0 || c.TranscribeTimeout <= 0 {
        errs = append(errs, errors.New("timeouts must be positive"))
    }
    if (c.MeetingKeyFile == "") != (c.MeetingAppID == "") {
        errs = append(errs, errors.New("MEETING_KEY_FILE and MEETING_APP_ID must be set together"))
    }
    return errors.Join(errs...)
}

// MeetingEnabled reports whether meeting tokens can be issued.
func (c Config) MeetingEnabled() bool { return c.MeetingKeyFile != "" && c.MeetingAppID != "" }

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    switch strings.ToLower(v) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if dur, err := time.ParseDuration(v); err == nil {
        return dur
    }
    return d
}
