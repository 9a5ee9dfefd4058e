package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds service configuration, read from the environment.
type Config struct {
	ServerAddr    string `envconfig:"SERVER_ADDR" default:"0.0.0.0:8080"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	DryRun        bool   `envconfig:"DRY_RUN" default:"false"`

	// External key-value state store.
	RedisURL    string `envconfig:"REDIS_URL" default:"localhost:6379"`
	RedisPrefix string `envconfig:"REDIS_PREFIX" default:"bookflow"`

	// External ledger.
	LedgerBaseURL      string        `envconfig:"LEDGER_BASE_URL"`
	LedgerSheetID      string        `envconfig:"LEDGER_SHEET_ID"`
	LedgerSheetName    string        `envconfig:"LEDGER_SHEET_NAME" default:"Bookings"`
	LedgerTokenURL     string        `envconfig:"LEDGER_TOKEN_URL"`
	LedgerClientID     string        `envconfig:"LEDGER_CLIENT_ID"`
	LedgerClientSecret string        `envconfig:"LEDGER_CLIENT_SECRET"`
	LedgerMaxAttempts  int           `envconfig:"LEDGER_MAX_ATTEMPTS" default:"3"`
	LedgerRetryBase    time.Duration `envconfig:"LEDGER_RETRY_BASE" default:"500ms"`

	// Outbound email.
	MailBaseURL string `envconfig:"MAIL_BASE_URL"`
	MailAPIKey  string `envconfig:"MAIL_API_KEY"`
	MailFrom    string `envconfig:"MAIL_FROM" default:"bookings@bookflow.local"`
	OwnerEmail  string `envconfig:"OWNER_EMAIL"`

	// Intake and decision tuning.
	RateLimit          int           `envconfig:"RATE_LIMIT" default:"10"`
	RateWindow         time.Duration `envconfig:"RATE_WINDOW" default:"60s"`
	SubmissionPending  time.Duration `envconfig:"SUBMISSION_PENDING_TTL" default:"1h"`
	SubmissionRetained time.Duration `envconfig:"SUBMISSION_PROCESSED_TTL" default:"720h"`
	MinTokenAge        time.Duration `envconfig:"MIN_TOKEN_AGE" default:"2s"`
	UsedTokenRetention time.Duration `envconfig:"USED_TOKEN_RETENTION" default:"24h"`

	// Optional audit store.
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	AuditSigningKey string `envconfig:"AUDIT_SIGNING_KEY"`
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
