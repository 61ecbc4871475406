package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/habitd/internal/logging"
)

const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config holds runtime settings read from HABITD_* environment variables.
type Config struct {
	Port            string
	LogLevel        string
	LogFormat       string
	Backend         string
	DBPath          string
	MongoURI        string
	MongoDatabase   string
	JWTSecret       string
	TokenTTL        time.Duration
	Location        *time.Location
	PrepareSchedule bool
	PrepareInterval time.Duration

	// Web push for due reminders. Disabled unless both keys are set.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	PushInterval    time.Duration

	StripeWebhookSecret string

	Backup BackupConfig
}

// BackupConfig configures encrypted SQLite snapshots to S3-compatible storage.
type BackupConfig struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	Passphrase    string
	Hour          int
	RetentionDays int
}

// PushEnabled reports whether VAPID keys are configured.
func (c Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// Load primes the environment from the given .env files, if they exist, and
// reads the configuration. Variables already set in the environment win.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:          get("HABITD_PORT", "8080"),
		LogLevel:      get("HABITD_LOG_LEVEL", "info"),
		LogFormat:     get("HABITD_LOG_FORMAT", "text"),
		Backend:       strings.ToLower(get("HABITD_BACKEND", BackendSQLite)),
		DBPath:        get("HABITD_DB_PATH", "habitd.db"),
		MongoURI:      get("HABITD_MONGO_URI", ""),
		MongoDatabase: get("HABITD_MONGO_DATABASE", "habitd"),
		JWTSecret:     getenv("HABITD_JWT_SECRET"),

		VAPIDPublicKey:  get("HABITD_VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: get("HABITD_VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    get("HABITD_VAPID_SUBJECT", "mailto:admin@localhost"),

		StripeWebhookSecret: get("HABITD_STRIPE_WEBHOOK_SECRET", ""),

		Backup: BackupConfig{
			Endpoint:   get("HABITD_BACKUP_S3_ENDPOINT", ""),
			Bucket:     get("HABITD_BACKUP_S3_BUCKET", ""),
			Region:     get("HABITD_BACKUP_S3_REGION", "us-east-1"),
			AccessKey:  get("HABITD_BACKUP_S3_ACCESS_KEY", ""),
			SecretKey:  get("HABITD_BACKUP_S3_SECRET_KEY", ""),
			Passphrase: getenv("HABITD_BACKUP_PASSPHRASE"),
		},
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("HABITD_LOG_LEVEL: %w", err)
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Config{}, fmt.Errorf("HABITD_PORT: %q is not a port number", cfg.Port)
	}

	switch cfg.Backend {
	case BackendSQLite:
	case BackendMongo:
		if cfg.MongoURI == "" {
			return Config{}, errors.New("HABITD_MONGO_URI is required for the mongo backend")
		}
	default:
		return Config{}, fmt.Errorf("HABITD_BACKEND: unknown backend %q", cfg.Backend)
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("HABITD_JWT_SECRET is required")
	}

	var err error
	if cfg.TokenTTL, err = time.ParseDuration(get("HABITD_TOKEN_TTL", "30m")); err != nil || cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("HABITD_TOKEN_TTL: invalid duration %q", getenv("HABITD_TOKEN_TTL"))
	}
	if cfg.PrepareInterval, err = time.ParseDuration(get("HABITD_PREPARE_INTERVAL", "1m")); err != nil || cfg.PrepareInterval <= 0 {
		return Config{}, fmt.Errorf("HABITD_PREPARE_INTERVAL: invalid duration %q", getenv("HABITD_PREPARE_INTERVAL"))
	}
	if cfg.PrepareSchedule, err = strconv.ParseBool(get("HABITD_PREPARE_SCHEDULE", "true")); err != nil {
		return Config{}, fmt.Errorf("HABITD_PREPARE_SCHEDULE: %w", err)
	}
	if cfg.Location, err = time.LoadLocation(get("HABITD_TIMEZONE", "UTC")); err != nil {
		return Config{}, fmt.Errorf("HABITD_TIMEZONE: %w", err)
	}
	if cfg.PushInterval, err = time.ParseDuration(get("HABITD_PUSH_INTERVAL", "1m")); err != nil || cfg.PushInterval <= 0 {
		return Config{}, fmt.Errorf("HABITD_PUSH_INTERVAL: invalid duration %q", getenv("HABITD_PUSH_INTERVAL"))
	}
	if (cfg.VAPIDPublicKey == "") != (cfg.VAPIDPrivateKey == "") {
		return Config{}, errors.New("HABITD_VAPID_PUBLIC_KEY and HABITD_VAPID_PRIVATE_KEY must be set together")
	}

	if cfg.Backup.Hour, err = strconv.Atoi(get("HABITD_BACKUP_HOUR", "3")); err != nil || cfg.Backup.Hour < 0 || cfg.Backup.Hour > 23 {
		return Config{}, fmt.Errorf("HABITD_BACKUP_HOUR: %q is not an hour 0-23", getenv("HABITD_BACKUP_HOUR"))
	}
	if cfg.Backup.RetentionDays, err = strconv.Atoi(get("HABITD_BACKUP_RETENTION_DAYS", "30")); err != nil || cfg.Backup.RetentionDays < 1 {
		return Config{}, fmt.Errorf("HABITD_BACKUP_RETENTION_DAYS: %q is not a positive number", getenv("HABITD_BACKUP_RETENTION_DAYS"))
	}
	if cfg.Backup.Bucket != "" && cfg.Backup.Passphrase == "" {
		return Config{}, errors.New("HABITD_BACKUP_PASSPHRASE is required when HABITD_BACKUP_S3_BUCKET is set")
	}

	return cfg, nil
}
