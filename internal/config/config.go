package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// sampleSecret ships in .env.example and must never reach production.
const sampleSecret = "your-super-secret-auth-key-change-in-production"

const (
	minSecretLen     = 32
	minProdSecretLen = 64
)

type SMTP struct {
	Host string
	Port int
	User string
	Pass string
}

type Config struct {
	Env           string
	DatabaseURL   string
	AuthSecret    string
	RedisURL      string
	SMTP          SMTP
	LogLevel      slog.Level
	AppName       string
	PublicBaseURL string
	ListenAddr    string
	SessionTTL    time.Duration
	StoreTimeout  time.Duration
	BcryptCost    int
}

func (c *Config) Production() bool { return c.Env == EnvProduction }

// RedactedDatabaseURL hides credentials embedded in the connection string.
func (c *Config) RedactedDatabaseURL() string {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil || u.User == nil {
		return c.DatabaseURL
	}
	u.User = url.UserPassword("***", "***")
	return u.String()
}

// FromEnv loads .env (if present) and then reads the process environment.
func FromEnv() (*Config, []string, error) {
	_ = godotenv.Load()
	return Load(os.Getenv)
}

// Load builds a Config from getenv and validates it. Warnings are
// non-fatal findings for development; every violation is reported in err.
func Load(getenv func(string) string) (*Config, []string, error) {
	var errs []error

	cfg := &Config{
		Env:           valueOr(getenv("APP_ENV"), EnvDevelopment),
		DatabaseURL:   strings.TrimSpace(getenv("DATABASE_URL")),
		AuthSecret:    getenv("AUTH_SECRET"),
		RedisURL:      strings.TrimSpace(getenv("REDIS_URL")),
		AppName:       valueOr(getenv("APP_NAME"), "Blog"),
		PublicBaseURL: valueOr(getenv("PUBLIC_BASE_URL"), "http://localhost:3000"),
		ListenAddr:    valueOr(getenv("LISTEN_ADDR"), ":3000"),
		SMTP: SMTP{
			Host: getenv("SMTP_HOST"),
			User: getenv("SMTP_USER"),
			Pass: getenv("SMTP_PASS"),
		},
	}

	switch cfg.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV: must be one of development, production, test; got %q", cfg.Env))
	}

	level, err := parseLevel(valueOr(getenv("LOG_LEVEL"), "info"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.LogLevel = level

	if v := getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("SMTP_PORT: invalid port %q", v))
		}
		cfg.SMTP.Port = port
	}

	cfg.SessionTTL, err = parseDuration(getenv, "SESSION_TTL", 30*24*time.Hour)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.StoreTimeout, err = parseDuration(getenv, "STORE_TIMEOUT", 5*time.Second)
	if err != nil {
		errs = append(errs, err)
	}

	cfg.BcryptCost = bcrypt.DefaultCost
	if v := getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			errs = append(errs, fmt.Errorf("BCRYPT_COST: must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
		} else {
			cfg.BcryptCost = cost
		}
	}

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL: must not be empty"))
	}
	if len(cfg.AuthSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("AUTH_SECRET: must be at least %d characters", minSecretLen))
	}
	if u, err := url.Parse(cfg.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL: must be an absolute URL; got %q", cfg.PublicBaseURL))
	}

	var warnings []string
	switch cfg.Env {
	case EnvProduction:
		errs = append(errs, cfg.productionRules()...)
	case EnvDevelopment:
		warnings = cfg.developmentWarnings()
	}

	if len(errs) > 0 {
		return nil, warnings, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, warnings, nil
}

func (c *Config) productionRules() []error {
	var errs []error
	if len(c.AuthSecret) < minProdSecretLen {
		errs = append(errs, fmt.Errorf("AUTH_SECRET: must be at least %d characters in production", minProdSecretLen))
	}
	if c.AuthSecret == sampleSecret {
		errs = append(errs, errors.New("AUTH_SECRET: sample value must not be used in production"))
	}
	if strings.Contains(c.DatabaseURL, "-dev") {
		errs = append(errs, errors.New("DATABASE_URL: production must not use a development database"))
	}
	if c.SMTP.Host == "" {
		errs = append(errs, errors.New("SMTP_HOST: required in production"))
	}
	if c.SMTP.User == "" {
		errs = append(errs, errors.New("SMTP_USER: required in production"))
	}
	if c.SMTP.Pass == "" {
		errs = append(errs, errors.New("SMTP_PASS: required in production"))
	}
	return errs
}

func (c *Config) developmentWarnings() []string {
	var warnings []string
	if strings.Contains(c.DatabaseURL, "-prod") {
		warnings = append(warnings, "DATABASE_URL points at a production database")
	}
	if c.DatabaseURL != "" && !strings.Contains(c.DatabaseURL, "-dev") {
		warnings = append(warnings, `DATABASE_URL should name a database containing "-dev"`)
	}
	return warnings
}

func valueOr(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func parseDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func parseLevel(v string) (slog.Level, error) {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: must be one of debug, info, warn, error; got %q", v)
}
