package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// ReplayModeStrict treats any re-presented consumed/revoked secret
	// as a security incident: the whole session is revoked.
	ReplayModeStrict = "strict"
	// ReplayModeIdempotencyWindow absorbs client-side duplicate
	// submissions: a consumed secret replayed within the window
	// returns the already-issued pair instead of revoking.
	ReplayModeIdempotencyWindow = "idempotency-window"
)

const defaultJWTSecret = "change-me-jwt-secret"

// Config contains runtime configuration values.
type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string
	JWTSecret   string

	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	SessionTTL         time.Duration
	SessionTTLRemember time.Duration
	// SessionIdleTTL expires sessions not seen for this long, on top of
	// the absolute expiry. Zero disables the inactivity check.
	SessionIdleTTL time.Duration

	ReplayMode        string
	IdempotencyWindow time.Duration

	CleanupInterval  time.Duration
	CleanupRetention time.Duration

	LockTimeout           time.Duration
	MaxSessionsPerSubject int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      strings.ToLower(getEnv("APP_ENV", "dev")),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret)),

		ReplayMode: strings.ToLower(getEnv("REPLAY_MODE", ReplayModeStrict)),

		MaxSessionsPerSubject: getInt("MAX_SESSIONS_PER_SUBJECT", 0),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
	}

	var err error
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", "15m"); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", "168h"); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", "24h"); err != nil {
		return nil, err
	}
	if cfg.SessionTTLRemember, err = getDuration("SESSION_TTL_REMEMBER", "720h"); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = getDuration("SESSION_IDLE_TTL", "0"); err != nil {
		return nil, err
	}
	if cfg.IdempotencyWindow, err = getDuration("IDEMPOTENCY_WINDOW", "2s"); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = getDuration("CLEANUP_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if cfg.CleanupRetention, err = getDuration("CLEANUP_RETENTION", "720h"); err != nil {
		return nil, err
	}
	if cfg.LockTimeout, err = getDuration("LOCK_TIMEOUT", "250ms"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be > 0")
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL")
	}
	if c.SessionTTL <= 0 || c.SessionTTLRemember < c.SessionTTL {
		return fmt.Errorf("SESSION_TTL must be > 0 and SESSION_TTL_REMEMBER >= SESSION_TTL")
	}
	if c.SessionIdleTTL < 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be >= 0")
	}
	switch c.ReplayMode {
	case ReplayModeStrict:
	case ReplayModeIdempotencyWindow:
		if c.IdempotencyWindow <= 0 || c.IdempotencyWindow > 5*time.Second {
			return fmt.Errorf("IDEMPOTENCY_WINDOW must be in (0s, 5s]")
		}
	default:
		return fmt.Errorf("REPLAY_MODE must be %q or %q", ReplayModeStrict, ReplayModeIdempotencyWindow)
	}
	if c.CleanupInterval <= 0 || c.CleanupRetention <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL and CLEANUP_RETENTION must be > 0")
	}
	if c.MaxSessionsPerSubject < 0 {
		return fmt.Errorf("MAX_SESSIONS_PER_SUBJECT must be >= 0")
	}

	if isProdLike(c.AppEnv) {
		if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
	}
	return nil
}

// IdempotencyEnabled reports whether duplicate-submission absorption is on.
func (c *Config) IdempotencyEnabled() bool {
	return c.ReplayMode == ReplayModeIdempotencyWindow
}

func isProdLike(env string) bool {
	return env == "prod" || env == "production" || env == "release"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getInt(name string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}
