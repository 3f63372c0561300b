package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/hkdf"
)

const (
	defaultAccessTokenTTL     = 30 * 24 * time.Hour
	defaultRefreshTokenTTL    = 30 * 24 * time.Hour
	defaultShortLivedTokenTTL = time.Hour

	// MinSecretLength is the recommended minimum signing secret size in bytes.
	MinSecretLength = 32

	refreshSecretInfo = "storefront-auth refresh-token secret v1"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Tracing      TracingConfig
	Auth         AuthConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	InternalHost          string
	InternalPort          string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	VersionCacheTTL time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled       bool
	CollectorAddr string
}

// AuthConfig defines token signing and verification parameters. It is built once at startup
// and treated as immutable afterwards.
type AuthConfig struct {
	JWTSecret          string
	RefreshSecret      string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	ShortLivedTokenTTL time.Duration
	Issuer             string
	Audience           []string
	APIKeys            []string
	CookieSecure       bool

	// RefreshSecretDerived is set when AUTH_REFRESH_SECRET was not provided and the refresh
	// secret was derived from JWTSecret.
	RefreshSecretDerived bool
}

// NotificationConfig holds stub notification endpoints and the delivery worker pool sizing.
type NotificationConfig struct {
	EmailFrom      string
	WebhookURL     string
	VerifyEmailURL string
	Workers        int
	QueueSize      int
	HandlerTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	authCfg, err := loadAuth()
	if err != nil {
		return nil, err
	}

	versionCacheTTL, err := getEnvAsDuration("REDIS_VERSION_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	notifyTimeout, err := getEnvAsDuration("NOTIFY_HANDLER_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	env := getEnv("APP_ENV", "development")
	authCfg.CookieSecure = getEnvAsBool("AUTH_COOKIE_SECURE", env != "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "storefront-auth"),
			Env:                   env,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			InternalHost:          getEnv("APP_INTERNAL_HOST", "127.0.0.1"),
			InternalPort:          getEnv("APP_INTERNAL_PORT", "9090"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			DB:              redisDB,
			VersionCacheTTL: versionCacheTTL,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Tracing: TracingConfig{
			Enabled:       getEnvAsBool("OTEL_ENABLED", false),
			CollectorAddr: getEnv("OTEL_COLLECTOR_ADDR", "localhost:4317"),
		},
		Auth: authCfg,
		Notification: NotificationConfig{
			EmailFrom:      getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			VerifyEmailURL: getEnv("NOTIFY_VERIFY_EMAIL_URL", "http://localhost:3000/verify-email"),
			Workers:        getEnvAsInt("NOTIFY_WORKERS", 2),
			QueueSize:      getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			HandlerTimeout: notifyTimeout,
		},
	}

	return cfg, nil
}

func loadAuth() (AuthConfig, error) {
	secret := os.Getenv("AUTH_JWT_SECRET")
	if secret == "" {
		return AuthConfig{}, errors.New("AUTH_JWT_SECRET is required")
	}

	accessTTL, err := getEnvAsDuration("AUTH_ACCESS_TOKEN_TTL", defaultAccessTokenTTL)
	if err != nil {
		return AuthConfig{}, err
	}
	refreshTTL, err := getEnvAsDuration("AUTH_REFRESH_TOKEN_TTL", defaultRefreshTokenTTL)
	if err != nil {
		return AuthConfig{}, err
	}
	shortTTL, err := getEnvAsDuration("AUTH_SHORT_LIVED_TOKEN_TTL", defaultShortLivedTokenTTL)
	if err != nil {
		return AuthConfig{}, err
	}

	cfg := AuthConfig{
		JWTSecret:          secret,
		RefreshSecret:      os.Getenv("AUTH_REFRESH_SECRET"),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		ShortLivedTokenTTL: shortTTL,
		Issuer:             getEnv("AUTH_ISSUER", "storefront-auth/v1"),
		Audience:           getEnvAsList("AUTH_AUDIENCE", []string{"storefront-web"}),
		APIKeys:            getEnvAsList("AUTH_API_KEYS", nil),
	}
	if cfg.RefreshSecret == "" {
		derived, err := DeriveRefreshSecret(secret)
		if err != nil {
			return AuthConfig{}, err
		}
		cfg.RefreshSecret = derived
		cfg.RefreshSecretDerived = true
	}
	return cfg, nil
}

// DeriveRefreshSecret expands the access secret into an independent refresh secret using
// HKDF-SHA256.
func DeriveRefreshSecret(accessSecret string) (string, error) {
	if accessSecret == "" {
		return "", errors.New("cannot derive refresh secret from empty secret")
	}
	reader := hkdf.New(sha256.New, []byte(accessSecret), nil, []byte(refreshSecretInfo))
	out := make([]byte, 32)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", fmt.Errorf("derive refresh secret: %w", err)
	}
	return hex.EncodeToString(out), nil
}

// Warnings reports degraded-security settings that operators should see at startup.
func (a AuthConfig) Warnings() []string {
	var warnings []string
	if len(a.JWTSecret) < MinSecretLength {
		warnings = append(warnings, fmt.Sprintf("AUTH_JWT_SECRET is shorter than %d bytes", MinSecretLength))
	}
	if a.RefreshSecretDerived {
		warnings = append(warnings, "AUTH_REFRESH_SECRET not set; refresh tokens use a secret derived from AUTH_JWT_SECRET")
	}
	if len(a.APIKeys) == 0 {
		warnings = append(warnings, "AUTH_API_KEYS empty; service routes reject every caller")
	}
	return warnings
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// InternalAddr returns the bind address of the service-to-service listener.
func (a AppConfig) InternalAddr() string {
	return fmt.Sprintf("%s:%s", a.InternalHost, a.InternalPort)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ParseDuration accepts Go duration syntax plus a trailing "d" for whole or fractional days.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(raw, "d"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}
	return time.ParseDuration(raw)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsDuration rejects unparsable or non-positive values instead of falling back.
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return parsed, nil
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
