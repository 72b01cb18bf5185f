package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	// Tenant resolution: storefronts live on <slug>.<RootDomain>.
	RootDomain   string
	TenantHeader string

	// Payment provider (Stripe Connect style hosted checkout).
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeAPIBase       string
	PlatformFeePercent  float64

	// AppURL is the root storefront URL; tenant storefronts live on its
	// subdomains and provider redirects land back there.
	AppURL string

	// Cart registry persistence: memory, file or redis.
	CartAdapter  string
	CartFilePath string
	CartTTL      time.Duration

	ProductCacheTTL time.Duration
	LibraryCacheTTL time.Duration
	IdempotencyTTL  time.Duration

	PurchaseRateLimit string

	QueueConcurrency int

	OTLPEndpoint string
	PprofUser    string
	PprofPass    string

	DBMaxOpenConns int
	DBMaxIdleConns int

	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		RootDomain:   strings.ToLower(strings.TrimSpace(k.String("ROOT_DOMAIN"))),
		TenantHeader: valueOrDefault(k.String("TENANT_HEADER"), "X-Tenant-Slug"),

		StripeSecretKey:     k.String("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: k.String("STRIPE_WEBHOOK_SECRET"),
		StripeAPIBase:       valueOrDefault(k.String("STRIPE_API_BASE"), "https://api.stripe.com"),
		PlatformFeePercent:  k.Float64("PLATFORM_FEE_PERCENT"),
		AppURL:              valueOrDefault(k.String("APP_URL"), "http://localhost:3000"),

		CartAdapter:  valueOrDefault(k.String("CART_ADAPTER"), "redis"),
		CartFilePath: k.String("CART_FILE_PATH"),
		CartTTL:      parseDuration(k.String("CART_TTL"), "720h"),

		ProductCacheTTL: parseDuration(k.String("PRODUCT_CACHE_TTL"), "60s"),
		LibraryCacheTTL: parseDuration(k.String("LIBRARY_CACHE_TTL"), "300s"),
		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		PurchaseRateLimit: valueOrDefault(k.String("PURCHASE_RATE_LIMIT"), "10-M"),

		QueueConcurrency: intOrDefault(k.Int("QUEUE_CONCURRENCY"), 10),

		OTLPEndpoint: k.String("OTLP_ENDPOINT"),
		PprofUser:    k.String("PPROF_USER"),
		PprofPass:    k.String("PPROF_PASS"),

		DBMaxOpenConns: k.Int("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns: k.Int("DB_MAX_IDLE_CONNS"),

		CookieDomain:   strings.TrimSpace(k.String("COOKIE_DOMAIN")),
		CookieSecure:   parseBool(k.String("COOKIE_SECURE")),
		CookieSameSite: parseSameSite(k.String("COOKIE_SAMESITE")),
	}

	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	if cfg.PlatformFeePercent <= 0 {
		cfg.PlatformFeePercent = 10
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	switch cfg.CartAdapter {
	case "memory", "file", "redis":
	default:
		return nil, fmt.Errorf("CART_ADAPTER must be memory, file or redis, got %q", cfg.CartAdapter)
	}
	if cfg.CartAdapter == "file" && cfg.CartFilePath == "" {
		return nil, errors.New("CART_FILE_PATH is required when CART_ADAPTER=file")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
