package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Upstream SR22 services
	GatewayBaseURL    string
	AuthTokenURL      string
	ProductsURL       string
	CustomerLookupURL string
	InternalAPIKey    string
	SignatureHeader   string
	RequestTimeout    time.Duration

	// Checkout view behavior
	SessionTTL             time.Duration
	LockPreselectedService bool
	DisplayLocale          string

	// HTTP surface
	CORSAllowedOrigins  []string
	LookupRatePerSecond float64
	LookupRateBurst     int

	// Session snapshots
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given). Missing files are ignored and existing variables are never
// overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "4173"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:4173"), "/"),

		GatewayBaseURL:    strings.TrimRight(getEnv("GATEWAY_BASE_URL", getEnv("VITE_API_BASE_URL", "http://localhost:4242")), "/"),
		AuthTokenURL:      getEnv("AUTH_TOKEN_URL", getEnv("FORWARD_WEBHOOK_URL_AUTH", "https://api.sr22.fit/auth/token")),
		ProductsURL:       getEnv("PRODUCTS_URL", getEnv("GET_PRODUCTS_URL", "https://api.sr22.fit/products")),
		CustomerLookupURL: getEnv("CUSTOMER_LOOKUP_URL", "https://api.sr22.fit/customer/find-by-phone"),
		InternalAPIKey:    getEnv("INTERNAL_WEBHOOK_SECRET", "sr22-internal-api-key"),
		SignatureHeader:   getEnv("X_SR22_SIGNATURE", "sr22-dev-webhook"),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),

		SessionTTL:             getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		LockPreselectedService: getEnvAsBool("LOCK_PRESELECTED_SERVICE", false),
		DisplayLocale:          getEnv("DISPLAY_LOCALE", "es-MX"),

		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),
		LookupRatePerSecond: getEnvAsFloat("LOOKUP_RATE_PER_SECOND", 5),
		LookupRateBurst:     getEnvAsInt("LOOKUP_RATE_BURST", 20),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
