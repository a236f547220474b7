package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Debounce controls how rapid-fire client messages are coalesced into one
	// logical turn. DebounceWindow is the quiet period that ends a burst;
	// DebounceMaxWait caps how far consecutive messages may push the deadline.
	DebounceWindow  time.Duration
	DebounceMaxWait time.Duration

	OpenAIAPIKey string
	OpenAIModel  string
	LLMTimeout   time.Duration

	BookingAPIBaseURL string
	BookingAPIToken   string

	GreetingCooldown time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		DebounceWindow:  getEnvAsDuration("DEBOUNCE_WINDOW", 2500*time.Millisecond),
		DebounceMaxWait: getEnvAsDuration("DEBOUNCE_MAX_WAIT", 15*time.Second),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LLMTimeout:   getEnvAsDuration("LLM_TIMEOUT", 20*time.Second),

		BookingAPIBaseURL: getEnv("BOOKING_API_BASE_URL", ""),
		BookingAPIToken:   getEnv("BOOKING_API_TOKEN", ""),

		GreetingCooldown: getEnvAsDuration("GREETING_COOLDOWN", 12*time.Hour),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
