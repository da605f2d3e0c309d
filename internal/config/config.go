// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"balance-ledger/pkg/db" // Import db package for its Config struct

	"github.com/joho/godotenv"
)

// Policy holds the balance rules the schema itself does not enforce.
type Policy struct {
	// AllowNegativeBalance permits mutations that leave an amount below zero.
	// When false, such mutations fail with util.ErrInsufficientFunds.
	AllowNegativeBalance bool
	// AdjustAutoCreate makes AdjustBalance on an unknown user create a
	// zero-balance row first. When false it fails with util.ErrUnknownUser.
	AdjustAutoCreate bool
	// MutationRetries bounds the in-store retries of any operation on
	// serialization conflicts and transient storage failures before the
	// error is surfaced.
	MutationRetries int
	// RetryBackoff is the base delay between retries; it grows linearly with
	// the attempt number.
	RetryBackoff time.Duration
}

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort          string
	DB                  db.Config
	Policy              Policy
	HistoryDefaultLimit int
	HistoryMaxLimit     int
	MaxBodyBytes        int64
	RateLimitPerSecond  float64
	RateLimitBurst      int
}

// LoadConfig loads configuration from the environment, optionally seeded from
// a .env file. It returns an AppConfig instance or an error if any variable
// is invalid.
func LoadConfig() (*AppConfig, error) {
	// A missing .env file is fine; the environment may be set externally.
	_ = godotenv.Load()

	serverPort := getEnv("SERVER_PORT", "8080")

	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	allowNegative, err := getEnvBool("ALLOW_NEGATIVE_BALANCE", false)
	if err != nil {
		return nil, fmt.Errorf("invalid ALLOW_NEGATIVE_BALANCE: %w", err)
	}
	adjustAutoCreate, err := getEnvBool("ADJUST_AUTO_CREATE", true)
	if err != nil {
		return nil, fmt.Errorf("invalid ADJUST_AUTO_CREATE: %w", err)
	}
	mutationRetries, err := getEnvInt("MUTATION_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid MUTATION_RETRIES: %w", err)
	}
	historyLimit, err := getEnvInt("HISTORY_DEFAULT_LIMIT", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_DEFAULT_LIMIT: %w", err)
	}
	maxOpenConns, err := getEnvInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdleConns, err := getEnvInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}
	historyMaxLimit, err := getEnvInt("HISTORY_MAX_LIMIT", 1000)
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_MAX_LIMIT: %w", err)
	}
	// Default matches the original service's request cap.
	maxBodyBytes, err := getEnvInt("MAX_BODY_BYTES", 1024)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_BODY_BYTES: %w", err)
	}
	rateLimitPerSecond, err := getEnvFloat("RATE_LIMIT_PER_SECOND", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_SECOND: %w", err)
	}
	rateLimitBurst, err := getEnvInt("RATE_LIMIT_BURST", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	return &AppConfig{
		ServerPort: serverPort,
		DB: db.Config{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         dbPort,
			User:         getEnv("DB_USER", "user"),
			Password:     getEnv("DB_PASSWORD", "password"),
			DBName:       getEnv("DB_NAME", "balancedb"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: maxOpenConns,
			MaxIdleConns: maxIdleConns,
		},
		Policy: Policy{
			AllowNegativeBalance: allowNegative,
			AdjustAutoCreate:     adjustAutoCreate,
			MutationRetries:      mutationRetries,
			RetryBackoff:         50 * time.Millisecond,
		},
		HistoryDefaultLimit: historyLimit,
		HistoryMaxLimit:     historyMaxLimit,
		MaxBodyBytes:        int64(maxBodyBytes),
		RateLimitPerSecond:  rateLimitPerSecond,
		RateLimitBurst:      rateLimitBurst,
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(value, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}
