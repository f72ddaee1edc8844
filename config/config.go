// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string
	DBPath          string
	LogLevel        string
	JWTSecret       string
	DefaultMode     string // "guide" or "autonomous"
	HeartbeatTTL    time.Duration
	MessageTTL      time.Duration
	AlpacaAPIKey    string
	AlpacaSecretKey string
	AlpacaPaper     bool
}

// Load reads a .env file if present (ignored if missing) and builds a
// Config from environment variables, falling back to safe defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		DBPath:          getenv("DB_PATH", "tradecore.db"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		JWTSecret:       getenv("JWT_SECRET", "dev-secret-change-me"),
		DefaultMode:     getenv("DEFAULT_MODE", "guide"),
		HeartbeatTTL:    getenvDuration("HEARTBEAT_TTL_SECONDS", 60*time.Second),
		MessageTTL:      getenvDuration("MESSAGE_TTL_SECONDS", 120*time.Second),
		AlpacaAPIKey:    getenv("ALPACA_API_KEY", ""),
		AlpacaSecretKey: getenv("ALPACA_SECRET_KEY", ""),
		AlpacaPaper:     getenvBool("ALPACA_PAPER", true),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
