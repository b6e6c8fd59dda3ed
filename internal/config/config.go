package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates the service configuration, loaded from environment
// variables at process start.
type Config struct {
	Addr        string
	DatabaseDSN string
	JWTSecret   string

	// RedisAddr empty disables the broadcast trigger bridge.
	RedisAddr             string
	RedisBroadcastChannel string

	// MaxContentBytes bounds a single chat message body.
	MaxContentBytes int
	// StoreTimeout bounds the persistence call inside message routing.
	StoreTimeout time.Duration
}

func Load() (*Config, error) {
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		return nil, fmt.Errorf("DB_DSN is not set")
	}

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	maxContent, err := parseIntEnv("MAX_CONTENT_BYTES", 4096)
	if err != nil {
		return nil, err
	}
	if maxContent <= 0 {
		return nil, fmt.Errorf("MAX_CONTENT_BYTES must be positive")
	}

	storeTimeout, err := parseDurationEnv("STORE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		Addr:                  addrFromEnv(),
		DatabaseDSN:           dsn,
		JWTSecret:             secret,
		RedisAddr:             strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisBroadcastChannel: getEnvOrDefault("REDIS_BROADCAST_CHANNEL", "notify:broadcast"),
		MaxContentBytes:       maxContent,
		StoreTimeout:          storeTimeout,
	}, nil
}

func addrFromEnv() string {
	addr := strings.TrimSpace(os.Getenv("ADDR"))
	if addr == "" {
		return ":8080"
	}
	if strings.Contains(addr, ":") {
		return addr
	}
	// Allow a bare port number.
	return ":" + addr
}

func getEnvOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %q", key, raw)
	}
	return n, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %q", key, raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
