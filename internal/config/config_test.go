package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/foodline")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.MaxContentBytes != 4096 {
		t.Errorf("MaxContentBytes = %d, want 4096", cfg.MaxContentBytes)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Errorf("StoreTimeout = %v, want 5s", cfg.StoreTimeout)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty (bridge disabled)", cfg.RedisAddr)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", "secret")
	if _, err := Load(); err == nil {
		t.Error("Load without DB_DSN succeeded")
	}

	t.Setenv("DB_DSN", "postgres://localhost/foodline")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Error("Load without JWT_SECRET succeeded")
	}
}

func TestLoadBarePort(t *testing.T) {
	setRequired(t)
	t.Setenv("ADDR", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("Addr = %q, want :9000", cfg.Addr)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad max content", key: "MAX_CONTENT_BYTES", value: "lots"},
		{name: "zero max content", key: "MAX_CONTENT_BYTES", value: "0"},
		{name: "bad store timeout", key: "STORE_TIMEOUT", value: "soon"},
		{name: "negative store timeout", key: "STORE_TIMEOUT", value: "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load with %s=%q succeeded", tt.key, tt.value)
			}
		})
	}
}
