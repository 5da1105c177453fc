package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Redis.GetRedisAddr() != "localhost:6379" {
		t.Errorf("expected default redis addr, got %q", cfg.Redis.GetRedisAddr())
	}
	if cfg.Auth.ExpiryHours != 24 {
		t.Errorf("expected default expiry 24h, got %d", cfg.Auth.ExpiryHours)
	}
	if len(cfg.RateLimit.Tiers) == 0 {
		t.Error("expected default tier multipliers")
	}
}

func TestLoadParsesRateLimitConfig(t *testing.T) {
	path := writeConfig(t, `{
		"rate_limit": {
			"policies": [
				{ "endpoint": "/search", "capacity": 30, "window": "minute" }
			],
			"tiers": { "free": 1.0, "premium": 2.0 },
			"default": { "capacity": 60, "window": "minute" },
			"adaptive": {
				"low_load_threshold": 50,
				"high_load_threshold": 500,
				"boost_factor": 1.5,
				"shed_factor": 0.5,
				"load_window_seconds": 60
			}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.RateLimit.Policies) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(cfg.RateLimit.Policies))
	}
	if p := cfg.RateLimit.Policies[0]; p.Endpoint != "/search" || p.Capacity != 30 || p.Window != "minute" {
		t.Errorf("unexpected policy: %+v", p)
	}
	if cfg.RateLimit.Tiers["premium"] != 2.0 {
		t.Errorf("expected premium multiplier 2.0, got %v", cfg.RateLimit.Tiers["premium"])
	}
	if cfg.RateLimit.Adaptive.HighLoadThreshold != 500 {
		t.Errorf("expected high load threshold 500, got %d", cfg.RateLimit.Adaptive.HighLoadThreshold)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{
		"server": { "port": "8080" },
		"redis": { "host": "redis.internal" }
	}`)

	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("env PORT should override the file, got %q", cfg.Server.Port)
	}
	if cfg.Redis.Host != "redis.internal" {
		t.Errorf("file value should survive when no env override is set, got %q", cfg.Redis.Host)
	}
	if cfg.Redis.Password != "hunter2" {
		t.Errorf("env REDIS_PASSWORD should be applied, got %q", cfg.Redis.Password)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("env JWT_SECRET should be applied, got %q", cfg.Auth.JWTSecret)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
