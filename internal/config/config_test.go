package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://localhost:9000
tickers:
  - BTC
  - ETH
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.API.Lang != "uk" {
		t.Fatalf("lang default: got %q", cfg.API.Lang)
	}
	if cfg.API.ModelType != "xgb" {
		t.Fatalf("model_type default: got %q", cfg.API.ModelType)
	}
	if cfg.FetchInterval() != 15*time.Minute {
		t.Fatalf("interval default: got %s", cfg.FetchInterval())
	}
	if cfg.APITimeout() != 30*time.Second {
		t.Fatalf("timeout default: got %s", cfg.APITimeout())
	}
	if cfg.CallerCooldown() != 2*time.Second {
		t.Fatalf("caller cooldown default: got %s", cfg.CallerCooldown())
	}
	if cfg.RateLimit.GlobalLimit != 10 || cfg.GlobalWindow() != time.Minute {
		t.Fatalf("global limit defaults: got %d per %s", cfg.RateLimit.GlobalLimit, cfg.GlobalWindow())
	}
	if cfg.Web.Port != 8080 {
		t.Fatalf("port default: got %d", cfg.Web.Port)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing base url", "tickers: [BTC]"},
		{"missing tickers", "api:\n  base_url: http://localhost:9000"},
		{"bad interval", "api:\n  base_url: http://x\ntickers: [BTC]\nscheduler:\n  interval: quarterly"},
		{"telegram enabled without token", "api:\n  base_url: http://x\ntickers: [BTC]\ntelegram:\n  enabled: true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
