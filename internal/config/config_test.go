package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Auth.JWTSecret = "test-secret"
	return cfg
}

func TestDefaultsValidate(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with jwt secret should validate: %v", err)
	}
}

func TestValidateRejectsMissingJWTSecret(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for empty jwt_secret")
	}
	if !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("error should mention jwt_secret, got: %v", err)
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "replay"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown mode")
	}
}

func TestValidateArchiveModeRequiresS3(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "archive"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("archive mode without s3 should fail validation")
	}
	if !strings.Contains(err.Error(), "archive mode") {
		t.Errorf("error should mention archive mode, got: %v", err)
	}

	cfg.S3.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("archive mode with s3 enabled should validate: %v", err)
	}
}

func TestValidateRejectsBadEconomy(t *testing.T) {
	cfg := validConfig()
	cfg.Economy.MinStake = 0
	cfg.Economy.BonusMax = cfg.Economy.BonusMin - 1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for bad economy bounds")
	}
	if !strings.Contains(err.Error(), "min_stake") || !strings.Contains(err.Error(), "bonus_max") {
		t.Errorf("error should list both economy problems, got: %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for port 0")
	}
	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for port 70000")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "server"
log_level = "debug"

[server]
port = 9100

[auth]
jwt_secret = "file-secret"
token_ttl = "48h"

[economy]
min_stake = 500
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL.Duration != 48*time.Hour {
		t.Errorf("token_ttl = %s, want 48h", cfg.Auth.TokenTTL)
	}
	if cfg.Economy.MinStake != 500 {
		t.Errorf("min_stake = %d, want 500", cfg.Economy.MinStake)
	}
	// Untouched sections keep their defaults.
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q, want default", cfg.Redis.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate: %v", err)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`[auth]`+"\n"+`jwt_secret = "file-secret"`+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("POOLBOOK_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("POOLBOOK_SERVER_PORT", "9200")
	t.Setenv("POOLBOOK_ECONOMY_BONUS_MAX", "2000000")
	t.Setenv("POOLBOOK_NOTIFY_EVENTS", "market_settled, stake_placed")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("jwt_secret = %q, want env override", cfg.Auth.JWTSecret)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, want 9200", cfg.Server.Port)
	}
	if cfg.Economy.BonusMax != 2_000_000 {
		t.Errorf("bonus_max = %d, want 2000000", cfg.Economy.BonusMax)
	}
	want := []string{"market_settled", "stake_placed"}
	if len(cfg.Notify.Events) != len(want) || cfg.Notify.Events[0] != want[0] || cfg.Notify.Events[1] != want[1] {
		t.Errorf("events = %v, want %v", cfg.Notify.Events, want)
	}
}
