package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Auth:   AuthConfig{JWTSecret: "0123456789abcdef-test"},
		Mail:   MailConfig{Driver: "console"},
		Queue:  QueueConfig{MaxRetry: 3, BackoffBase: time.Second, BackoffMax: time.Minute},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_ShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.JWTSecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for short jwt secret")
	}
}

func TestValidate_SendgridWithoutKey(t *testing.T) {
	cfg := validConfig()
	cfg.Mail.Driver = "sendgrid"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sendgrid without api key")
	}
}

func TestValidate_UnknownMailDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Mail.Driver = "pigeon"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown mail driver")
	}
}

func TestValidate_BackoffOrder(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.BackoffBase = time.Hour
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when backoff_base exceeds backoff_max")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9090\nauth:\n  jwt_secret: file-secret-0123456789\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CRISP_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected env override log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Queue.MaxRetry != 5 {
		t.Errorf("expected default max_retry 5, got %d", cfg.Queue.MaxRetry)
	}
	if cfg.Auth.ResetTokenTTL != 30*time.Minute {
		t.Errorf("expected default reset ttl 30m, got %v", cfg.Auth.ResetTokenTTL)
	}
}
