package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_CLIENT_ID", "client")
	t.Setenv("DISCORD_CLIENT_SECRET", "secret")
	t.Setenv("DISCORD_REDIRECT_URI", "http://localhost:8000/auth")
	t.Setenv("DISCORD_API_URL", "https://Discord.com/api/v10/")
	t.Setenv("BOT_TOKEN", "bot")
	t.Setenv("SETTINGS_FILE", "json/guild_settings.json")
	t.Setenv("PREFIXES_FILE", "json/prefixes.json")
}

func TestLoadFromEnv(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Discord.APIURL != "https://discord.com/api/v10" {
		t.Fatalf("expected normalized api url, got %q", cfg.Discord.APIURL)
	}
	if cfg.Storage.Backend != BackendJSON {
		t.Fatalf("expected json backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Session.CookieName != "session" {
		t.Fatalf("expected default cookie name, got %q", cfg.Session.CookieName)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("SETTINGS_FILE", "")

	_, err := Load("")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "BOT_TOKEN") || !strings.Contains(err.Error(), "SETTINGS_FILE") {
		t.Fatalf("expected both missing keys in error, got %q", err.Error())
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "http_addr: \":9000\"\naudit:\n  queue_size: 8\nstorage:\n  backend: postgres\n  database_url: postgres://localhost/panel\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AUDIT_QUEUE_SIZE", "16")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("expected :9000, got %q", cfg.HTTPAddr)
	}
	if cfg.Audit.QueueSize != 16 {
		t.Fatalf("expected env override 16, got %d", cfg.Audit.QueueSize)
	}
	if cfg.Storage.Backend != BackendPostgres {
		t.Fatalf("expected postgres backend, got %q", cfg.Storage.Backend)
	}
}

func TestLoadDotEnv(t *testing.T) {
	setRequiredEnv(t)
	envPath := filepath.Join(t.TempDir(), "panel.env")
	if err := os.WriteFile(envPath, []byte("HTTP_ADDR=:7000\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("ENV_FILE", envPath)
	t.Setenv("HTTP_ADDR", "")
	os.Unsetenv("HTTP_ADDR")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Fatalf("expected :7000 from env file, got %q", cfg.HTTPAddr)
	}
	os.Unsetenv("HTTP_ADDR")
}

func TestBuildLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.log")
	logger, err := BuildLogger("debug", LogFileConfig{Path: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("expected log line in file, got %q", string(data))
	}
}
