package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.General.DBPath == "" {
		t.Error("default db path missing")
	}
	if cfg.General.LogLevel != "info" {
		t.Errorf("default log level = %q, want info", cfg.General.LogLevel)
	}
	if cfg.Schedule.ScanInterval.Duration != time.Hour {
		t.Errorf("default scan interval = %v, want 1h", cfg.Schedule.ScanInterval.Duration)
	}
	if cfg.API.Workers != 8 {
		t.Errorf("default workers = %d, want 8", cfg.API.Workers)
	}
	if cfg.API.RequestsPerSecond != 5 {
		t.Errorf("default rate = %v, want 5", cfg.API.RequestsPerSecond)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[general]
db_path = "/tmp/keeper.db"
log_level = "debug"

[schedule]
scan_interval = "30m"
default_check_rate = "6h"

[api]
workers = 4
cache_ttl = "90s"
requests_per_second = 2.5
confirm_timeout = "5m"

[telegram]
chat_id = "12345"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.DBPath != "/tmp/keeper.db" {
		t.Errorf("db path = %q", cfg.General.DBPath)
	}
	if cfg.General.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.General.LogLevel)
	}
	if cfg.Schedule.ScanInterval.Duration != 30*time.Minute {
		t.Errorf("scan interval = %v", cfg.Schedule.ScanInterval.Duration)
	}
	if cfg.Schedule.DefaultCheckRate.Duration != 6*time.Hour {
		t.Errorf("check rate = %v", cfg.Schedule.DefaultCheckRate.Duration)
	}
	if cfg.API.Workers != 4 {
		t.Errorf("workers = %d", cfg.API.Workers)
	}
	if cfg.API.CacheTTL.Duration != 90*time.Second {
		t.Errorf("cache ttl = %v", cfg.API.CacheTTL.Duration)
	}
	if cfg.Telegram.ChatID != "12345" {
		t.Errorf("chat id = %q", cfg.Telegram.ChatID)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[general]\nlog_level = \"warn\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.LogLevel != "warn" {
		t.Errorf("log level = %q", cfg.General.LogLevel)
	}
	if cfg.API.Workers != 8 {
		t.Errorf("untouched workers = %d, want default 8", cfg.API.Workers)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[schedule]\nscan_interval = \"soon\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TELEGRAM_API_KEY", "tok-abc")
	t.Setenv("TELEGRAM_CHAT_ID", "chat-1")

	cfg := DefaultConfig()
	cfg.FromEnv()
	if cfg.Telegram.Token != "tok-abc" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.ChatID != "chat-1" {
		t.Errorf("chat id = %q", cfg.Telegram.ChatID)
	}

	// The config file wins over the environment.
	cfg = DefaultConfig()
	cfg.Telegram.Token = "from-file"
	cfg.FromEnv()
	if cfg.Telegram.Token != "from-file" {
		t.Errorf("token = %q, want from-file", cfg.Telegram.Token)
	}
}
