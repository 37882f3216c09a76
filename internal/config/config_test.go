package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTPAddr != ":5000" {
		t.Fatalf("default http addr = %q", cfg.App.HTTPAddr)
	}
	if cfg.App.ReminderHourUTC != 8 {
		t.Fatalf("default reminder hour = %d", cfg.App.ReminderHourUTC)
	}
	if cfg.App.NotifyTimeout != 5*time.Second {
		t.Fatalf("default notify timeout = %v", cfg.App.NotifyTimeout)
	}
}

func TestLoad_FileWithPartialValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"app": {
			"http_addr": ":9000",
			"notify_timeout": "2s",
			"reminder_hour_utc": 6
		},
		"security": {"jwt_secret": "file_secret"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTPAddr != ":9000" {
		t.Fatalf("http addr = %q, want :9000", cfg.App.HTTPAddr)
	}
	if cfg.App.NotifyTimeout != 2*time.Second {
		t.Fatalf("notify timeout = %v, want 2s", cfg.App.NotifyTimeout)
	}
	if cfg.App.ReminderHourUTC != 6 {
		t.Fatalf("reminder hour = %d, want 6", cfg.App.ReminderHourUTC)
	}
	if cfg.Security.JWTSecret != "file_secret" {
		t.Fatalf("jwt secret = %q", cfg.Security.JWTSecret)
	}
	// 未给出的字段回落到默认值
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"app": {"http_addr": ":9000"}, "security": {"jwt_secret": "file_secret"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("APP_HTTP_ADDR", ":7000")
	t.Setenv("JWT_SECRET", "env_secret")
	t.Setenv("REDIS_ADDR", "redis-prod:6379")
	t.Setenv("APP_REMINDER_HOUR_UTC", "22")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTPAddr != ":7000" {
		t.Fatalf("http addr = %q, env must win", cfg.App.HTTPAddr)
	}
	if cfg.Security.JWTSecret != "env_secret" {
		t.Fatalf("jwt secret = %q, env must win", cfg.Security.JWTSecret)
	}
	if cfg.Redis.Addr != "redis-prod:6379" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.App.ReminderHourUTC != 22 {
		t.Fatalf("reminder hour = %d, want 22", cfg.App.ReminderHourUTC)
	}
}

func TestLoad_DBEnvRebuildDSN(t *testing.T) {
	t.Setenv("DB_HOST", "db-prod")
	t.Setenv("DB_PASSWORD", "s3cret")
	t.Setenv("DB_NAME", "taskkeeper_prod")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	parsed := parseMySQLDSN(cfg.MySQL.DSN)
	if parsed.Addr != "db-prod:3306" {
		t.Fatalf("dsn addr = %q", parsed.Addr)
	}
	if parsed.Passwd != "s3cret" {
		t.Fatalf("dsn password = %q", parsed.Passwd)
	}
	if parsed.DBName != "taskkeeper_prod" {
		t.Fatalf("dsn db name = %q", parsed.DBName)
	}
}

func TestLoad_FullDSNEnvWins(t *testing.T) {
	t.Setenv("DB_DSN", "app:pw@tcp(10.0.0.2:3307)/tasks?parseTime=true")
	t.Setenv("DB_HOST", "ignored")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MySQL.DSN != "app:pw@tcp(10.0.0.2:3307)/tasks?parseTime=true" {
		t.Fatalf("dsn = %q, DB_DSN must win verbatim", cfg.MySQL.DSN)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid json")
	}
}
