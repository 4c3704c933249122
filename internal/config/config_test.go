package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Fatalf("expected default http port, got %d", cfg.HTTP.Port)
	}
	if cfg.Story.DailyLimit != 5 {
		t.Fatalf("expected default daily limit 5, got %d", cfg.Story.DailyLimit)
	}
	if cfg.TTS.ResourceID != "volc.service_type.10050" {
		t.Fatalf("unexpected default tts resource id: %s", cfg.TTS.ResourceID)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ink.yaml")
	data := []byte("service_name: ink-test\nstory:\n  daily_limit: 9\ntts:\n  enabled: true\n  app_id: app\n  access_key: key\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != "ink-test" {
		t.Fatalf("expected service name override, got %s", cfg.ServiceName)
	}
	if cfg.Story.DailyLimit != 9 {
		t.Fatalf("expected daily limit 9, got %d", cfg.Story.DailyLimit)
	}
	if !cfg.TTS.Enabled {
		t.Fatal("expected tts enabled")
	}
	// untouched sections keep defaults
	if cfg.TTS.Endpoint == "" || cfg.TTS.SampleRate != 24000 {
		t.Fatalf("expected tts defaults preserved, got %+v", cfg.TTS)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INK_HTTP_PORT", "9090")
	t.Setenv("INK_STORE_PATH", "./tmp.db")
	t.Setenv("INK_STORY_DAILY_LIMIT", "2")
	t.Setenv("INK_TTS_ENABLED", "true")
	t.Setenv("INK_TTS_APP_ID", "my-app")
	t.Setenv("INK_TTS_ACCESS_KEY", "my-key")
	t.Setenv("INK_BUS_ENABLED", "true")
	t.Setenv("INK_BUS_EMBEDDED", "false")
	t.Setenv("INK_BUS_SERVERS", "nats://one:4222, nats://two:4222")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Fatalf("expected port override, got %d", cfg.HTTP.Port)
	}
	if cfg.Store.Path != "./tmp.db" {
		t.Fatalf("expected store path override, got %s", cfg.Store.Path)
	}
	if cfg.Story.DailyLimit != 2 {
		t.Fatalf("expected daily limit override, got %d", cfg.Story.DailyLimit)
	}
	if !cfg.TTS.Enabled || cfg.TTS.AppID != "my-app" || cfg.TTS.AccessKey != "my-key" {
		t.Fatalf("expected tts overrides, got %+v", cfg.TTS)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("INK_HTTP_PORT", "70000")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for out-of-range port")
	}

	t.Setenv("INK_HTTP_PORT", "8080")
	t.Setenv("INK_ADMISSION_LOCK_STALE_AFTER_MS", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for zero lock stale threshold")
	}
}
