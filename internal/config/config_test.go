package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Topic != "Sensor_Kursi_Alvin" {
		t.Fatalf("unexpected default topic: %s", cfg.Topic)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Fatalf("unexpected default http addr: %s", cfg.HTTPAddr)
	}
	if cfg.MQTTPassword != "" {
		t.Fatalf("default password must be empty, got %q", cfg.MQTTPassword)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Fatalf("unexpected default ttl: %s", cfg.CacheTTL)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MQTT_TOPIC", "other/topic")
	t.Setenv("CACHE_TTL", "30m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Topic != "other/topic" {
		t.Fatalf("env override ignored: %s", cfg.Topic)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Fatalf("ttl override ignored: %s", cfg.CacheTTL)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("topic: yaml/topic\nhttp_addr: \":8081\"\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Topic != "yaml/topic" {
		t.Fatalf("yaml overlay ignored: %s", cfg.Topic)
	}
	if cfg.HTTPAddr != ":8081" {
		t.Fatalf("yaml overlay ignored: %s", cfg.HTTPAddr)
	}
	// Fields absent from the file keep their env/default values.
	if cfg.BrokerURL == "" {
		t.Fatal("broker default lost in overlay")
	}
}

func TestLoadBadTTL(t *testing.T) {
	t.Setenv("CACHE_TTL", "not-a-duration")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for bad CACHE_TTL")
	}
}
