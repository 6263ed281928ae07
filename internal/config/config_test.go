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
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != 8080 {
		t.Fatalf("host:port = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.RequestTimeout != 30*time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("timeouts = %v / %v", cfg.RequestTimeout, cfg.ShutdownTimeout)
	}
	if !cfg.MetricsEnabled {
		t.Fatal("metrics should default to enabled")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ZONECORE_SERVER_PORT", "9999")
	t.Setenv("ZONECORE_SERVER_HOST", "127.0.0.1")
	t.Setenv("ZONECORE_SERVER_METRICS_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9999 || cfg.Host != "127.0.0.1" {
		t.Fatalf("host:port = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.MetricsEnabled {
		t.Fatal("metrics should be disabled")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zonecore.yaml")
	data := "server:\n  port: 9090\n  request_timeout: 5s\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Port)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("request timeout = %v, want 5s", cfg.RequestTimeout)
	}
	// Keys absent from the file fall back to defaults.
	if cfg.Host != "0.0.0.0" {
		t.Fatalf("host = %s", cfg.Host)
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zonecore.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ZONECORE_SERVER_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 7070 {
		t.Fatalf("port = %d, want env override 7070", cfg.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*ServerConfig) {}, wantErr: false},
		{name: "zero port", mutate: func(c *ServerConfig) { c.Port = 0 }, wantErr: true},
		{name: "port too large", mutate: func(c *ServerConfig) { c.Port = 70000 }, wantErr: true},
		{name: "zero request timeout", mutate: func(c *ServerConfig) { c.RequestTimeout = 0 }, wantErr: true},
		{name: "negative shutdown timeout", mutate: func(c *ServerConfig) { c.ShutdownTimeout = -time.Second }, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := &ServerConfig{Host: "10.0.0.1", Port: 8443}
	if got := cfg.Addr(); got != "10.0.0.1:8443" {
		t.Fatalf("Addr() = %q", got)
	}
}
