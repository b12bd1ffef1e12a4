package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	if cfg.Server.Address() != "127.0.0.1:8310" {
		t.Errorf("default address = %q", cfg.Server.Address())
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default log level = %q", cfg.Log.Level)
	}
	if len(cfg.CORS.Origins()) == 0 {
		t.Error("no default CORS origins")
	}
}

func TestLoadINIFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.conf")
	body := "[server]\nhost = 0.0.0.0\nport = 9000\n\n[log]\nlevel = debug\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Server.Address() != "0.0.0.0:9000" {
		t.Errorf("address = %q", cfg.Server.Address())
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	// Values not in the file keep their defaults.
	if cfg.RateLimit.Burst != 3 {
		t.Errorf("ratelimit burst = %d, want default 3", cfg.RateLimit.Burst)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("missing file should not be fatal: %v", err)
	}
	if cfg.Server.Port != 8310 {
		t.Errorf("port = %d, want default", cfg.Server.Port)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("DPL_SERVER_PORT", "9999")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("env override ignored: port = %d", cfg.Server.Port)
	}
}

func TestOriginsParsing(t *testing.T) {
	c := CORSConfig{AllowedOrigins: " http://a.example , http://b.example ,, "}
	got := c.Origins()
	if len(got) != 2 || got[0] != "http://a.example" || got[1] != "http://b.example" {
		t.Errorf("Origins() = %v", got)
	}
}
