package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.BasePath != "/api" || cfg.Server.Addr != "127.0.0.1:3001" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	ttl, err := cfg.TokenTTL()
	if err != nil || ttl != 24*time.Hour {
		t.Fatalf("token ttl: %v %v", ttl, err)
	}
	if !cfg.Auth.AllowRegistration {
		t.Fatalf("registration should be open by default")
	}
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("auth:\n  jwt_secret: prod\nlog:\n  format: json\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Auth.JWTSecret != "prod" || cfg.Log.Format != "json" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Server.Addr == "" || cfg.Database.Driver != "sqlite" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"postgres without dsn": "database:\n  driver: postgres\n",
		"unknown driver":       "database:\n  driver: mysql\n",
		"bad ttl":              "auth:\n  token_ttl: soon\n",
		"relative base path":   "server:\n  base_path: api\n",
		"empty secret":         "auth:\n  jwt_secret: \"\"\n",
		"admin without pass":   "bootstrap:\n  admin:\n    email: root@example.com\n",
		"bad log format":       "log:\n  format: xml\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := FromYAML([]byte("server: [")); err == nil || !strings.Contains(err.Error(), "invalid config yaml") {
		t.Fatalf("expected yaml error, got %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg.Server.BasePath != "/api" {
		t.Fatalf("missing file should yield defaults: %+v %v", cfg, err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("server:\n  addr: \":8080\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil || cfg.Server.Addr != ":8080" {
		t.Fatalf("file not loaded: %+v %v", cfg, err)
	}
}
