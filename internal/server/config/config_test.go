package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yml")
	body := []byte("port: 9999\nlog_level: debug\ngenerator_endpoint: https://gen.example/v1\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9999 || cfg.LogLevel != "debug" {
		t.Errorf("loaded config = %+v", cfg)
	}
	if cfg.GeneratorEndpoint != "https://gen.example/v1" {
		t.Errorf("generator endpoint = %q", cfg.GeneratorEndpoint)
	}
	// Fields absent from the file keep their defaults.
	if cfg.MaxSessions != DefaultConfig().MaxSessions {
		t.Errorf("max_sessions = %d, want default", cfg.MaxSessions)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("got %v, want fs.ErrNotExist", err)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(path, []byte("port: [not a number\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed YAML accepted")
	}
}

func TestMergeFlagPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 7000 // explicitly set via flag

	fromFile := DefaultConfig()
	fromFile.Port = 9000
	fromFile.LogLevel = "warn"

	Merge(cfg, fromFile, map[string]bool{"port": true})

	if cfg.Port != 7000 {
		t.Errorf("explicit flag overridden: port = %d", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("file value not applied: log_level = %q", cfg.LogLevel)
	}
}
