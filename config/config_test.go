package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.DevMode {
		t.Fatalf("generated default must enable dev mode")
	}
	if cfg.RPCAddress != ":8645" || cfg.MetricsAddress != ":9090" {
		t.Fatalf("unexpected default addresses: %+v", cfg)
	}
	if cfg.EventBuffer != 1024 {
		t.Fatalf("unexpected default event buffer: %d", cfg.EventBuffer)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file must be written: %v", err)
	}

	// A second load reads the generated file back.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if reloaded.DataDir != cfg.DataDir {
		t.Fatalf("reloaded config mismatch: %q vs %q", reloaded.DataDir, cfg.DataDir)
	}
}

func TestLoadAppliesDefaultsToPartialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "DevMode = true\nRPCAddress = \":9999\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.RPCAddress != ":9999" {
		t.Fatalf("explicit value must win, got %q", cfg.RPCAddress)
	}
	if cfg.MetricsAddress != ":9090" || cfg.DataDir == "" {
		t.Fatalf("defaults must fill the gaps: %+v", cfg)
	}
}

func TestValidateRejectsIncompleteRegistries(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "missing-address.toml")
	content := "DevMode = true\n\n[[Registries]]\nEndpoint = \"http://registry.example\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("registry without address must be rejected")
	}

	path = filepath.Join(dir, "missing-endpoint.toml")
	content = "DevMode = false\n\n[[Registries]]\nAddress = \"0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("registry without endpoint must be rejected outside dev mode")
	}

	path = filepath.Join(dir, "no-registries.toml")
	if err := os.WriteFile(path, []byte("DevMode = false\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("empty registry set must be rejected outside dev mode")
	}
}
