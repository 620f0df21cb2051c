package config

import (
	"os"
	"path/filepath"
	"testing"
)

// clearEnv blanks the override variables so ambient environment cannot leak
// into file-loading tests.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvRPCURL, "")
	t.Setenv(EnvOTLPEndpoint, "")
	t.Setenv(EnvAPIPort, "")
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[general]
ethereum_rpc_url = "http://devnode:8545"
api_port = ":4000"

[telemetry]
otlp_endpoint = "http://collector:4317"
service_name = "gateway-test"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.General.EthereumRPCURL != "http://devnode:8545" {
		t.Errorf("unexpected rpc url: %s", cfg.General.EthereumRPCURL)
	}
	if cfg.General.APIPort != ":4000" {
		t.Errorf("unexpected api port: %s", cfg.General.APIPort)
	}
	if cfg.Telemetry.OTLPEndpoint != "http://collector:4317" {
		t.Errorf("unexpected otlp endpoint: %s", cfg.Telemetry.OTLPEndpoint)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Journal.DBPath != DefaultConfig().Journal.DBPath {
		t.Errorf("journal default not preserved: %s", cfg.Journal.DBPath)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[general]
ethereum_rpc_url = "http://from-file:8545"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv(EnvRPCURL, "http://from-env:8545")
	t.Setenv(EnvOTLPEndpoint, "http://collector-env:4317")
	t.Setenv(EnvAPIPort, ":9999")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.General.EthereumRPCURL != "http://from-env:8545" {
		t.Errorf("env override lost: %s", cfg.General.EthereumRPCURL)
	}
	if cfg.Telemetry.OTLPEndpoint != "http://collector-env:4317" {
		t.Errorf("env override lost: %s", cfg.Telemetry.OTLPEndpoint)
	}
	if cfg.General.APIPort != ":9999" {
		t.Errorf("env override lost: %s", cfg.General.APIPort)
	}
}

func TestEnvConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvRPCURL, "http://env-only:8545")

	cfg := EnvConfig()
	if cfg.General.EthereumRPCURL != "http://env-only:8545" {
		t.Errorf("env override lost: %s", cfg.General.EthereumRPCURL)
	}
	if cfg.General.APIPort != DefaultConfig().General.APIPort {
		t.Errorf("default not preserved: %s", cfg.General.APIPort)
	}
}

func TestBarePortNormalized(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIPort, "3030")

	if got := EnvConfig().General.APIPort; got != ":3030" {
		t.Errorf("bare env port not normalized: %q", got)
	}

	// Addresses that already carry a colon pass through untouched.
	for _, addr := range []string{":4000", "0.0.0.0:4000", "localhost:4000"} {
		t.Setenv(EnvAPIPort, addr)
		if got := EnvConfig().General.APIPort; got != addr {
			t.Errorf("address %q rewritten to %q", addr, got)
		}
	}

	// The same applies to a bare port from the config file.
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[general]
api_port = "8080"
`
	t.Setenv(EnvAPIPort, "")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.General.APIPort != ":8080" {
		t.Errorf("bare file port not normalized: %q", cfg.General.APIPort)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	want := DefaultConfig()
	want.General.EthereumRPCURL = "http://devnode:8545"
	want.DevNode.StateFile = "/var/lib/devnode/state.json"

	if err := want.Save(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if got.General.EthereumRPCURL != want.General.EthereumRPCURL {
		t.Errorf("rpc url lost in round trip: %s", got.General.EthereumRPCURL)
	}
	if got.DevNode.StateFile != want.DevNode.StateFile {
		t.Errorf("state file lost in round trip: %s", got.DevNode.StateFile)
	}
}
