package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
)

// Environment variables that override values loaded from the config file.
const (
	EnvRPCURL       = "ETHEREUM_RPC_URL"
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvAPIPort      = "GATEWAY_API_PORT"
)

// Config holds the gateway configuration
type Config struct {
	General   GeneralConfig   `toml:"general"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Journal   JournalConfig   `toml:"journal"`
	DevNode   DevNodeConfig   `toml:"devnode"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	EthereumRPCURL string `toml:"ethereum_rpc_url"`
	APIPort        string `toml:"api_port"`
	WatchInterval  string `toml:"watch_interval"` // block poll interval, e.g. "2s"
}

// TelemetryConfig holds trace settings
type TelemetryConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint"` // empty disables trace export
	ServiceName  string `toml:"service_name"`
}

// JournalConfig holds the balance journal database path
type JournalConfig struct {
	DBPath string `toml:"db_path"`
}

// DevNodeConfig holds settings for the supervised dev-node process
type DevNodeConfig struct {
	Binary       string `toml:"binary"`
	Host         string `toml:"host"`
	Port         string `toml:"port"`
	StateFile    string `toml:"state_file"`
	DumpInterval int    `toml:"dump_interval"` // seconds between state dumps
}

// DefaultDir returns the gateway's dot-directory under the user's home.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".devnet-gateway"), nil
}

// DefaultConfig returns the default configuration values
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			EthereumRPCURL: "http://127.0.0.1:8545",
			APIPort:        ":3030",
			WatchInterval:  "2s",
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "",
			ServiceName:  "devnet-gateway",
		},
		Journal: JournalConfig{
			DBPath: "./data/journal_db",
		},
		DevNode: DevNodeConfig{
			Binary:       "anvil",
			Host:         "0.0.0.0",
			Port:         "8545",
			StateFile:    "./data/state/devnet-state.json",
			DumpInterval: 1,
		},
	}
}

// LoadConfig reads from config.toml, applies environment overrides and
// returns the Config struct
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(file, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// EnvConfig returns the defaults with environment overrides applied, for
// running without a config file (the usual case inside the compose topology).
func EnvConfig() Config {
	cfg := DefaultConfig()
	applyEnv(&cfg)
	return cfg
}

// applyEnv overrides file values with OS environment variables. The env
// variables win so the compose topology can rewire the service without
// touching the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvRPCURL); v != "" {
		cfg.General.EthereumRPCURL = v
	}
	if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv(EnvAPIPort); v != "" {
		cfg.General.APIPort = v
	}
	cfg.General.APIPort = normalizeAddr(cfg.General.APIPort)
}

// normalizeAddr turns a bare port like "3030" into ":3030" so it works as an
// http.Server listen address. Values that already carry a host or colon pass
// through unchanged.
func normalizeAddr(v string) string {
	if v != "" && !strings.Contains(v, ":") {
		return ":" + v
	}
	return v
}

// Save writes the configuration to the given path in TOML format
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
