// Package config resolves client configuration: defaults, then a YAML file, then environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved client configuration.
type Config struct {
	LedgerAddr  string
	CACert      string
	Insecure    bool
	Plaintext   bool
	CallTimeout time.Duration

	HydrateRPS         float64
	HydrateBurst       int
	HydrateConcurrency int

	LogLevel        string
	ConfigDir       string
	MetricsTextfile string
}

// configFile mirrors config.yaml.
type configFile struct {
	Ledger struct {
		Addr        string `yaml:"addr"`
		CACert      string `yaml:"cacert"`
		Insecure    *bool  `yaml:"insecure"`
		Plaintext   *bool  `yaml:"plaintext"`
		CallTimeout string `yaml:"call_timeout"`
	} `yaml:"ledger"`
	Hydrate struct {
		RPS         float64 `yaml:"rps"`
		Burst       int     `yaml:"burst"`
		Concurrency int     `yaml:"concurrency"`
	} `yaml:"hydrate"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "promptvault")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "promptvault")
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LedgerAddr:         "localhost:8443",
		CallTimeout:        30 * time.Second,
		HydrateRPS:         20,
		HydrateBurst:       5,
		HydrateConcurrency: 4,
		LogLevel:           "warn",
		ConfigDir:          DefaultDir(),
	}
}

// Load resolves configuration in priority order: defaults -> file -> env.
// An empty path means config.yaml in the config directory; a missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	cfg.ConfigDir = envOrDefault("PV_CONFIG_DIR", cfg.ConfigDir)
	if path == "" {
		path = filepath.Join(cfg.ConfigDir, "config.yaml")
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := applyFile(&cfg, raw); err != nil {
			return Config{}, err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.LedgerAddr = envOrDefault("PV_LEDGER_ADDR", cfg.LedgerAddr)
	cfg.CACert = envOrDefault("PV_CACERT", cfg.CACert)
	cfg.Insecure = envBool("PV_INSECURE", cfg.Insecure)
	cfg.Plaintext = envBool("PV_PLAINTEXT", cfg.Plaintext)
	cfg.CallTimeout = envDuration("PV_CALL_TIMEOUT", cfg.CallTimeout)
	cfg.HydrateRPS = envFloat("PV_HYDRATE_RPS", cfg.HydrateRPS)
	cfg.LogLevel = envOrDefault("PV_LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsTextfile = envOrDefault("PV_METRICS_TEXTFILE", cfg.MetricsTextfile)

	return cfg, cfg.Validate()
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Ledger.Addr != "" {
		cfg.LedgerAddr = f.Ledger.Addr
	}
	if f.Ledger.CACert != "" {
		cfg.CACert = f.Ledger.CACert
	}
	if f.Ledger.Insecure != nil {
		cfg.Insecure = *f.Ledger.Insecure
	}
	if f.Ledger.Plaintext != nil {
		cfg.Plaintext = *f.Ledger.Plaintext
	}
	if f.Ledger.CallTimeout != "" {
		d, err := time.ParseDuration(f.Ledger.CallTimeout)
		if err != nil {
			return fmt.Errorf("parse config file: ledger.call_timeout: %w", err)
		}
		cfg.CallTimeout = d
	}
	if f.Hydrate.RPS > 0 {
		cfg.HydrateRPS = f.Hydrate.RPS
	}
	if f.Hydrate.Burst > 0 {
		cfg.HydrateBurst = f.Hydrate.Burst
	}
	if f.Hydrate.Concurrency > 0 {
		cfg.HydrateConcurrency = f.Hydrate.Concurrency
	}
	if f.Log.Level != "" {
		cfg.LogLevel = f.Log.Level
	}
	if f.Metrics.Textfile != "" {
		cfg.MetricsTextfile = f.Metrics.Textfile
	}
	return nil
}

// Validate rejects configurations the client cannot run with.
func (c Config) Validate() error {
	if c.LedgerAddr == "" {
		return errors.New("missing ledger address (PV_LEDGER_ADDR)")
	}
	if c.CallTimeout < 0 {
		return errors.New("call timeout must not be negative")
	}
	if c.HydrateConcurrency < 1 {
		return errors.New("hydrate concurrency must be at least 1")
	}
	if c.Insecure && c.Plaintext {
		return errors.New("insecure and plaintext are mutually exclusive")
	}
	return nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts Go durations ("15s") or bare seconds.
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
