package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/christopherklint97/slotwise/internal/smartguess"
)

type Config struct {
	Storage    StorageConfig    `toml:"storage"`
	SmartGuess SmartGuessConfig `toml:"smart_guess"`
	Inbox      InboxConfig      `toml:"inbox"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Log        LogConfig        `toml:"log"`
}

type StorageConfig struct {
	Path string `toml:"path"` // empty means <config dir>/slotwise.db
}

type SmartGuessConfig struct {
	DistanceMeters  float64 `toml:"distance_meters"`
	StrikeThreshold int     `toml:"strike_threshold"`
	CacheTTLSeconds int     `toml:"cache_ttl_seconds"`
}

type InboxConfig struct {
	Dir             string `toml:"dir"` // empty means <config dir>/inbox
	IntervalSeconds int    `toml:"interval_seconds"`
}

type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
	QueueSize  int    `toml:"queue_size"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

func DefaultConfig() Config {
	return Config{
		SmartGuess: SmartGuessConfig{
			DistanceMeters:  100,
			StrikeThreshold: 3,
			CacheTTLSeconds: 300,
		},
		Inbox: InboxConfig{
			IntervalSeconds: 60,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:9464",
			QueueSize:  1024,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Policy converts the smart guess section, falling back to defaults for
// non-positive values.
func (c SmartGuessConfig) Policy() smartguess.Policy {
	p := smartguess.DefaultPolicy()
	if c.DistanceMeters > 0 {
		p.DistanceMeters = c.DistanceMeters
	}
	if c.StrikeThreshold > 0 {
		p.StrikeThreshold = c.StrikeThreshold
	}
	if c.CacheTTLSeconds > 0 {
		p.CacheTTL = time.Duration(c.CacheTTLSeconds) * time.Second
	}
	return p
}

func (c InboxConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "slotwise"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DBPath returns the configured database path or the default one.
func (c *Config) DBPath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "slotwise.db"), nil
}

// InboxDir returns the configured batch inbox or the default one.
func (c *Config) InboxDir() (string, error) {
	if c.Inbox.Dir != "" {
		return c.Inbox.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "inbox"), nil
}

func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SLOTWISE_DB"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("SLOTWISE_INBOX"); v != "" {
		cfg.Inbox.Dir = v
	}
	if v := os.Getenv("SLOTWISE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SLOTWISE_METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// Set persists a single "section.key" value to the config file using a
// read-modify-write approach to preserve other settings. The value is stored
// as the first of integer, float, boolean or string that the field accepts.
func Set(dotted, value string) error {
	section, key, ok := strings.Cut(dotted, ".")
	if !ok || section == "" || key == "" {
		return fmt.Errorf("config key must look like section.key, got %q", dotted)
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	cfg := make(map[string]any)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	sec, ok := cfg[section].(map[string]any)
	if !ok {
		sec = make(map[string]any)
	}
	cfg[section] = sec

	var out []byte
	for _, v := range typedValues(value) {
		sec[key] = v
		out, err = toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		// reject values that would make the file unloadable
		check := DefaultConfig()
		if err = toml.Unmarshal(out, &check); err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", dotted, err)
	}

	if err := EnsureConfigDir(); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

// typedValues lists the TOML encodings to try for s, most specific first.
func typedValues(s string) []any {
	var out []any
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		out = append(out, i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		out = append(out, f)
	}
	if s == "true" || s == "false" {
		out = append(out, s == "true")
	}
	return append(out, s)
}
