// Package config loads overlayd settings from TOML or YAML, applies
// OVERLAY_* environment overrides and fills defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"overlaycore/internal/analysis/overlay"
	"overlaycore/internal/store"
)

const (
	EnvAddr       = "OVERLAY_ADDR"
	EnvLogLevel   = "OVERLAY_LOG_LEVEL"
	EnvMaxCandles = "OVERLAY_MAX_CANDLES"

	defaultAddr  = ":8090"
	defaultAudit = "@every 5m"
)

type Config struct {
	Server    ServerConfig   `toml:"server" yaml:"server"`
	Log       LogConfig      `toml:"log" yaml:"log"`
	Window    WindowConfig   `toml:"window" yaml:"window"`
	Detectors overlay.Params `toml:"detectors" yaml:"detectors"`
}

type ServerConfig struct {
	Addr               string `toml:"addr" yaml:"addr"`
	// ReadTimeoutSeconds bounds reading one request, body included.
	ReadTimeoutSeconds int    `toml:"read_timeout_seconds" yaml:"read_timeout_seconds"`
}

type LogConfig struct {
	Level   string `toml:"level" yaml:"level"`
	Service string `toml:"service" yaml:"service"`
}

type WindowConfig struct {
	MaxCandles int    `toml:"max_candles" yaml:"max_candles"`
	// StoreMax caps each stored window; 0 means the larger of 5000 and
	// MaxCandles.
	StoreMax   int    `toml:"store_max" yaml:"store_max"`
	// Audit is the cron spec of the stored-window gap audit; "off" disables it.
	Audit      string `toml:"audit" yaml:"audit"`
}

func Default() Config {
	return Config{
		Server:    ServerConfig{Addr: defaultAddr, ReadTimeoutSeconds: 15},
		Log:       LogConfig{Level: "info", Service: "overlayd"},
		Window:    WindowConfig{MaxCandles: overlay.DefaultMaxCandles, Audit: defaultAudit},
		Detectors: overlay.DefaultParams(),
	}
}

// Load reads path over the defaults. A missing file is not an error; the
// format follows the extension (.toml, .yaml, .yml).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := decode(path, data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	fillDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(cfg)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func encode(path string, cfg *Config) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Marshal(cfg)
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxCandles)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvMaxCandles, v, err)
		}
		cfg.Window.MaxCandles = n
	}
	return nil
}

func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = def.Server.ReadTimeoutSeconds
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Service == "" {
		cfg.Log.Service = def.Log.Service
	}
	if cfg.Window.MaxCandles == 0 {
		cfg.Window.MaxCandles = def.Window.MaxCandles
	}
	if strings.TrimSpace(cfg.Window.Audit) == "" {
		cfg.Window.Audit = def.Window.Audit
	}
	if cfg.Window.StoreMax == 0 {
		cfg.Window.StoreMax = max(store.DefaultMaxLen, cfg.Window.MaxCandles)
	}
}

// Validate checks ranges that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Window.MaxCandles < 0 {
		return fmt.Errorf("window.max_candles must be positive")
	}
	if c.Window.StoreMax < c.Window.MaxCandles {
		return fmt.Errorf("window.store_max (%d) must be at least window.max_candles (%d)", c.Window.StoreMax, c.Window.MaxCandles)
	}
	return nil
}
