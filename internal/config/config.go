// Package config loads mmsget settings from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/zsiec/mmsget/internal/httpstream"
	"github.com/zsiec/mmsget/internal/mmsh"
)

// Environment variables that override file settings.
const (
	EnvUserAgent   = "MMSGET_USER_AGENT"
	EnvClientGUID  = "MMSGET_CLIENT_GUID"
	EnvMaxResends  = "MMSGET_MAX_RESENDS"
	EnvInterval    = "MMSGET_REQUEST_INTERVAL"
	EnvLogLevel    = "MMSGET_LOG_LEVEL"
	EnvMetricsAddr = "MMSGET_METRICS_ADDR"
)

// Download is one stream to fetch.
type Download struct {
	URL    string
	Output string
	Seek   time.Duration
}

// Config holds every tunable of the CLI.
type Config struct {
	UserAgent  string
	ClientGUID string

	// MaxResends bounds request restarts after protocol corruption per
	// download. Zero disables restarts.
	MaxResends int

	// RequestInterval is the minimum spacing between requests of one
	// download; RequestBurst requests may be issued back to back.
	RequestInterval time.Duration
	RequestBurst    int

	ChunkSize                 int
	LogLevel                  slog.Level
	MetricsAddr               string
	BandwidthLimitedSelection bool

	Downloads []Download
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		UserAgent:       mmsh.DefaultUserAgent,
		MaxResends:      mmsh.DefaultMaxResends,
		RequestInterval: 250 * time.Millisecond,
		RequestBurst:    2,
		ChunkSize:       httpstream.DefaultChunkSize,
		LogLevel:        slog.LevelInfo,
	}
}

type fileConfig struct {
	UserAgent                 string         `toml:"user_agent"`
	ClientGUID                string         `toml:"client_guid"`
	MaxResends                int            `toml:"max_resends"`
	RequestInterval           string         `toml:"request_interval"`
	RequestBurst              int            `toml:"request_burst"`
	ChunkSize                 int            `toml:"chunk_size"`
	LogLevel                  string         `toml:"log_level"`
	MetricsAddr               string         `toml:"metrics_addr"`
	BandwidthLimitedSelection bool           `toml:"bandwidth_limited_selection"`
	Downloads                 []fileDownload `toml:"download"`
}

type fileDownload struct {
	URL    string `toml:"url"`
	Output string `toml:"output"`
	Seek   string `toml:"seek"`
}

// Load reads the TOML file at path over the defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		slog.Warn("unknown config keys ignored", "keys", undecoded)
	}

	if meta.IsDefined("user_agent") {
		cfg.UserAgent = strings.TrimSpace(raw.UserAgent)
	}
	if meta.IsDefined("client_guid") {
		cfg.ClientGUID = strings.TrimSpace(raw.ClientGUID)
	}
	if meta.IsDefined("max_resends") {
		cfg.MaxResends = raw.MaxResends
	}
	if meta.IsDefined("request_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RequestInterval))
		if err != nil {
			return fmt.Errorf("parse request_interval: %w", err)
		}
		cfg.RequestInterval = d
	}
	if meta.IsDefined("request_burst") {
		cfg.RequestBurst = raw.RequestBurst
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("log_level") {
		lvl, err := ParseLevel(raw.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = lvl
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("bandwidth_limited_selection") {
		cfg.BandwidthLimitedSelection = raw.BandwidthLimitedSelection
	}

	for i, d := range raw.Downloads {
		dl := Download{URL: strings.TrimSpace(d.URL), Output: strings.TrimSpace(d.Output)}
		if s := strings.TrimSpace(d.Seek); s != "" {
			seek, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("parse download[%d].seek: %w", i, err)
			}
			dl.Seek = seek
		}
		cfg.Downloads = append(cfg.Downloads, dl)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.UserAgent = envOr(EnvUserAgent, cfg.UserAgent)
	cfg.ClientGUID = envOr(EnvClientGUID, cfg.ClientGUID)
	cfg.MetricsAddr = envOr(EnvMetricsAddr, cfg.MetricsAddr)

	if v := os.Getenv(EnvMaxResends); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvMaxResends, err)
		}
		cfg.MaxResends = n
	}
	if v := os.Getenv(EnvInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvInterval, err)
		}
		cfg.RequestInterval = d
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		lvl, err := ParseLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = lvl
	}
	return nil
}

// Validate reports settings no download could run with.
func (c Config) Validate() error {
	var errs []error
	if c.RequestInterval < 0 {
		errs = append(errs, errors.New("request_interval must not be negative"))
	}
	if c.RequestBurst < 1 {
		errs = append(errs, errors.New("request_burst must be at least 1"))
	}
	if c.ChunkSize < 1 {
		errs = append(errs, errors.New("chunk_size must be positive"))
	}
	for i, d := range c.Downloads {
		if d.URL == "" {
			errs = append(errs, fmt.Errorf("download[%d]: url is required", i))
		}
		if d.Output == "" {
			errs = append(errs, fmt.Errorf("download[%d]: output is required", i))
		}
		if d.Seek < 0 {
			errs = append(errs, fmt.Errorf("download[%d]: seek must not be negative", i))
		}
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return lvl, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
