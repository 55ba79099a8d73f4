// Package config loads taskflow settings from defaults, an optional TOML
// file, TASKFLOW_* environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/logging"
	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const (
	DefaultAddr           = ":8080"
	DefaultStore          = StoreMemory
	DefaultDatabasePath   = "taskflow.db"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultReportInterval = time.Hour
	DefaultDigestTime     = "08:00"
	DefaultRateLimit      = 20.0
	DefaultRateBurst      = 40

	// DefaultConfigFile is read from the working directory when present.
	DefaultConfigFile = "taskflow.toml"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type Config struct {
	Addr         string `toml:"addr" env:"TASKFLOW_ADDR"`
	Store        string `toml:"store" env:"TASKFLOW_STORE"`
	DatabasePath string `toml:"database_path" env:"TASKFLOW_DATABASE_PATH"`
	SeedPath     string `toml:"seed_path" env:"TASKFLOW_SEED_PATH"`
	NoSeed       bool   `toml:"no_seed" env:"TASKFLOW_NO_SEED"`

	LogLevel  string `toml:"log_level" env:"TASKFLOW_LOG_LEVEL"`
	LogFormat string `toml:"log_format" env:"TASKFLOW_LOG_FORMAT"`

	// ReportInterval of zero disables the periodic summary; an empty
	// DigestTime disables the daily digest.
	ReportInterval time.Duration `toml:"report_interval" env:"TASKFLOW_REPORT_INTERVAL"`
	DigestTime     string        `toml:"digest_time" env:"TASKFLOW_DIGEST_TIME"`

	// Requests per second allowed per client; zero disables limiting.
	RateLimit float64 `toml:"rate_limit" env:"TASKFLOW_RATE_LIMIT"`
	RateBurst int     `toml:"rate_burst" env:"TASKFLOW_RATE_BURST"`

	// ConfigFile is the TOML file that was read, if any.
	ConfigFile string `toml:"-"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Addr:           DefaultAddr,
		Store:          DefaultStore,
		DatabasePath:   DefaultDatabasePath,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		ReportInterval: DefaultReportInterval,
		DigestTime:     DefaultDigestTime,
		RateLimit:      DefaultRateLimit,
		RateBurst:      DefaultRateBurst,
	}
}

// Load builds the configuration. A nil fs gets a fresh ContinueOnError set.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	if fs == nil {
		fs = flag.NewFlagSet("taskflow", flag.ContinueOnError)
	}

	var (
		configPath string
		flags      = Default()
	)
	fs.StringVar(&configPath, "config", "", "Path to a TOML config file")
	fs.StringVar(&flags.Addr, "addr", flags.Addr, "HTTP listen address")
	fs.StringVar(&flags.Store, "store", flags.Store, "Task store: memory or sqlite")
	fs.StringVar(&flags.DatabasePath, "db", flags.DatabasePath, "SQLite database path")
	fs.StringVar(&flags.SeedPath, "seed", flags.SeedPath, "JSON seed file (default: built-in sample data)")
	fs.BoolVar(&flags.NoSeed, "no-seed", flags.NoSeed, "Start with an empty store")
	fs.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "Log format: text, json, logfmt")
	fs.DurationVar(&flags.ReportInterval, "report-interval", flags.ReportInterval, "Statistics summary interval (0 disables)")
	fs.StringVar(&flags.DigestTime, "digest-time", flags.DigestTime, "Daily digest time HH:MM (empty disables)")
	fs.Float64Var(&flags.RateLimit, "rate-limit", flags.RateLimit, "Requests per second per client (0 disables)")
	fs.IntVar(&flags.RateBurst, "rate-burst", flags.RateBurst, "Rate limiter burst size")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()

	path, explicit := resolveConfigPath(configPath)
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		} else {
			cfg.ConfigFile = path
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Only flags given on the command line override earlier layers.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = flags.Addr
		case "store":
			cfg.Store = flags.Store
		case "db":
			cfg.DatabasePath = flags.DatabasePath
		case "seed":
			cfg.SeedPath = flags.SeedPath
		case "no-seed":
			cfg.NoSeed = flags.NoSeed
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "log-format":
			cfg.LogFormat = flags.LogFormat
		case "report-interval":
			cfg.ReportInterval = flags.ReportInterval
		case "digest-time":
			cfg.DigestTime = flags.DigestTime
		case "rate-limit":
			cfg.RateLimit = flags.RateLimit
		case "rate-burst":
			cfg.RateBurst = flags.RateBurst
		}
	})

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath picks the config file: the --config flag, then
// TASKFLOW_CONFIG, then ./taskflow.toml. explicit is false only for the
// implicit default, which may be absent.
func resolveConfigPath(flagPath string) (path string, explicit bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if v := os.Getenv("TASKFLOW_CONFIG"); v != "" {
		return v, true
	}
	return DefaultConfigFile, false
}

func loadFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Addr) == "" {
		problems = append(problems, "addr must not be empty")
	}
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			problems = append(problems, "database_path is required for the sqlite store")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store %q (want memory or sqlite)", c.Store))
	}
	if !logging.ValidLevel(c.LogLevel) {
		problems = append(problems, fmt.Sprintf("unknown log level %q", c.LogLevel))
	}
	if !logging.ValidFormat(c.LogFormat) {
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.LogFormat))
	}
	if c.ReportInterval < 0 {
		problems = append(problems, "report_interval must not be negative")
	}
	if c.DigestTime != "" {
		if _, _, err := ParseClock(c.DigestTime); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if c.RateLimit < 0 {
		problems = append(problems, "rate_limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		problems = append(problems, "rate_burst must be at least 1 when rate limiting is on")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ParseClock reads an HH:MM time of day.
func ParseClock(value string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}
