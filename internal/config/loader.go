package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "quakefeed.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// CLIFlags carries command-line overrides. Nil means the flag was not set.
type CLIFlags struct {
	ConfigPath *string
	Host       *string
	Port       *string
	Source     *string
	Interval   *string
	LogLevel   *string
	DSN        *string
	NatsURL    *string
}

// ParseFlags parses command-line arguments into CLIFlags. Flags that were
// not given stay nil so they can be layered over ENV without clobbering it.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("quakefeed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.String("config", "", "path to YAML config file")
	fs.String("c", "", "shorthand for --config")
	fs.String("host", "", "bind address")
	fs.String("port", "", "listen port")
	fs.String("p", "", "shorthand for --port")
	fs.String("source", "", "catalog source: csv, postgres, or sqlite")
	fs.String("interval", "", "default replay interval, e.g. 2s or 500ms")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("dsn", "", "postgres connection string")
	fs.String("nats-url", "", "NATS server URL for the bulletin mirror")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var flags CLIFlags
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = &v
		case "host":
			flags.Host = &v
		case "port", "p":
			flags.Port = &v
		case "source":
			flags.Source = &v
		case "interval":
			flags.Interval = &v
		case "log-level":
			flags.LogLevel = &v
		case "dsn":
			flags.DSN = &v
		case "nats-url":
			flags.NatsURL = &v
		}
	})

	return flags, nil
}

// LoadWithCLI loads configuration with CLI flags as the highest-precedence
// layer. Returns the resolved YAML path alongside the config so startup
// logging can name the file that was read.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()

	if err := loadYAML(&cfg, path); err != nil {
		return nil, path, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, path, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, path, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Host, "QUAKEFEED_HOST")
	setString(&cfg.Server.Port, "QUAKEFEED_PORT")
	setString(&cfg.Server.CORSOrigin, "QUAKEFEED_CORS_ORIGIN")
	setString(&cfg.Catalog.Source, "QUAKEFEED_CATALOG_SOURCE")
	setString(&cfg.Catalog.EventsCSV, "QUAKEFEED_EVENTS_CSV")
	setString(&cfg.Catalog.PicksCSV, "QUAKEFEED_PICKS_CSV")
	setString(&cfg.Catalog.SQLitePath, "QUAKEFEED_SQLITE_PATH")
	setDuration(&cfg.Replay.Interval, "QUAKEFEED_INTERVAL")
	setDuration(&cfg.Replay.EventGap, "QUAKEFEED_EVENT_GAP")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "QUAKEFEED_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "QUAKEFEED_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "QUAKEFEED_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "QUAKEFEED_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "QUAKEFEED_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.SubjectPrefix, "QUAKEFEED_NATS_PREFIX")
	setInt64(&cfg.Cache.FrameCacheMB, "QUAKEFEED_FRAME_CACHE_MB")
	setString(&cfg.Logging.Level, "QUAKEFEED_LOG_LEVEL")
	setString(&cfg.Logging.Service, "QUAKEFEED_LOG_SERVICE")
	setString(&cfg.Logging.File, "QUAKEFEED_LOG_FILE")
	setInt(&cfg.Logging.MaxSizeMB, "QUAKEFEED_LOG_MAX_SIZE_MB")
	setInt(&cfg.Logging.MaxBackups, "QUAKEFEED_LOG_MAX_BACKUPS")
	setBool(&cfg.Logging.Async, "QUAKEFEED_LOG_ASYNC")
	setString(&cfg.Telemetry.OTLPEndpoint, "QUAKEFEED_OTLP_ENDPOINT")
}

// applyCLI overlays set flags onto cfg. Invalid durations are ignored, the
// same way loadEnv ignores unparseable values.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Host != nil {
		cfg.Server.Host = *flags.Host
	}
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.Source != nil {
		cfg.Catalog.Source = *flags.Source
	}
	if flags.Interval != nil {
		if d, err := time.ParseDuration(*flags.Interval); err == nil {
			cfg.Replay.Interval = d
		}
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.DSN != nil {
		cfg.Postgres.DSN = *flags.DSN
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Catalog.Source {
	case "csv":
		if cfg.Catalog.EventsCSV == "" || cfg.Catalog.PicksCSV == "" {
			return errors.New("catalog.events_csv and catalog.picks_csv are required for the csv source")
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres source")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case "sqlite":
		if cfg.Catalog.SQLitePath == "" {
			return errors.New("catalog.sqlite_path is required for the sqlite source")
		}
	default:
		return fmt.Errorf("catalog.source must be csv, postgres, or sqlite, got %q", cfg.Catalog.Source)
	}
	if cfg.Replay.Interval < 0 {
		return errors.New("replay.interval must not be negative")
	}
	if cfg.Replay.EventGap < 0 {
		return errors.New("replay.event_gap must not be negative")
	}
	if cfg.Cache.FrameCacheMB < 0 {
		return errors.New("cache.frame_cache_mb must not be negative")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
