// Package config reads the price tracker options from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database holds Postgres connection options.
type Database struct {
	Host     string
	Port     string
	Name     string
	Username string
	Password string
}

// ClickHouse holds the options for the optional analytics mirror.
type ClickHouse struct {
	Host     string
	Port     string
	Name     string
	Username string
	Password string
}

// Enabled returns true if a ClickHouse host is configured.
func (options ClickHouse) Enabled() bool {
	return options.Host != ""
}

// Config is the full set of options for the price tracker binaries.
type Config struct {
	Fetch           Fetch
	StoreDriver     string
	Database        Database
	ClickHouse      ClickHouse
	HTTPAddr        string
	PricesCacheTTL  time.Duration
	IngestInterval  time.Duration
	IngestExclusive bool
	LogLevel        string
}

// InvalidOptionError reports an option that could not be parsed.
type InvalidOptionError struct {
	Name  string
	Value string
	Err   error
}

func (err *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", err.Name, err.Value, err.Err)
}

func (err *InvalidOptionError) Unwrap() error {
	return err.Err
}

// Lookup reads an environment variable. It matches os.LookupEnv.
type Lookup func(name string) (string, bool)

type reader struct {
	lookup Lookup
	err    error
}

func (r *reader) text(name, fallback string) string {
	if value, ok := r.lookup(name); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}

	return fallback
}

func (r *reader) integer(name string, fallback int) int {
	text := r.text(name, "")

	if text == "" {
		return fallback
	}

	value, err := strconv.Atoi(text)

	if err != nil && r.err == nil {
		r.err = &InvalidOptionError{name, text, err}
	}

	return value
}

func (r *reader) duration(name string, fallback time.Duration) time.Duration {
	text := r.text(name, "")

	if text == "" {
		return fallback
	}

	value, err := time.ParseDuration(text)

	if err != nil && r.err == nil {
		r.err = &InvalidOptionError{name, text, err}
	}

	return value
}

func (r *reader) boolean(name string, fallback bool) bool {
	text := r.text(name, "")

	if text == "" {
		return fallback
	}

	value, err := strconv.ParseBool(text)

	if err != nil && r.err == nil {
		r.err = &InvalidOptionError{name, text, err}
	}

	return value
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads the configuration using the given lookup function.
func LoadFrom(lookup Lookup) (*Config, error) {
	r := &reader{lookup: lookup}
	fetch := DefaultFetch()

	cfg := &Config{
		Fetch: Fetch{
			BaseURL:    r.text("COINGECKO_BASE_URL", fetch.BaseURL),
			MarketPath: r.text("COINGECKO_MARKET_PATH", fetch.MarketPath),
			VsCurrency: r.text("COINGECKO_VS_CURRENCY", fetch.VsCurrency),
			PerPage:    r.integer("COINGECKO_PER_PAGE", fetch.PerPage),
			MaxPage:    r.integer("COINGECKO_MAX_PAGE", fetch.MaxPage),
			UserAgent:  r.text("COINGECKO_USER_AGENT", fetch.UserAgent),
			Timeout:    r.duration("COINGECKO_TIMEOUT", fetch.Timeout),
		},
		StoreDriver: strings.ToLower(r.text("STORE_DRIVER", "postgres")),
		Database: Database{
			Host:     r.text("DB_HOST", "localhost"),
			Port:     r.text("DB_PORT", "5432"),
			Name:     r.text("DB_NAME", ""),
			Username: r.text("DB_USERNAME", ""),
			Password: r.text("DB_PASSWORD", ""),
		},
		ClickHouse: ClickHouse{
			Host:     r.text("CLICKHOUSE_HOST", ""),
			Port:     r.text("CLICKHOUSE_PORT", "9000"),
			Name:     r.text("CLICKHOUSE_DB", "default"),
			Username: r.text("CLICKHOUSE_USERNAME", "default"),
			Password: r.text("CLICKHOUSE_PASSWORD", ""),
		},
		HTTPAddr:        r.text("HTTP_ADDR", ":8000"),
		PricesCacheTTL:  r.duration("PRICES_CACHE_TTL", time.Minute),
		IngestInterval:  r.duration("INGEST_INTERVAL", 0),
		IngestExclusive: r.boolean("INGEST_EXCLUSIVE", false),
		LogLevel:        strings.ToLower(r.text("LOG_LEVEL", "info")),
	}

	if r.err != nil {
		return nil, r.err
	}

	if cfg.StoreDriver != "postgres" && cfg.StoreDriver != "memory" {
		return nil, &InvalidOptionError{"STORE_DRIVER", cfg.StoreDriver, fmt.Errorf("expected postgres or memory")}
	}

	return cfg, nil
}
