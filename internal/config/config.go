// Package config loads runtime settings by layering defaults, an optional
// YAML file named by SDQA_CONFIG and SDQA_-prefixed environment variables.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Database drivers accepted by DBDriver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// Config captures all runtime configuration.
type Config struct {
	Port      string `koanf:"port"`
	AuthToken string `koanf:"auth_token"`

	// DBDriver selects the relational backend: postgres (pgxpool), sqlite
	// or mysql (database/sql through sqlx).
	DBDriver string `koanf:"db_driver"`
	DBURL    string `koanf:"db_url"`

	// MySQL fields build a DSN when DBURL is empty and DBDriver is mysql.
	MySQLHost     string `koanf:"mysql_host"`
	MySQLPort     int    `koanf:"mysql_port"`
	MySQLUser     string `koanf:"mysql_user"`
	MySQLPassword string `koanf:"mysql_password"`
	MySQLDatabase string `koanf:"mysql_database"`

	// CatalogURL points at a remote catalog service. When empty the catalog
	// is read from the ratings database.
	CatalogURL         string `koanf:"catalog_url"`
	CatalogAPIKey      string `koanf:"catalog_api_key"`
	CatalogTimeoutSecs int    `koanf:"catalog_timeout_secs"`

	ReadTimeoutSecs   int `koanf:"server_read_timeout"`
	WriteTimeoutSecs  int `koanf:"server_write_timeout"`
	IdleTimeoutSecs   int `koanf:"server_idle_timeout"`
	DBMaxConns        int `koanf:"db_max_conns"`
	DBMinConns        int `koanf:"db_min_conns"`
	DBMaxIdleSecs     int `koanf:"db_max_conn_idle_secs"`
	DBMaxLifeSecs     int `koanf:"db_max_conn_lifetime_secs"`
	DBConnTimeoutSecs int `koanf:"db_conn_timeout_secs"`
	DBStatementCache  int `koanf:"db_statement_cache_capacity"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Port:               "8080",
		DBDriver:           DriverPostgres,
		MySQLPort:          3306,
		CatalogTimeoutSecs: 5,
		ReadTimeoutSecs:    15,
		WriteTimeoutSecs:   15,
		IdleTimeoutSecs:    60,
		DBMaxConns:         20,
		DBMinConns:         2,
		DBMaxIdleSecs:      300,
		DBMaxLifeSecs:      3600,
		DBConnTimeoutSecs:  10,
		DBStatementCache:   256,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads configuration, applying defaults and validation. Precedence
// from low to high: defaults, the SDQA_CONFIG YAML file, SDQA_* env vars.
func Load() (Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("SDQA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, errors.Wrapf(ErrLoadConfig, "read %s: %v", path, err)
		}
	}

	// SDQA_DB_MAX_CONNS -> db_max_conns
	envProvider := env.Provider("SDQA_", ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), "sdqa_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, errors.Wrapf(ErrLoadConfig, "read environment: %v", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, errors.Wrapf(ErrLoadConfig, "decode: %v", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges and required combinations.
func (cfg Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Wrapf(ErrInvalidConfig, format, args...)
	}

	if cfg.AuthToken == "" {
		return invalid("SDQA_AUTH_TOKEN is required")
	}
	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DBURL == "" {
			return invalid("SDQA_DB_URL is required for driver %s", cfg.DBDriver)
		}
	case DriverMySQL:
		if cfg.DBURL == "" && cfg.MySQLHost == "" {
			return invalid("SDQA_DB_URL or SDQA_MYSQL_HOST is required for driver mysql")
		}
	case DriverSQLite:
	default:
		return invalid("SDQA_DB_DRIVER %q is not one of postgres, sqlite, mysql", cfg.DBDriver)
	}
	if cfg.CatalogURL != "" && cfg.CatalogTimeoutSecs <= 0 {
		return invalid("SDQA_CATALOG_TIMEOUT_SECS must be positive")
	}
	if cfg.DBMaxConns <= 0 {
		return invalid("SDQA_DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return invalid("SDQA_DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return invalid("SDQA_DB_MIN_CONNS cannot exceed SDQA_DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return invalid("SDQA_DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return invalid("SDQA_LOG_FORMAT %q is not one of text, json", cfg.LogFormat)
	}
	return nil
}
