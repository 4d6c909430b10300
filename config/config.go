package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config aggregates the importer's configuration.
type Config struct {
	Archive ArchiveConfig
	Load    LoadConfig
	MySQL   MySQLConfig
	Redis   RedisConfig
	Logging LoggingConfig
}

// ArchiveConfig locates the input archive and sets the skip policy.
type ArchiveConfig struct {
	Path            string
	ContinueOnError bool
}

// LoadConfig selects the destination store.
type LoadConfig struct {
	Target      string // mysql|postgres|sqlite3|redis
	Mode        string // insert|infile
	BatchSize   int
	DatabaseURL string
}

// MySQLConfig describes the MySQL connection. The charset is not
// configurable: utf8mb4 is always used.
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// RedisConfig describes the Redis connection used by the redis target.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

const (
	TargetMySQL    = "mysql"
	TargetPostgres = "postgres"
	TargetSQLite   = "sqlite3"
	TargetRedis    = "redis"

	ModeInsert = "insert"
	ModeInfile = "infile"
)

const (
	defaultArchivePath   = "data.zip"
	defaultMySQLHost     = "localhost"
	defaultMySQLPort     = 3306
	defaultMySQLUser     = "root"
	defaultRedisAddr     = "localhost:6379"
	defaultBatchSize     = 1000
	defaultLoggingLevel  = "info"
	defaultLoggingFormat = "text"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Archive: ArchiveConfig{
			Path:            valueOrDefault("DATA_ARCHIVE", defaultArchivePath),
			ContinueOnError: parseBoolWithDefault("CONTINUE_ON_ERROR", false),
		},
		Load: LoadConfig{
			Target:      strings.ToLower(valueOrDefault("LOAD_TARGET", TargetMySQL)),
			Mode:        strings.ToLower(valueOrDefault("LOAD_MODE", ModeInsert)),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		MySQL: MySQLConfig{
			Host:     valueOrDefault("MYSQL_HOST", defaultMySQLHost),
			User:     valueOrDefault("MYSQL_USER", defaultMySQLUser),
			Password: os.Getenv("MYSQL_PASSWORD"),
			Database: os.Getenv("MYSQL_DB"),
		},
		Redis: RedisConfig{
			Addr:     valueOrDefault("REDIS_ADDR", defaultRedisAddr),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format: valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
		},
	}

	port, err := parsePort("MYSQL_PORT", defaultMySQLPort)
	if err != nil {
		return Config{}, err
	}
	cfg.MySQL.Port = port

	if cfg.Load.BatchSize, err = parsePositiveInt("BATCH_SIZE", defaultBatchSize); err != nil {
		return Config{}, err
	}
	if cfg.Redis.DB, err = parseNonNegativeInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}

	switch cfg.Load.Target {
	case TargetMySQL, TargetPostgres, TargetSQLite, TargetRedis:
	default:
		return Config{}, fmt.Errorf("invalid LOAD_TARGET %q", cfg.Load.Target)
	}
	switch cfg.Load.Mode {
	case ModeInsert:
	case ModeInfile:
		if cfg.Load.Target != TargetMySQL {
			return Config{}, fmt.Errorf("LOAD_MODE=%s requires LOAD_TARGET=%s", ModeInfile, TargetMySQL)
		}
	default:
		return Config{}, fmt.Errorf("invalid LOAD_MODE %q", cfg.Load.Mode)
	}
	if (cfg.Load.Target == TargetPostgres || cfg.Load.Target == TargetSQLite) && cfg.Load.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required for LOAD_TARGET=%s", cfg.Load.Target)
	}

	return cfg, nil
}

// MigrateURL renders the MySQL settings in the form golang-migrate expects.
func (c MySQLConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "mysql",
		User:     url.UserPassword(c.User, c.Password),
		Host:     "tcp(" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + ")",
		Path:     "/" + c.Database,
		RawQuery: "charset=utf8mb4&multiStatements=true",
	}
	if c.Password == "" {
		u.User = url.User(c.User)
	}
	return u.String()
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parsePositiveInt(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if n <= 0 {
			return 0, fmt.Errorf("%s must be positive, got %d", key, n)
		}
		return n, nil
	}
	return fallback, nil
}

func parseNonNegativeInt(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid %s value %q", key, v)
		}
		return n, nil
	}
	return fallback, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
