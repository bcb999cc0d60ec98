package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for storefront environment variables. Single
// underscores separate nesting levels, double underscores keep a literal one:
// STOREFRONT_DATABASE_DEFAULT__CONNECTION maps to database.default_connection.
const EnvPrefix = "STOREFRONT_"

// legacyConnectionEnv is the environment form of the ConnectionStrings:DefaultConnection key.
const legacyConnectionEnv = "ConnectionStrings__DefaultConnection"

// Config holds runtime configuration for the storefront process.
type Config struct {
	Environment string         `koanf:"environment"`
	Addr        string         `koanf:"addr"`
	LogLevel    string         `koanf:"log_level"`
	AWS         AWSConfig      `koanf:"aws"`
	Secrets     SecretsConfig  `koanf:"secrets"`
	Database    DatabaseConfig `koanf:"database"`
}

// AWSConfig selects the Secrets Manager endpoint.
type AWSConfig struct {
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`
}

// SecretsConfig names the secrets consulted for database credentials.
type SecretsConfig struct {
	PrimaryName       string        `koanf:"primary_name"`
	PrimaryDatabase   string        `koanf:"primary_database"`
	DescriptionPrefix string        `koanf:"description_prefix"`
	Timeout           time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds the local fallback connection string and pool sizing.
type DatabaseConfig struct {
	DefaultConnection string        `koanf:"default_connection"`
	MaxConns          int32         `koanf:"max_conns"`
	MigrationTimeout  time.Duration `koanf:"migration_timeout"`
}

// Default returns the configuration used when neither file nor environment override a key.
func Default() Config {
	return Config{
		Environment: "development",
		Addr:        ":8080",
		LogLevel:    "info",
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Secrets: SecretsConfig{
			PrimaryName:       "atx-db-modernization-atx-db-modernization-1-target",
			PrimaryDatabase:   "dmg",
			DescriptionPrefix: "Password for RDS MSSQL used for MAM319.",
		},
		Database: DatabaseConfig{
			MaxConns:         10,
			MigrationTimeout: time.Minute,
		},
	}
}

// Load builds a Config from defaults, an optional TOML file and the environment,
// in increasing order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(legacyConnectionEnv, ".", func(s string) string {
		if s != legacyConnectionEnv {
			return ""
		}
		return "database.default_connection"
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load connection string environment: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           &cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
	s = strings.ReplaceAll(s, "_", ".")
	return strings.ReplaceAll(s, "%UNDERSCORE%", "_")
}

// Validate reports settings that cannot produce a working process.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if strings.TrimSpace(c.AWS.Region) == "" {
		errs = append(errs, errors.New("aws.region is required"))
	}
	if strings.TrimSpace(c.Secrets.PrimaryName) == "" && strings.TrimSpace(c.Secrets.DescriptionPrefix) == "" &&
		strings.TrimSpace(c.Database.DefaultConnection) == "" {
		errs = append(errs, errors.New("no secret name, description prefix or default connection configured"))
	}
	if c.Secrets.Timeout < 0 {
		errs = append(errs, errors.New("secrets.timeout must not be negative"))
	}
	if c.Database.MaxConns < 0 {
		errs = append(errs, errors.New("database.max_conns must not be negative"))
	}
	return errors.Join(errs...)
}
