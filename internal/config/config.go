// Package config loads application configuration from YAML files and
// environment variables via viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/racesync/internal/database"
	"github.com/jonesrussell/racesync/internal/logger"
)

const (
	defaultServerHost      = "0.0.0.0"
	defaultServerPort      = 8060
	defaultCheckInterval   = time.Minute
	defaultPoolSize        = 4
	defaultConfidence      = 0.8
	defaultDatabasePort    = "5432"
	defaultDatabaseSSLMode = "disable"
	defaultShutdownTimeout = 30 * time.Second
)

// Config is the root application configuration.
type Config struct {
	Debug    bool            `yaml:"debug"    mapstructure:"debug"`
	Server   ServerConfig    `yaml:"server"   mapstructure:"server"`
	Database database.Config `yaml:"database" mapstructure:"database"`
	Log      logger.Config   `yaml:"log"      mapstructure:"log"`
	Sync     SyncConfig      `yaml:"sync"     mapstructure:"sync"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             mapstructure:"host"`
	Port            int           `yaml:"port"             mapstructure:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"     mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// SyncConfig holds sync engine settings.
type SyncConfig struct {
	CheckInterval       time.Duration `yaml:"check_interval"       mapstructure:"check_interval"`
	PoolSize            int           `yaml:"pool_size"            mapstructure:"pool_size"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// Load reads configuration from the given file (optional), config search
// paths, and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.AutomaticEnv()
	v.SetEnvPrefix("RACESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	// A missing file on the search path is fine; a file that exists but
	// fails to parse is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values for every key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", defaultDatabasePort)
	v.SetDefault("database.user", "racesync")
	v.SetDefault("database.dbname", "racesync")
	v.SetDefault("database.sslmode", defaultDatabaseSSLMode)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")

	v.SetDefault("sync.check_interval", defaultCheckInterval)
	v.SetDefault("sync.pool_size", defaultPoolSize)
	v.SetDefault("sync.confidence_threshold", defaultConfidence)
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Sync.PoolSize <= 0 {
		return errors.New("sync.pool_size must be positive")
	}
	if c.Sync.ConfidenceThreshold <= 0 || c.Sync.ConfidenceThreshold > 1 {
		return errors.New("sync.confidence_threshold must be in (0, 1]")
	}
	return nil
}
