// Package config loads server configuration from file, environment and
// defaults via viper. Environment keys use the PB_ prefix
// (PB_DATABASE_HOST etc.); the bare DB_HOST/DB_USER/DB_PASSWORD/DB_NAME
// variables of the original deployment keep working as fallbacks.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/solidqa/partboard/internal/storage"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chat     ChatConfig     `mapstructure:"chat"`
}

// ServerConfig holds the HTTP listener settings. RequestTimeout bounds
// both server read/write deadlines and the remote client's requests.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig holds MySQL settings.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	ConnectionLimit int    `mapstructure:"connection_limit"`
}

// ChatConfig holds assistant settings. The API key additionally honors
// ANTHROPIC_API_KEY directly.
type ChatConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// StorageConfig converts the database section for storage.Open.
func (c Config) StorageConfig() storage.Config {
	return storage.Config{
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Name,
		ConnectionLimit: c.Database.ConnectionLimit,
	}
}

// Load reads configuration. A missing config file is fine; defaults and
// environment cover everything.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("partboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/partboard")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	applyLegacyEnv(&cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3001")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "atlascopco_qa")
	v.SetDefault("database.connection_limit", 10)
	v.SetDefault("chat.model", "")
}

// applyLegacyEnv honors the original deployment's bare variable names
// when the PB_-prefixed ones aren't set.
func applyLegacyEnv(cfg *Config) {
	legacy := []struct {
		env     string
		prefEnv string
		target  *string
	}{
		{"DB_HOST", "PB_DATABASE_HOST", &cfg.Database.Host},
		{"DB_USER", "PB_DATABASE_USER", &cfg.Database.User},
		{"DB_PASSWORD", "PB_DATABASE_PASSWORD", &cfg.Database.Password},
		{"DB_NAME", "PB_DATABASE_NAME", &cfg.Database.Name},
	}
	for _, l := range legacy {
		if os.Getenv(l.prefEnv) != "" {
			continue
		}
		if val := os.Getenv(l.env); val != "" {
			*l.target = val
		}
	}
}
