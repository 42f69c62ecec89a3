package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Admin     AdminConfig     `mapstructure:"admin"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the SQL driver. URLs starting with postgres:// or
// postgresql:// use pgx, anything else is treated as a sqlite path.
type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// AdminConfig holds the single operator account allowed to manage subscribers.
type AdminConfig struct {
	Email        string `mapstructure:"email"`
	PasswordHash string `mapstructure:"password_hash"`
}

type RateLimitConfig struct {
	EventsPerMinute int `mapstructure:"events_per_minute"`
}

type WebhooksConfig struct {
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	MaxLogPageSize  int           `mapstructure:"max_log_page_size"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 45*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.url", "file:data/crmhooks.db")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_ttl", time.Hour)

	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password_hash", "")

	v.SetDefault("rate_limit.events_per_minute", 600)

	v.SetDefault("webhooks.delivery_timeout", 30*time.Second)
	v.SetDefault("webhooks.user_agent", "CRMHooks/1.0")
	v.SetDefault("webhooks.max_log_page_size", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")
}

// Load reads the YAML file at path, if it exists, and applies environment
// overrides such as WEBHOOKS_DELIVERY_TIMEOUT=5s on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Webhooks.DeliveryTimeout <= 0 {
		config.Webhooks.DeliveryTimeout = 30 * time.Second
	}
	// the test-delivery endpoint answers only after one full delivery attempt
	if wt := config.Server.WriteTimeout; wt > 0 && wt <= config.Webhooks.DeliveryTimeout {
		return nil, fmt.Errorf("server.write_timeout (%s) must exceed webhooks.delivery_timeout (%s)",
			wt, config.Webhooks.DeliveryTimeout)
	}

	return &config, nil
}
