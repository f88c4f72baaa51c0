package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	iauth "github.com/perimeterlab/fieldalert/internal/auth"
	"github.com/perimeterlab/fieldalert/internal/database"
	"github.com/perimeterlab/fieldalert/internal/push"
	"github.com/perimeterlab/fieldalert/internal/tokens"
)

// Config represents the runtime configuration for the FieldAlert backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Tokens      TokensConfig      `mapstructure:"tokens"`
	Push        PushConfig        `mapstructure:"push"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LookupTimeout   time.Duration `mapstructure:"lookup_timeout"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// TokensConfig selects the push token store backend. When Redis is disabled
// the database store is used.
type TokensConfig struct {
	Redis RedisTokensConfig `mapstructure:"redis"`
}

// RedisTokensConfig holds Redis connection options for the token store.
type RedisTokensConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// PushConfig configures the upstream push gateway. Leaving the server key
// empty disables push delivery; ingestion and storage keep working.
type PushConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	ServerKey string        `mapstructure:"server_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures authentication settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// MaintenanceConfig drives the background cleanup jobs.
type MaintenanceConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Schedule       string        `mapstructure:"schedule"`
	TokenMaxAge    time.Duration `mapstructure:"token_max_age"`
	BlockRetention time.Duration `mapstructure:"block_retention"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("FIELDALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Connection converts the application settings into the database package representation.
func (c DatabaseConfig) Connection() database.Config {
	return database.Config{
		Driver:   strings.TrimSpace(c.Driver),
		Path:     strings.TrimSpace(c.Path),
		DSN:      strings.TrimSpace(c.DSN),
		Host:     strings.TrimSpace(c.Host),
		Port:     c.Port,
		Name:     strings.TrimSpace(c.Name),
		User:     strings.TrimSpace(c.Username),
		Password: c.Password,
	}
}

// RedisStoreConfig converts the token settings into the tokens package representation.
func (c TokensConfig) RedisStoreConfig() tokens.RedisConfig {
	return tokens.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Timeout:  c.Redis.Timeout,
		TTL:      c.Redis.TTL,
	}
}

// JWTServiceConfig converts the auth settings into the auth package representation.
func (c AuthConfig) JWTServiceConfig() iauth.JWTConfig {
	return iauth.JWTConfig{
		Secret:         strings.TrimSpace(c.JWT.Secret),
		Issuer:         strings.TrimSpace(c.JWT.Issuer),
		AccessTokenTTL: c.JWT.TTL,
	}
}

// ClientConfig converts the push settings into the push package representation.
func (c PushConfig) ClientConfig() push.Config {
	return push.Config{
		BaseURL:   strings.TrimSpace(c.BaseURL),
		ServerKey: strings.TrimSpace(c.ServerKey),
		Timeout:   c.Timeout,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.lookup_timeout", "3s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/fieldalert.sqlite")

	v.SetDefault("tokens.redis.enabled", false)
	v.SetDefault("tokens.redis.address", "127.0.0.1:6379")
	v.SetDefault("tokens.redis.username", "")
	v.SetDefault("tokens.redis.password", "")
	v.SetDefault("tokens.redis.db", 0)
	v.SetDefault("tokens.redis.timeout", "5s")
	v.SetDefault("tokens.redis.ttl", "0")

	v.SetDefault("push.enabled", true)
	v.SetDefault("push.base_url", "")
	v.SetDefault("push.server_key", "")
	v.SetDefault("push.timeout", "10s")

	v.SetDefault("auth.jwt.issuer", "fieldalert")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.schedule", "@hourly")
	v.SetDefault("maintenance.token_max_age", "2160h") // 90 days
	v.SetDefault("maintenance.block_retention", "8760h")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
