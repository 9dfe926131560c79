// Package config loads stage-server and stagectl settings from an optional
// .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const devJWTSecret = "dev-secret-change-me-0123456789abcdef"

// Config holds all application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Uploads  UploadConfig   `mapstructure:"uploads"`
	Login    LoginConfig    `mapstructure:"login"`
	Client   ClientConfig   `mapstructure:"client"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, test, production
	LogLevel    string `mapstructure:"log_level"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects PostgreSQL. An empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// RedisConfig backs the login limiter. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

type LoginConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
	PerIP       bool          `mapstructure:"per_ip"`
}

// ClientConfig is read by stagectl.
type ClientConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	SessionFile    string        `mapstructure:"session_file"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Load loads configuration from environment variables and an optional .env
// file in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// A missing .env is fine; the environment may carry everything.
	_ = v.ReadInConfig()

	return load(v)
}

// LoadWithPath loads configuration from a specific file, then the
// environment.
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	bindConfig(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "stage-server")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_LOG_LEVEL", "info")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_CONNS", 10)
	v.SetDefault("DATABASE_MIGRATE", true)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_ISSUER", "gostage")
	v.SetDefault("JWT_TTL", "8h")

	v.SetDefault("UPLOADS_DIR", "reports")
	v.SetDefault("UPLOADS_MAX_BYTES", 10<<20)

	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_WINDOW", "15m")
	v.SetDefault("LOGIN_PER_IP", true)

	v.SetDefault("CLIENT_BASE_URL", "http://localhost:8080")
	v.SetDefault("CLIENT_SESSION_FILE", "")
	v.SetDefault("CLIENT_REQUEST_TIMEOUT", "15s")
}

func bindConfig(v *viper.Viper, cfg *Config) {
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.LogLevel = v.GetString("APP_LOG_LEVEL")

	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")
	cfg.Server.ShutdownTimeout = v.GetDuration("SERVER_SHUTDOWN_TIMEOUT")

	cfg.Database.URL = v.GetString("DATABASE_URL")
	cfg.Database.MaxConns = v.GetInt32("DATABASE_MAX_CONNS")
	cfg.Database.Migrate = v.GetBool("DATABASE_MIGRATE")

	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.JWT.Secret = v.GetString("JWT_SECRET")
	cfg.JWT.Issuer = v.GetString("JWT_ISSUER")
	cfg.JWT.TTL = v.GetDuration("JWT_TTL")

	cfg.Uploads.Dir = v.GetString("UPLOADS_DIR")
	cfg.Uploads.MaxBytes = v.GetInt64("UPLOADS_MAX_BYTES")

	cfg.Login.MaxAttempts = v.GetInt("LOGIN_MAX_ATTEMPTS")
	cfg.Login.Window = v.GetDuration("LOGIN_WINDOW")
	cfg.Login.PerIP = v.GetBool("LOGIN_PER_IP")

	cfg.Client.BaseURL = v.GetString("CLIENT_BASE_URL")
	cfg.Client.SessionFile = v.GetString("CLIENT_SESSION_FILE")
	cfg.Client.RequestTimeout = v.GetDuration("CLIENT_REQUEST_TIMEOUT")
}

// Validate checks the configuration
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "test", "production":
	default:
		return fmt.Errorf("unknown environment %q", c.App.Environment)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret must be at least 32 bytes")
	}
	if c.IsProduction() && c.JWT.Secret == devJWTSecret {
		return errors.New("JWT secret must be changed in production")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be positive")
	}

	if c.Login.MaxAttempts > 0 && c.Login.Window <= 0 {
		return errors.New("login window must be positive when throttling is enabled")
	}

	if c.Uploads.MaxBytes <= 0 {
		return errors.New("upload size limit must be positive")
	}

	if c.Client.RequestTimeout <= 0 {
		return errors.New("client request timeout must be positive")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
