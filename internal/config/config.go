package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kasumi-cms/core/internal/pkg/mail"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort            = 4000
	defaultEnv             = "development"
	defaultDSN             = "root:password@tcp(127.0.0.1:3306)/kasumi?charset=utf8mb4&parseTime=True&loc=Local"
	defaultRedisURL        = "redis://localhost:6379/0"
	defaultHashidMinLength = 8
	defaultBcryptCost      = 12
	defaultUploadRoot      = "./uploads"
	defaultFreshMinutes    = 15
	defaultResetTokenHours = 24
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port            int         `yaml:"port"`
	Env             string      `yaml:"env"` // "development" | "production"
	DSN             string      `yaml:"dsn"` // MySQL DSN
	RedisURL        string      `yaml:"redis_url"`
	AllowedOrigins  []string    `yaml:"allowed_origins"`
	JWTSecret       string      `yaml:"jwt_secret"`
	HashidSalt      string      `yaml:"hashid_salt"`
	HashidMinLen    int         `yaml:"hashid_min_length"`
	BcryptCost      int         `yaml:"bcrypt_cost"`
	FreshMinutes    int         `yaml:"fresh_window_minutes"`
	ResetTokenHours int         `yaml:"reset_token_hours"`
	UploadRoot      string      `yaml:"upload_root"`
	AsyncMail       bool        `yaml:"async_mail"`
	Mail            mail.Config `yaml:"mail"`
}

// Load reads the YAML config file, filling defaults for missing fields.
// A missing file is not an error; the defaults stand alone in development.
func Load(path string) (*AppConfig, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func defaults() *AppConfig {
	return &AppConfig{
		Port:            defaultPort,
		Env:             defaultEnv,
		DSN:             defaultDSN,
		RedisURL:        defaultRedisURL,
		HashidMinLen:    defaultHashidMinLength,
		BcryptCost:      defaultBcryptCost,
		FreshMinutes:    defaultFreshMinutes,
		ResetTokenHours: defaultResetTokenHours,
		UploadRoot:      defaultUploadRoot,
	}
}

func (c *AppConfig) normalize() {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if c.Env == "" {
		c.Env = defaultEnv
	}
	if c.DSN == "" {
		c.DSN = defaultDSN
	}
	if c.RedisURL == "" {
		c.RedisURL = defaultRedisURL
	}
	if c.HashidMinLen <= 0 {
		c.HashidMinLen = defaultHashidMinLength
	}
	if c.BcryptCost <= 0 {
		c.BcryptCost = defaultBcryptCost
	}
	if c.FreshMinutes <= 0 {
		c.FreshMinutes = defaultFreshMinutes
	}
	if c.ResetTokenHours <= 0 {
		c.ResetTokenHours = defaultResetTokenHours
	}
	if c.UploadRoot == "" {
		c.UploadRoot = defaultUploadRoot
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env != "production" }

// FreshWindow is the duration within which a session counts as fresh.
func (c *AppConfig) FreshWindow() time.Duration {
	return time.Duration(c.FreshMinutes) * time.Minute
}

// ResetTokenTTL is how long password reset tokens stay valid.
func (c *AppConfig) ResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenHours) * time.Hour
}
