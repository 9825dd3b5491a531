package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	AppEnv       string `env:"APP_ENV" envDefault:"development"`
	ServerPort   int    `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./stencil.db"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"console"`

	// JWTSecret signs every token for the lifetime of the process.
	// Changing it invalidates all previously issued tokens.
	JWTSecret      string        `env:"JWT_SECRET,required,notEmpty"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
	ResetTokenTTL  time.Duration `env:"RESET_TOKEN_TTL" envDefault:"15m"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	DeleteRequiresOwner bool `env:"TEMPLATE_DELETE_REQUIRES_OWNER" envDefault:"true"`
	TemplatePageSize    int  `env:"TEMPLATE_PAGE_SIZE" envDefault:"10"`
	TemplateMaxPageSize int  `env:"TEMPLATE_MAX_PAGE_SIZE" envDefault:"100"`

	AuthRateLimitPerMinute int `env:"AUTH_RATE_LIMIT_PER_MINUTE" envDefault:"10"`

	EventRetention     time.Duration `env:"EVENT_RETENTION" envDefault:"720h"`
	EventPruneSchedule string        `env:"EVENT_PRUNE_SCHEDULE" envDefault:"@daily"`

	ResetURL string     `env:"RESET_URL"`
	SMTP     SMTPConfig `envPrefix:"SMTP_"`
}

// SMTPConfig configures outbound mail. Mail is only sent over SMTP when Host
// is set; otherwise messages are written to the log.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@stencil.local"`
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load loads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StorageConfig is the subset of the configuration needed by commands that
// only touch the database, such as migrations.
type StorageConfig struct {
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./stencil.db"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"console"`
}

// LoadStorage loads StorageConfig the same way Load does, without requiring
// the signing secret.
func LoadStorage() (*StorageConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := env.ParseAs[StorageConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges that struct tags cannot express.
func (c *Config) Validate() error {
	switch {
	case c.ServerPort < 1 || c.ServerPort > 65535:
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.ServerPort)
	case c.AccessTokenTTL < 0:
		return fmt.Errorf("ACCESS_TOKEN_TTL must not be negative, got %s", c.AccessTokenTTL)
	case c.ResetTokenTTL <= 0:
		return fmt.Errorf("RESET_TOKEN_TTL must be positive, got %s", c.ResetTokenTTL)
	case c.TemplatePageSize < 1:
		return fmt.Errorf("TEMPLATE_PAGE_SIZE must be positive, got %d", c.TemplatePageSize)
	case c.TemplateMaxPageSize < c.TemplatePageSize:
		return fmt.Errorf("TEMPLATE_MAX_PAGE_SIZE (%d) must be at least TEMPLATE_PAGE_SIZE (%d)", c.TemplateMaxPageSize, c.TemplatePageSize)
	case c.AuthRateLimitPerMinute < 1:
		return fmt.Errorf("AUTH_RATE_LIMIT_PER_MINUTE must be positive, got %d", c.AuthRateLimitPerMinute)
	case c.EventRetention <= 0:
		return fmt.Errorf("EVENT_RETENTION must be positive, got %s", c.EventRetention)
	}
	return nil
}
