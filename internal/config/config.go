package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

type Config struct {
	Address     string `env:"ADDRESS" envDefault:":8080"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"host=localhost user=postgres password=postgres dbname=crm port=5432 sslmode=disable"`
	DBLogLevel  string `env:"DB_LOG_LEVEL" envDefault:"error"`

	JWTSecret         string `env:"JWT_SECRET" envDefault:"crm-dev-secret"`
	JWTIssuer         string `env:"JWT_ISSUER" envDefault:"crm-api"`
	JWTAudience       string `env:"JWT_AUDIENCE" envDefault:"crm-dashboard"`
	AccessTTLSeconds  int    `env:"ACCESS_TTL_SECONDS" envDefault:"900"`
	RefreshTTLSeconds int    `env:"REFRESH_TTL_SECONDS" envDefault:"2592000"`

	// Empty keeps refresh sessions in the database.
	RedisURL string `env:"REDIS_URL"`

	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogOutput string `env:"LOG_OUTPUT" envDefault:"stdout"`
	LogFile   string `env:"LOG_FILE" envDefault:"logs/app.log"`

	WebhookURL string `env:"WEBHOOK_URL"`

	BootstrapAdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

// Load reads an optional .env file (ENV_FILE overrides the path) and then the environment.
func Load() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.AccessTTLSeconds <= 0 || c.RefreshTTLSeconds <= 0 {
		return errors.New("ACCESS_TTL_SECONDS and REFRESH_TTL_SECONDS must be positive")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return errors.New("DATABASE_DSN must not be empty")
	}
	return nil
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLSeconds) * time.Second
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLSeconds) * time.Second
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
