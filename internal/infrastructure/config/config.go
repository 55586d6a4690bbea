package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/facegate/facegate/internal/core/domain"
)

type Config struct {
	Port       string        `env:"PORT,        default=8080"`
	Env        string        `env:"ENV,         default=development"`
	JWTSecret  string        `env:"JWT_SECRET"`
	LogLevel   string        `env:"LOG_LEVEL,   default=info"`
	SessionTTL time.Duration `env:"SESSION_TTL, default=24h"`

	Mongo  MongoConfig
	Redis  RedisConfig
	Face   FaceConfig
	Upload UploadConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=facegate"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type FaceConfig struct {
	CascadePath    string `env:"FACE_CASCADE_PATH,    default=haarcascade_frontalface_default.xml"`
	TemplateFormat int    `env:"FACE_TEMPLATE_FORMAT, default=1"`
}

type UploadConfig struct {
	Dir      string `env:"UPLOAD_DIR"`
	MaxBytes int64  `env:"UPLOAD_MAX_BYTES, default=10485760"`
}

// IsDevelopment reports whether human-friendly logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Format resolves the configured template format.
func (c *Config) Format() (domain.TemplateFormat, error) {
	return domain.LookupFormat(c.Face.TemplateFormat)
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return process(ctx, envconfig.OsLookuper())
}

func process(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("config: UPLOAD_MAX_BYTES must be positive")
	}
	if _, err := c.Format(); err != nil {
		return fmt.Errorf("config: FACE_TEMPLATE_FORMAT=%d: %w", c.Face.TemplateFormat, err)
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = os.TempDir()
	}
	return nil
}
