package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	TranscribeURL     string        `env:"TRANSCRIBE_URL" envDefault:"https://api.chatanywhere.tech/v1/audio/transcriptions"`
	TranscribeModel   string        `env:"TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	TranscribeTimeout time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"0s"` // 0 = no client-side timeout

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s"` // transcriptions can take minutes
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	MaxUploadMB  int64         `env:"MAX_UPLOAD_MB" envDefault:"32"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:","`
	WebDir       string        `env:"WEB_DIR"` // serve the page from disk instead of the embedded copy

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"0"` // 0 = disabled
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"5"`

	ArchiveDir string   `env:"ARCHIVE_DIR"`
	S3         S3Config `envPrefix:"S3_"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config configures the optional S3 archive for subtitle downloads.
type S3Config struct {
	Bucket    string `env:"BUCKET"`
	Endpoint  string `env:"ENDPOINT"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Prefix    string `env:"PREFIX"`
}

// Enabled reports whether an S3 bucket is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile       string
	HTTPAddr      string
	LogLevel      string
	TranscribeURL string
	ArchiveDir    string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.TranscribeURL != "" {
		cfg.TranscribeURL = overrides.TranscribeURL
	}
	if overrides.ArchiveDir != "" {
		cfg.ArchiveDir = overrides.ArchiveDir
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be > 0, got %d", c.MaxUploadMB)
	}
	if c.S3.Enabled() && (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
	}
	return nil
}
