package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-imagery/internal/imagery"
	"github.com/i474232898/weather-imagery/internal/logging"
)

// Storage backends.
const (
	BackendS3     = "s3"
	BackendMemory = "memory"
)

type AppConfig struct {
	Port      string `env:"PORT" envDefault:"8000"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`

	// RefreshInterval controls how often the refresh cycle runs.
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"15m" validate:"gte=1m"`

	// CacheRetention is the age after which cached frames are deleted.
	CacheRetention time.Duration `env:"CACHE_RETENTION" envDefault:"24h" validate:"gt=0"`

	// Remote source.
	FTPAddr        string        `env:"BOM_FTP_ADDR" envDefault:"ftp.bom.gov.au:21" validate:"hostname_port"`
	FTPDialTimeout time.Duration `env:"BOM_FTP_DIAL_TIMEOUT" envDefault:"30s"`

	// ImageHost is the public URL prefix generated artifacts are served from.
	// Empty means this service's own /images route.
	ImageHost string `env:"IMAGE_HOST" validate:"omitempty,url"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"s3" validate:"oneof=s3 memory"`
	Bucket         BucketConfig

	DatabasePath string `env:"DATABASE_PATH" envDefault:"imagery.db" validate:"required"`

	// Extra catalog entries as id=name pairs, seeded at startup.
	RadarSubjects     map[string]string `env:"RADAR_SUBJECTS" envKeyValSeparator:"=" validate:"dive,keys,startswith=IDR,len=6,endkeys,required"`
	SatelliteSubjects map[string]string `env:"SATELLITE_SUBJECTS" envKeyValSeparator:"=" validate:"dive,keys,startswith=IDE,len=8,endkeys,required"`

	// Forecast client. The forecast endpoint is disabled without a key.
	WillyWeatherAPIKey string        `env:"WILLYWEATHER_API_KEY"`
	HTTPTimeout        time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
}

// BucketConfig holds S3-compatible bucket settings.
type BucketConfig struct {
	Name            string `env:"BUCKET_NAME" validate:"required_if=Enabled true"`
	Endpoint        string `env:"BUCKET_ENDPOINT" validate:"required_if=Enabled true"`
	Region          string `env:"BUCKET_REGION"`
	AccessKeyID     string `env:"BUCKET_ACCESS_KEY_ID" validate:"required_if=Enabled true"`
	AccessSecretKey string `env:"BUCKET_ACCESS_SECRET_KEY" validate:"required_if=Enabled true"`
	UseSSL          bool   `env:"BUCKET_USE_SSL" envDefault:"true"`

	// Enabled is derived from STORAGE_BACKEND.
	Enabled bool
}

var validate = validator.New()

// Load reads configuration from the environment (and a .env file when
// present) with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log := logging.Component("config")
		log.Info().Err(err).Msg("no .env file loaded")
	}
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", imagery.ErrConfiguration, err)
	}

	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.Bucket.Enabled = cfg.StorageBackend == BackendS3

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", imagery.ErrConfiguration, err)
	}

	if cfg.ImageHost == "" {
		cfg.ImageHost = fmt.Sprintf("http://localhost:%s/images", cfg.Port)
	}
	cfg.ImageHost = strings.TrimRight(cfg.ImageHost, "/")

	return cfg, nil
}
