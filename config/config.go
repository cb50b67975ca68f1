package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"vendor-spend"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	RunSeed     bool   `envconfig:"RUN_SEED" default:"false"`

	// Browser origins allowed to call the API, comma separated. "*" allows any.
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Database
	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	// Cache
	RedisAddr string `envconfig:"REDIS_ADDR"`

	// Auth
	AuthIssuer        string `envconfig:"AUTH_ISSUER"`
	AuthAudience      string `envconfig:"AUTH_AUDIENCE"`
	AuthPublicKeyFile string `envconfig:"AUTH_PUBLIC_KEY_FILE"` // PEM key or certificate for RS256
	AuthHMACSecret    string `envconfig:"AUTH_HMAC_SECRET"`     // HS256, local development only

	// Secrets
	SecretsEncryptionKey string `envconfig:"SECRETS_ENCRYPTION_KEY"` // exactly 32 bytes

	// Vendors
	DatadogBaseURL     string        `envconfig:"DATADOG_BASE_URL" default:"https://api.datadoghq.com"`
	AWSCostRegion      string        `envconfig:"AWS_CE_REGION" default:"us-east-1"`
	VendorFetchTimeout time.Duration `envconfig:"VENDOR_FETCH_TIMEOUT" default:"30s"`
	StalenessWindow    time.Duration `envconfig:"STALENESS_WINDOW" default:"24h"`

	// Batch
	BatchInterval    time.Duration `envconfig:"BATCH_INTERVAL" default:"24h"`
	BatchConcurrency int           `envconfig:"BATCH_CONCURRENCY" default:"4"`

	// Observability
	OTELExporterType     string `envconfig:"OTEL_EXPORTER_TYPE" default:"stdout"` // "stdout", "otlp" or "none"
	OTELExporterEndpoint string `envconfig:"OTEL_EXPORTER_ENDPOINT" default:"localhost:4317"`

	// Rate Limiting
	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
}

// Parse reads the environment (and a .env file if present) without
// checking that server dependencies are configured.
func Parse() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	return &cfg, nil
}

// Load parses the environment and validates everything the API and worker
// processes need.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.PostgresDSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required"))
	}
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required"))
	}
	if len(c.SecretsEncryptionKey) != 32 {
		errs = append(errs, errors.New("SECRETS_ENCRYPTION_KEY must be exactly 32 bytes"))
	}
	if c.AuthPublicKeyFile == "" && c.AuthHMACSecret == "" {
		errs = append(errs, errors.New("one of AUTH_PUBLIC_KEY_FILE or AUTH_HMAC_SECRET is required"))
	}
	if c.BatchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency))
	}
	if c.VendorFetchTimeout <= 0 {
		errs = append(errs, errors.New("VENDOR_FETCH_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}
