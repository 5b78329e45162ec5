// Package config loads the monitor service configuration from YAML files
// with environment variable overrides.
package config

import (
	"time"

	"github.com/gadicohen93/Veriver/internal/logger"
)

// Default configuration values.
const (
	defaultServiceName     = "channel-monitor"
	defaultServiceVersion  = "1.0.0"
	defaultServicePort     = 8080
	defaultBackfillLimit   = 10
	defaultWarehouseAddr   = "localhost:9000"
	defaultWarehouseDB     = "channel_monitor"
	defaultWarehouseTable  = "channel_messages"
	defaultStoreMaxRetries = 3
	defaultStoreDelay      = 500 * time.Millisecond
	defaultStoreMaxDelay   = 10 * time.Second
	defaultBucketURL       = "file:///var/lib/channel-monitor/media"
	defaultMediaDir        = "media"
	defaultScoringModel    = "claude-3-5-haiku-latest"
	defaultScoringTokens   = 1024
	defaultScoringTimeout  = 30 * time.Second
	defaultGatewayURL      = "http://localhost:8090"
)

// Config holds all configuration for the monitor service.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Media     MediaConfig     `yaml:"media"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Logging   logger.Config   `yaml:"logging"`
}

// GatewayConfig points at the channel gateway sidecar that owns the
// authenticated channel session.
type GatewayConfig struct {
	URL string `env:"CHANNEL_GATEWAY_URL" yaml:"url"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name          string `yaml:"name"`
	Version       string `yaml:"version"`
	Port          int    `env:"MONITOR_PORT"  yaml:"port"`
	Debug         bool   `env:"APP_DEBUG"     yaml:"debug"`
	BackfillLimit int    `yaml:"backfill_limit"`
}

// WarehouseConfig holds the durable message sink configuration.
type WarehouseConfig struct {
	Addr       string        `env:"CLICKHOUSE_ADDR"     yaml:"addr"`
	Database   string        `env:"CLICKHOUSE_DB"       yaml:"database"`
	Username   string        `env:"CLICKHOUSE_USER"     yaml:"username"`
	Password   string        `env:"CLICKHOUSE_PASSWORD" yaml:"password"`
	Table      string        `yaml:"table"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	MaxDelay   time.Duration `yaml:"max_retry_delay"`
}

// MediaConfig holds media staging and durable object storage configuration.
type MediaConfig struct {
	// BucketURL is a gocloud.dev blob URL (s3://..., file://...).
	BucketURL string `env:"MEDIA_BUCKET_URL" yaml:"bucket_url"`
	// PublicBaseURL prefixes object keys to form stable reference URIs.
	PublicBaseURL string `env:"MEDIA_PUBLIC_BASE_URL" yaml:"public_base_url"`
	// StagingDir is the local scratch directory for downloads.
	StagingDir string `env:"MEDIA_STAGING_DIR" yaml:"staging_dir"`
}

// ScoringConfig holds the content scoring capability configuration.
type ScoringConfig struct {
	APIKey    string        `env:"ANTHROPIC_API_KEY" yaml:"api_key"`
	Model     string        `env:"SCORING_MODEL"     yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Load loads configuration from the specified path. An empty path loads
// defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	return load(path, setDefaults)
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	if cfg.Gateway.URL == "" {
		cfg.Gateway.URL = defaultGatewayURL
	}
	setWarehouseDefaults(&cfg.Warehouse)
	setMediaDefaults(&cfg.Media)
	setScoringDefaults(&cfg.Scoring)
	cfg.Logging.SetDefaults()
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
	if s.BackfillLimit == 0 {
		s.BackfillLimit = defaultBackfillLimit
	}
}

func setWarehouseDefaults(w *WarehouseConfig) {
	if w.Addr == "" {
		w.Addr = defaultWarehouseAddr
	}
	if w.Database == "" {
		w.Database = defaultWarehouseDB
	}
	if w.Table == "" {
		w.Table = defaultWarehouseTable
	}
	if w.MaxRetries == 0 {
		w.MaxRetries = defaultStoreMaxRetries
	}
	if w.RetryDelay == 0 {
		w.RetryDelay = defaultStoreDelay
	}
	if w.MaxDelay == 0 {
		w.MaxDelay = defaultStoreMaxDelay
	}
}

func setMediaDefaults(m *MediaConfig) {
	if m.BucketURL == "" {
		m.BucketURL = defaultBucketURL
	}
	if m.StagingDir == "" {
		m.StagingDir = defaultMediaDir
	}
}

func setScoringDefaults(s *ScoringConfig) {
	if s.Model == "" {
		s.Model = defaultScoringModel
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = defaultScoringTokens
	}
	if s.Timeout == 0 {
		s.Timeout = defaultScoringTimeout
	}
}
