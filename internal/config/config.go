// Package config loads the YAML configuration of the spfresh service.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/spfresh"
	"github.com/hupe1980/spfresh/blobstore"
	"github.com/hupe1980/spfresh/blobstore/minio"
	"github.com/hupe1980/spfresh/blobstore/s3"
	"github.com/hupe1980/spfresh/distance"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Index   IndexConfig   `yaml:"index"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	CORSOrigins    []string      `yaml:"cors_origins,omitempty"`
	RequireJWT     bool          `yaml:"require_jwt"`
	// JWTSecret signs and verifies HS256 bearer tokens. Read from
	// SPFRESH_JWT_SECRET when empty.
	JWTSecret string `yaml:"jwt_secret,omitempty"`
	JWTIssuer string `yaml:"jwt_issuer"`
	// SnapshotInterval saves the index periodically. Zero disables it.
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// IndexConfig configures a new index. Dimension, metric and variant are
// ignored when an existing snapshot is opened.
type IndexConfig struct {
	Dimension int    `yaml:"dimension"`
	Metric    string `yaml:"metric"`
	Variant   string `yaml:"variant"`
	Threads   int    `yaml:"threads"`
	// Params maps section to parameter name to value.
	Params map[string]map[string]string `yaml:"params,omitempty"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	// Backend is one of local, s3, minio or none.
	Backend string      `yaml:"backend"`
	Dir     string      `yaml:"dir,omitempty"`
	S3      S3Config    `yaml:"s3,omitempty"`
	MinIO   MinIOConfig `yaml:"minio,omitempty"`
}

// S3Config configures the AWS S3 backend.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix,omitempty"`
	Region       string `yaml:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty"`
}

// MinIOConfig configures the MinIO backend. Credentials fall back to
// MINIO_ACCESS_KEY and MINIO_SECRET_KEY.
type MinIOConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix,omitempty"`
	AccessKey    string `yaml:"access_key,omitempty"`
	SecretKey    string `yaml:"secret_key,omitempty"`
	Secure       bool   `yaml:"secure"`
	CreateBucket bool   `yaml:"create_bucket"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 60 * time.Second,
			MaxBodyBytes:   64 << 20,
			CORSOrigins:    []string{"*"},
			JWTIssuer:      "spfresh",
		},
		Index: IndexConfig{
			Dimension: 128,
			Metric:    "l2",
			Variant:   "tree",
		},
		Storage: StorageConfig{
			Backend: "local",
			Dir:     "spfresh-data",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads path on top of DefaultConfig and validates the result.
// An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.Server.JWTSecret == "" {
		c.Server.JWTSecret = os.Getenv("SPFRESH_JWT_SECRET")
	}
	if c.Storage.MinIO.AccessKey == "" {
		c.Storage.MinIO.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	}
	if c.Storage.MinIO.SecretKey == "" {
		c.Storage.MinIO.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	}
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RequireJWT && c.Server.JWTSecret == "" {
		errs = append(errs, errors.New("server.jwt_secret is required when server.require_jwt is true"))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("invalid server.max_body_bytes: %d", c.Server.MaxBodyBytes))
	}
	if c.Server.SnapshotInterval < 0 {
		errs = append(errs, fmt.Errorf("invalid server.snapshot_interval: %s", c.Server.SnapshotInterval))
	}
	if c.Index.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("index.dimension must be positive: %d", c.Index.Dimension))
	}
	if _, err := distance.ParseMetric(c.Index.Metric); err != nil {
		errs = append(errs, fmt.Errorf("index.metric: %w", err))
	}
	if _, err := spfresh.ParseVariant(c.Index.Variant); err != nil {
		errs = append(errs, fmt.Errorf("index.variant: %w", err))
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "none":
	case "local":
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for the local backend"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required for the s3 backend"))
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			errs = append(errs, errors.New("storage.minio.endpoint and storage.minio.bucket are required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage.backend: %q (must be local, s3, minio or none)", c.Storage.Backend))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}
	return errors.Join(errs...)
}

// OpenStore connects the configured snapshot backend. It returns nil for
// the none backend.
func (c *Config) OpenStore(ctx context.Context) (blobstore.BlobStore, error) {
	switch strings.ToLower(c.Storage.Backend) {
	case "local":
		return blobstore.NewLocalStore(c.Storage.Dir), nil
	case "s3":
		sc := c.Storage.S3
		return s3.New(ctx, sc.Bucket, func(o *s3.Options) {
			o.Prefix = sc.Prefix
			o.Region = sc.Region
			o.Endpoint = sc.Endpoint
			o.UsePathStyle = sc.UsePathStyle
		})
	case "minio":
		mc := c.Storage.MinIO
		return minio.New(ctx, minio.Config{
			Endpoint:     mc.Endpoint,
			AccessKey:    mc.AccessKey,
			SecretKey:    mc.SecretKey,
			Secure:       mc.Secure,
			Bucket:       mc.Bucket,
			Prefix:       mc.Prefix,
			CreateBucket: mc.CreateBucket,
		})
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid storage.backend: %q", c.Storage.Backend)
	}
}

// IndexOptions translates the index section into index options. Validate
// must have succeeded.
func (c *Config) IndexOptions() []spfresh.Option {
	metric, _ := distance.ParseMetric(c.Index.Metric)
	variant, _ := spfresh.ParseVariant(c.Index.Variant)
	opts := []spfresh.Option{
		spfresh.WithMetric(metric),
		spfresh.WithVariant(variant),
		spfresh.WithThreads(c.Index.Threads),
	}
	for section, params := range c.Index.Params {
		for name, value := range params {
			opts = append(opts, spfresh.WithParam(section, name, value))
		}
	}
	return opts
}

// NewLogger builds the configured logger.
func (c *Config) NewLogger() *spfresh.Logger {
	level := ParseLevel(c.Log.Level)
	if strings.EqualFold(c.Log.Format, "json") {
		return spfresh.NewJSONLogger(level)
	}
	return spfresh.NewTextLogger(level)
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
