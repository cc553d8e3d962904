package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"codoleet/internal/admission"
	"codoleet/internal/common/cache"
	"codoleet/internal/common/db"
	"codoleet/internal/common/mq"
	"codoleet/internal/common/storage"
	"codoleet/internal/submission/service"
	"codoleet/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultTaskTopic       = "evaluation-tasks"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	ClientID     string        `yaml:"clientID"`
	MinBytes     int           `yaml:"minBytes"`
	MaxBytes     int           `yaml:"maxBytes"`
	MaxWait      time.Duration `yaml:"maxWait"`
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	RequiredAcks int           `yaml:"requiredAcks"`
	Compression  string        `yaml:"compression"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// UpstreamConfig points at an HTTP dependency.
type UpstreamConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

// SubmissionConfig holds intake settings.
type SubmissionConfig struct {
	SourceBucket string        `yaml:"sourceBucket"`
	MaxCodeBytes int           `yaml:"maxCodeBytes"`
	DispatchTTL  time.Duration `yaml:"dispatchTTL"`
}

// AppConfig holds submission-service config.
type AppConfig struct {
	Server     ServerConfig           `yaml:"server"`
	Logger     logger.Config          `yaml:"logger"`
	Database   db.MySQLConfig         `yaml:"database"`
	Redis      cache.RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig            `yaml:"kafka"`
	MinIO      storage.MinIOConfig    `yaml:"minio"`
	Auth       AuthConfig             `yaml:"auth"`
	RateLimit  admission.Config       `yaml:"rateLimit"`
	Catalog    UpstreamConfig         `yaml:"catalog"`
	Evaluator  UpstreamConfig         `yaml:"evaluator"`
	Submission SubmissionConfig       `yaml:"submission"`
	Consumer   service.ConsumerConfig `yaml:"consumer"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	applyRedisDefaults(&cfg.Redis)
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Catalog.BaseURL == "" {
		return nil, fmt.Errorf("catalog base url is required")
	}
	if cfg.Evaluator.BaseURL == "" {
		return nil, fmt.Errorf("evaluator base url is required")
	}
	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth secret is required")
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Consumer.Topic == "" {
		cfg.Consumer.Topic = defaultTaskTopic
	}
	if cfg.Submission.SourceBucket == "" {
		cfg.Submission.SourceBucket = cfg.MinIO.Bucket
	}
	return &cfg, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	cfg := mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		MinBytes:     k.MinBytes,
		MaxBytes:     k.MaxBytes,
		MaxWait:      k.MaxWait,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		ReadTimeout:  k.ReadTimeout,
		WriteTimeout: k.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
	}
	cfg.Compression = parseCompression(k.Compression)
	return cfg
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}
