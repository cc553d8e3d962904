package main

import (
	"fmt"
	"os"
	"time"

	"codoleet/internal/admission"
	"codoleet/internal/sandbox"
	"codoleet/internal/sandbox/spec"
	"codoleet/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// LimitsConfig holds per-test-case resource limits.
type LimitsConfig struct {
	WallTimeMS  int64 `yaml:"wallTimeMS"`
	MemoryMB    int64 `yaml:"memoryMB"`
	CPUShares   int64 `yaml:"cpuShares"`
	PIDs        int64 `yaml:"pids"`
	OutputBytes int64 `yaml:"outputBytes"`
}

func (l LimitsConfig) toResourceLimit() spec.ResourceLimit {
	limits := spec.DefaultLimits()
	if l.WallTimeMS > 0 {
		limits.WallTimeMS = l.WallTimeMS
	}
	if l.MemoryMB > 0 {
		limits.MemoryMB = l.MemoryMB
	}
	if l.CPUShares > 0 {
		limits.CPUShares = l.CPUShares
	}
	if l.PIDs > 0 {
		limits.PIDs = l.PIDs
	}
	if l.OutputBytes > 0 {
		limits.OutputBytes = l.OutputBytes
	}
	return limits
}

// AppConfig holds evaluator-service config.
type AppConfig struct {
	Server    ServerConfig     `yaml:"server"`
	Logger    logger.Config    `yaml:"logger"`
	Sandbox   sandbox.Config   `yaml:"sandbox"`
	Limits    LimitsConfig     `yaml:"limits"`
	RateLimit admission.Config `yaml:"rateLimit"`
}

func loadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
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
	return &cfg, nil
}
