package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"polyjudge/internal/compiler/language"
	"polyjudge/pkg/utils/logger"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultCompileTimeout  = 30 * time.Second
	defaultAcquireTimeout  = 2 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// LanguageConfig holds where language definitions are read from.
type LanguageConfig struct {
	Dir string `yaml:"dir"`
}

// CompilerConfig holds invoker settings.
type CompilerConfig struct {
	TempRoot    string `yaml:"tempRoot"`
	OutputLimit int64  `yaml:"outputLimit"`
}

// WorkerConfig holds compile pool settings.
type WorkerConfig struct {
	PoolSize       int           `yaml:"poolSize"`
	Timeout        time.Duration `yaml:"timeout"`
	AcquireTimeout time.Duration `yaml:"acquireTimeout"`
}

// MetricsConfig toggles Prometheus collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AppConfig holds polyjudge config.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Logger   logger.Config  `yaml:"logger"`
	Language LanguageConfig `yaml:"language"`
	Compiler CompilerConfig `yaml:"compiler"`
	Worker   WorkerConfig   `yaml:"worker"`
	Metrics  MetricsConfig  `yaml:"metrics"`
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

// loadAppConfig reads path and fills defaults. An empty path yields the defaults alone.
func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Worker.PoolSize < 0 {
		return nil, fmt.Errorf("worker pool size must not be negative")
	}
	if cfg.Worker.Timeout < 0 {
		return nil, fmt.Errorf("worker timeout must not be negative")
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
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
	// Compiler output goes to stdout, so logs default to stderr.
	if cfg.Logger.OutputPath == "" {
		cfg.Logger.OutputPath = logger.OutputStderr
	}
	if cfg.Language.Dir == "" {
		cfg.Language.Dir = language.DefaultDir
	}
	if cfg.Worker.PoolSize == 0 {
		cfg.Worker.PoolSize = runtime.NumCPU()
	}
	if cfg.Worker.Timeout == 0 {
		cfg.Worker.Timeout = defaultCompileTimeout
	}
	if cfg.Worker.AcquireTimeout == 0 {
		cfg.Worker.AcquireTimeout = defaultAcquireTimeout
	}
}
