package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/specdec/internal/logger"
	"github.com/samcharles93/specdec/internal/metrics"
	"github.com/samcharles93/specdec/internal/rejection"
)

// Config represents the specdec configuration file
// (~/.config/specdec/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	MaxNumTokens  *int64   `yaml:"max_num_tokens"`
	Workers       *int64   `yaml:"workers"`
	Seed          *uint64  `yaml:"seed"`
	ResidualFloor *float64 `yaml:"residual_floor"`
	Backend       string   `yaml:"backend"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "specdec", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applySamplerConfig applies config file defaults to sampler flags that
// were not set on the command line.
func applySamplerConfig(c *cli.Command, cfg Config) {
	if cfg.Backend != "" && !c.IsSet("backend") {
		backendName = cfg.Backend
	}
	if cfg.Workers != nil && !c.IsSet("workers") {
		workers = *cfg.Workers
	}
	if cfg.MaxNumTokens != nil && !c.IsSet("max-num-tokens") {
		maxNumTokens = *cfg.MaxNumTokens
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Seed
	}
	if cfg.ResidualFloor != nil && !c.IsSet("residual-floor") {
		residualFloor = *cfg.ResidualFloor
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

func samplerConfig() rejection.Config {
	return rejection.Config{
		MaxNumTokens:  int(maxNumTokens),
		Workers:       int(workers),
		Seed:          seed,
		ResidualFloor: float32(residualFloor),
		Backend:       backendName,
	}
}

// newSampler builds a sampler from the resolved flags. reg may be nil.
func newSampler(ctx context.Context, c *cli.Command, reg prometheus.Registerer) (*rejection.Sampler, error) {
	applySamplerConfig(c, fileConfig)
	opts := []rejection.Option{rejection.WithLogger(logger.FromContext(ctx))}
	if reg != nil {
		opts = append(opts, rejection.WithMetrics(metrics.New(reg)))
	}
	return rejection.New(samplerConfig(), opts...)
}
