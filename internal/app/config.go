package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	TopologyPath string // hcl file or directory
	ListenAddr   string

	LogFormat string
	LogLevel  string

	RequestTimeout  time.Duration // overall per-prediction deadline
	NodeCallTimeout time.Duration // per node call budget
	MaxDepth        int
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.TopologyPath == "" {
		return nil, errors.New("TopologyPath is a required configuration field and cannot be empty")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.NodeCallTimeout <= 0 {
		cfg.NodeCallTimeout = 5 * time.Second
	}
	return &cfg, nil
}
