package app

import (
	"errors"

	"github.com/specialistvlad/taskgrid/internal/resolver"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GridPath string // .hcl or .yaml files

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// Strategy overrides the resolver block of the grid when set.
	Strategy string
	// AutoResolve forces the engine to resolve conflicts as they are detected.
	AutoResolve bool
	// ExportPath receives the resolver snapshot after the run when set.
	ExportPath string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.GridPath == "" {
		return nil, errors.New("GridPath is a required configuration field and cannot be empty")
	}
	if cfg.Strategy != "" {
		s, err := resolver.ParseStrategy(cfg.Strategy)
		if err != nil {
			return nil, err
		}
		cfg.Strategy = string(s)
	}
	return &cfg, nil
}
