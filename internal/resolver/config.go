package resolver

import (
	"fmt"
	"strings"
	"time"
)

// Strategy selects how Resolve orders tasks inside each execution level.
type Strategy string

const (
	StrategyTopological    Strategy = "topological"
	StrategyPriorityBased  Strategy = "priority_based"
	StrategyResourceAware  Strategy = "resource_aware"
	StrategyDeadlineDriven Strategy = "deadline_driven"
	StrategyCriticalPath   Strategy = "critical_path"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{
	StrategyTopological,
	StrategyPriorityBased,
	StrategyResourceAware,
	StrategyDeadlineDriven,
	StrategyCriticalPath,
}

// Valid reports whether s is a supported strategy.
func (s Strategy) Valid() bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStrategy accepts the canonical names case-insensitively, with either
// dashes or underscores.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
	if !s.Valid() {
		return "", &InvalidStrategyError{Strategy: name}
	}
	return s, nil
}

// Config holds the construction-time settings of a Resolver.
type Config struct {
	Strategy             Strategy
	EnableCycleDetection bool
	EnableMetrics        bool
	// MaxResolutionTime is the advisory budget for a single Resolve call.
	MaxResolutionTime time.Duration
	// MetricsWindow bounds the samples kept per operation.
	MetricsWindow int
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Strategy:             StrategyTopological,
		EnableCycleDetection: true,
		EnableMetrics:        true,
		MaxResolutionTime:    10 * time.Millisecond,
	}
}

func (c Config) validate() error {
	if !c.Strategy.Valid() {
		return &InvalidStrategyError{Strategy: string(c.Strategy)}
	}
	if c.MaxResolutionTime < 0 {
		return fmt.Errorf("resolver: max resolution time must not be negative, got %s", c.MaxResolutionTime)
	}
	return nil
}
