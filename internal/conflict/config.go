package conflict

import (
	"fmt"
	"time"
)

// Config holds the construction-time settings of an Engine.
type Config struct {
	// AutoResolve makes DetectConflicts resolve what it finds right away.
	AutoResolve bool
	// MaxConcurrentResolutions is the batch size of ResolveAllConflicts.
	MaxConcurrentResolutions int
	// ResolutionTimeout bounds the execution of a single plan.
	ResolutionTimeout time.Duration
	EnableMetrics     bool
	// MaxAttempts failed attempts escalate a conflict.
	MaxAttempts int

	AllowDeadlineExtension bool
	// DeadlineBuffer is added on top of the required time when a deadline is
	// extended.
	DeadlineBuffer time.Duration
	// OptimisticFactor scales the estimated duration of tasks marked
	// parallelizable.
	OptimisticFactor float64
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		AutoResolve:              false,
		MaxConcurrentResolutions: 5,
		ResolutionTimeout:        5 * time.Second,
		EnableMetrics:            true,
		MaxAttempts:              3,
		AllowDeadlineExtension:   true,
		DeadlineBuffer:           time.Minute,
		OptimisticFactor:         0.7,
	}
}

func (c Config) validate() error {
	switch {
	case c.MaxConcurrentResolutions < 1:
		return fmt.Errorf("conflict: max concurrent resolutions must be at least 1, got %d", c.MaxConcurrentResolutions)
	case c.ResolutionTimeout <= 0:
		return fmt.Errorf("conflict: resolution timeout must be positive, got %s", c.ResolutionTimeout)
	case c.MaxAttempts < 1:
		return fmt.Errorf("conflict: max attempts must be at least 1, got %d", c.MaxAttempts)
	case c.DeadlineBuffer < 0:
		return fmt.Errorf("conflict: deadline buffer must not be negative, got %s", c.DeadlineBuffer)
	case c.OptimisticFactor <= 0 || c.OptimisticFactor > 1:
		return fmt.Errorf("conflict: optimistic factor must be in (0, 1], got %v", c.OptimisticFactor)
	}
	return nil
}
