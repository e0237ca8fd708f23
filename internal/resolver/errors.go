package resolver

import (
	"errors"
	"fmt"
)

var ErrInvalidStrategy = errors.New("invalid resolution strategy")

// InvalidStrategyError reports an unsupported strategy name.
type InvalidStrategyError struct {
	Strategy string
}

func (e *InvalidStrategyError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidStrategy, e.Strategy)
}

func (e *InvalidStrategyError) Unwrap() error { return ErrInvalidStrategy }
