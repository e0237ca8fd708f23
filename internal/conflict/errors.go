package conflict

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrResolutionTimeout = errors.New("resolution timed out")
	ErrPlanExecution     = errors.New("plan execution failed")
	ErrUnknownAction     = errors.New("unknown action kind")
)

// ResolutionTimeoutError reports a plan that did not settle within the
// configured timeout. The plan may still finish in the background.
type ResolutionTimeoutError struct {
	ConflictID string
	PlanID     string
	Timeout    time.Duration
}

func (e *ResolutionTimeoutError) Error() string {
	return fmt.Sprintf("conflict %s: plan %s: %s after %s", e.ConflictID, e.PlanID, ErrResolutionTimeout, e.Timeout)
}

func (e *ResolutionTimeoutError) Unwrap() error { return ErrResolutionTimeout }

// PlanExecutionError reports the action that failed and the log of every
// action executed up to and including it.
type PlanExecutionError struct {
	PlanID string
	Action int
	Kind   ActionKind
	Cause  error
	Log    []LogEntry
}

func (e *PlanExecutionError) Error() string {
	return fmt.Sprintf("%s: plan %s action %d (%s): %v", ErrPlanExecution, e.PlanID, e.Action, e.Kind, e.Cause)
}

// Unwrap exposes both the sentinel and the cause to errors.Is and errors.As.
func (e *PlanExecutionError) Unwrap() []error { return []error{ErrPlanExecution, e.Cause} }
