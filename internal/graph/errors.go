package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCycle        = errors.New("dependency cycle")
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("already exists")
	ErrInvalidState = errors.New("invalid task state")
)

// CycleError reports an edge that would close a cycle, or cycles found in an
// existing graph. When From/To are set the graph was left unchanged.
type CycleError struct {
	From   string
	To     string
	Cycles [][]string
}

func (e *CycleError) Error() string {
	if e == nil {
		return ""
	}
	var parts []string
	for _, c := range e.Cycles {
		parts = append(parts, strings.Join(c, " -> "))
	}
	if e.From != "" {
		msg := fmt.Sprintf("%s: %s cannot depend on %s", ErrCycle, e.From, e.To)
		if len(parts) > 0 {
			msg += " (" + strings.Join(parts, "; ") + ")"
		}
		return msg
	}
	if len(parts) == 0 {
		return ErrCycle.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(parts, "; "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// NotFoundError reports an unknown id. Kind names what was looked up.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q %s", e.Kind, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func taskNotFound(id string) error {
	return &NotFoundError{Kind: "task", ID: id}
}
