package conflict

import (
	"context"
	"time"
)

type EventType string

const (
	EventDetected  EventType = "conflict.detected"
	EventResolved  EventType = "conflict.resolved"
	EventFailed    EventType = "conflict.failed"
	EventEscalated EventType = "conflict.escalated"
)

// Event is a conflict lifecycle notification.
type Event struct {
	Type     EventType `json:"type"`
	Conflict Conflict  `json:"conflict"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// EventSink receives lifecycle events. Publish errors are logged and never
// affect resolution.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

type discardSink struct{}

func (discardSink) Publish(context.Context, Event) error { return nil }
