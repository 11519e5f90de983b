package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter        EventType = "step_enter"
	EventStepLeave        EventType = "step_leave"
	EventAnswer           EventType = "answer"
	EventValidationFailed EventType = "validation_failed"
	EventOutcome          EventType = "outcome"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	FlowID    string    `json:"flow_id"`
}

// StepEvent represents entry into or exit from a step.
type StepEvent struct {
	EventBase
	StepID   string   `json:"step_id"`
	StepKind StepKind `json:"step_kind"`
}

// AnswerEvent represents a committed answer, or one rejected by validation.
type AnswerEvent struct {
	EventBase
	StepID    string `json:"step_id"`
	Shortcode string `json:"shortcode,omitempty"`
	Value     any    `json:"value,omitempty"`
	Message   string `json:"message,omitempty"`
}

// OutcomeEvent represents the end of a session.
type OutcomeEvent struct {
	EventBase
	OutcomeID string      `json:"outcome_id"`
	Kind      OutcomeKind `json:"kind,omitempty"`
	Answered  int         `json:"answered"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks are fire-and-forget; they cannot veto a transition.
type LifecycleHooks struct {
	OnStepEnter        func(context.Context, *StepEvent)
	OnStepLeave        func(context.Context, *StepEvent)
	OnAnswer           func(context.Context, *AnswerEvent)
	OnValidationFailed func(context.Context, *AnswerEvent)
	OnOutcome          func(context.Context, *OutcomeEvent)
}
