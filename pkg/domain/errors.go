package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrFlowNotFound is returned when no flow (or flow version) matches the requested id.
var ErrFlowNotFound = errors.New("flow not found")

// ErrStepNotFound is returned when the current step id is not part of the flow.
// A validated flow never produces it.
var ErrStepNotFound = errors.New("step not found")

// ErrSubmissionInFlight is returned when a submit is attempted while another one is awaiting its collaborators.
var ErrSubmissionInFlight = errors.New("submission already in flight")

// ErrSessionCompleted is returned when an answer is submitted after the session reached an outcome.
var ErrSessionCompleted = errors.New("session already completed")

// ErrSessionAbandoned is returned when an abandoned session is driven again.
var ErrSessionAbandoned = errors.New("session abandoned")

// ErrNoMatchingBranch is the cause of a ResolutionError when no branch matched.
var ErrNoMatchingBranch = errors.New("no matching branch")

// Structural defects reported by flow validation.
var (
	ErrMissingInitialStep = errors.New("missing initial step")
	ErrDuplicateStepID    = errors.New("duplicate step id")
	ErrDanglingTarget     = errors.New("dangling target")
	ErrMisplacedDefault   = errors.New("misplaced default")
)

// GraphErrorCode names a structural defect of a flow definition.
type GraphErrorCode string

const (
	CodeMissingInitialStep GraphErrorCode = "MissingInitialStep"
	CodeDuplicateStepID    GraphErrorCode = "DuplicateStepId"
	CodeDanglingTarget     GraphErrorCode = "DanglingTarget"
	CodeMisplacedDefault   GraphErrorCode = "MisplacedDefault"
)

var codeSentinels = map[GraphErrorCode]error{
	CodeMissingInitialStep: ErrMissingInitialStep,
	CodeDuplicateStepID:    ErrDuplicateStepID,
	CodeDanglingTarget:     ErrDanglingTarget,
	CodeMisplacedDefault:   ErrMisplacedDefault,
}

// GraphError reports the first structural defect found in a flow.
// It unwraps to the sentinel matching its Code, so errors.Is works.
type GraphError struct {
	Code   GraphErrorCode
	FlowID string
	StepID string
	Target string
}

func (e *GraphError) Error() string {
	switch e.Code {
	case CodeMissingInitialStep:
		return fmt.Sprintf("flow %q: initial step %q does not exist", e.FlowID, e.StepID)
	case CodeDuplicateStepID:
		return fmt.Sprintf("flow %q: duplicate step id %q", e.FlowID, e.StepID)
	case CodeDanglingTarget:
		return fmt.Sprintf("flow %q: step %q targets unknown %q", e.FlowID, e.StepID, e.Target)
	case CodeMisplacedDefault:
		return fmt.Sprintf("flow %q: step %q has a default branch that is not last", e.FlowID, e.StepID)
	}
	return fmt.Sprintf("flow %q: invalid graph (%s)", e.FlowID, e.Code)
}

func (e *GraphError) Unwrap() error {
	return codeSentinels[e.Code]
}

// ResolutionError is raised when the next target of a step cannot be determined.
type ResolutionError struct {
	StepID string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("resolve next: %v", e.Err)
	}
	return fmt.Sprintf("resolve next of step %q: %v", e.StepID, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
