package domain

import "time"

// SessionStatus is the lifecycle status of a persisted session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// SessionRecord is what a session store keeps per session.
type SessionRecord struct {
	ID          string        `json:"id"`
	FlowID      string        `json:"flow_id"`
	FlowVersion string        `json:"flow_version"`
	UserID      string        `json:"user_id,omitempty"`
	Status      SessionStatus `json:"status"`
	CurrentStep string        `json:"current_step,omitempty"`
	Outcome     string        `json:"outcome,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// AnswerRecord is one committed answer.
type AnswerRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StepID    string    `json:"step_id"`
	Shortcode string    `json:"shortcode,omitempty"`
	Value     any       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// AnswerMap folds answer records, ordered by creation, into a step id keyed map.
// Later records for the same step win.
func AnswerMap(records []AnswerRecord) map[string]any {
	out := make(map[string]any, len(records))
	for _, a := range records {
		out[a.StepID] = a.Value
	}
	return out
}

// Snapshot is a point-in-time, serializable view of a running session.
type Snapshot struct {
	SessionID     string         `json:"session_id"`
	FlowID        string         `json:"flow_id"`
	FlowVersion   string         `json:"flow_version"`
	CurrentStepID string         `json:"current_step_id"`
	CurrentAnswer any            `json:"current_answer,omitempty"`
	Answers       map[string]any `json:"answers"`
	History       []string       `json:"history"`
	Outcome       string         `json:"outcome,omitempty"`
	Progress      int            `json:"progress"`
	Validation    string         `json:"validation_error,omitempty"`
}

// Completed reports whether the session reached an outcome.
func (s *Snapshot) Completed() bool {
	return s.Outcome != ""
}
