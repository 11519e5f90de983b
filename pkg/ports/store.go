package ports

import (
	"context"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// SessionFilter narrows ListSessions. Zero fields match everything.
type SessionFilter struct {
	FlowID string
	UserID string
	Status domain.SessionStatus
}

// Match reports whether rec satisfies the filter.
func (f SessionFilter) Match(rec *domain.SessionRecord) bool {
	return (f.FlowID == "" || rec.FlowID == f.FlowID) &&
		(f.UserID == "" || rec.UserID == f.UserID) &&
		(f.Status == "" || rec.Status == f.Status)
}

// SessionStore defines the interface for persisting sessions and their answers.
// Methods addressing a missing session return domain.ErrSessionNotFound.
type SessionStore interface {
	// CreateSession stores a new session record.
	CreateSession(ctx context.Context, rec *domain.SessionRecord) error

	// GetSession returns the record and its answers ordered by creation time.
	GetSession(ctx context.Context, id string) (*domain.SessionRecord, []domain.AnswerRecord, error)

	// SaveAnswer appends an answer and moves the session's current step to the answered step.
	SaveAnswer(ctx context.Context, answer domain.AnswerRecord) error

	// SetCurrentStep records the position of the session after a transition.
	SetCurrentStep(ctx context.Context, id, stepID string) error

	// CompleteSession marks the session completed with the given outcome.
	CompleteSession(ctx context.Context, id, outcome string) error

	// AbandonSession marks the session abandoned.
	AbandonSession(ctx context.Context, id string) error

	// FindIncompleteSession returns the most recently started in-progress session
	// of userID on flowID.
	FindIncompleteSession(ctx context.Context, flowID, userID string) (*domain.SessionRecord, error)

	// ListSessions returns the records matching filter, most recently started first.
	ListSessions(ctx context.Context, filter SessionFilter) ([]domain.SessionRecord, error)

	// DeleteSession removes a session and its answers.
	DeleteSession(ctx context.Context, id string) error
}
