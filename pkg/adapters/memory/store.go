package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
	"github.com/google/uuid"
)

type entry struct {
	record  domain.SessionRecord
	answers []domain.AnswerRecord
}

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*entry
	mu   sync.RWMutex
}

var _ ports.SessionStore = (*Store)(nil)

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*entry),
	}
}

// CreateSession stores a copy of rec.
func (s *Store) CreateSession(ctx context.Context, rec *domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.ID] = &entry{record: copyRecord(*rec)}
	return nil
}

// GetSession returns copies so callers can't mutate store state through them.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.SessionRecord, []domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[id]
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	rec := copyRecord(e.record)
	return &rec, slices.Clone(e.answers), nil
}

// SaveAnswer appends the answer, keeping answers ordered by CreatedAt.
func (s *Store) SaveAnswer(ctx context.Context, answer domain.AnswerRecord) error {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[answer.SessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	i := len(e.answers)
	for i > 0 && e.answers[i-1].CreatedAt.After(answer.CreatedAt) {
		i--
	}
	e.answers = slices.Insert(e.answers, i, answer)
	e.record.CurrentStep = answer.StepID
	e.record.UpdatedAt = answer.CreatedAt
	return nil
}

func (s *Store) update(id string, fn func(rec *domain.SessionRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	fn(&e.record)
	e.record.UpdatedAt = time.Now().UTC()
	return nil
}

// SetCurrentStep records the session position.
func (s *Store) SetCurrentStep(ctx context.Context, id, stepID string) error {
	return s.update(id, func(rec *domain.SessionRecord) {
		rec.CurrentStep = stepID
	})
}

// CompleteSession marks the session completed.
func (s *Store) CompleteSession(ctx context.Context, id, outcome string) error {
	return s.update(id, func(rec *domain.SessionRecord) {
		now := time.Now().UTC()
		rec.Status = domain.SessionCompleted
		rec.Outcome = outcome
		rec.CurrentStep = outcome
		rec.CompletedAt = &now
	})
}

// AbandonSession marks the session abandoned.
func (s *Store) AbandonSession(ctx context.Context, id string) error {
	return s.update(id, func(rec *domain.SessionRecord) {
		rec.Status = domain.SessionAbandoned
	})
}

// FindIncompleteSession returns the newest in-progress session of userID on flowID.
func (s *Store) FindIncompleteSession(ctx context.Context, flowID, userID string) (*domain.SessionRecord, error) {
	list, err := s.ListSessions(ctx, ports.SessionFilter{
		FlowID: flowID,
		UserID: userID,
		Status: domain.SessionInProgress,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return &list[0], nil
}

// ListSessions returns matching sessions, most recently started first.
func (s *Store) ListSessions(ctx context.Context, filter ports.SessionFilter) ([]domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SessionRecord, 0, len(s.data))
	for _, e := range s.data {
		if filter.Match(&e.record) {
			out = append(out, copyRecord(e.record))
		}
	}
	slices.SortFunc(out, func(a, b domain.SessionRecord) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return out, nil
}

// DeleteSession removes the session and its answers.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func copyRecord(rec domain.SessionRecord) domain.SessionRecord {
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		rec.CompletedAt = &t
	}
	return rec
}
