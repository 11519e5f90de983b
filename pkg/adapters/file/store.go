package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
	"github.com/google/uuid"
)

// document is the on-disk shape of one session.
type document struct {
	Session domain.SessionRecord  `json:"session"`
	Answers []domain.AnswerRecord `json:"answers"`
}

// Store implements ports.SessionStore using the local filesystem.
// It stores each session with its answers as a JSON file in a configured directory.
type Store struct {
	BasePath string

	mu sync.Mutex
}

var _ ports.SessionStore = (*Store)(nil)

// NewStore creates a new Store with the given base path.
// If basePath is empty, it defaults to ".quiz/sessions".
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".quiz", "sessions")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.BasePath, id+".json")
}

func (s *Store) read(id string) (*document, error) {
	if id == "" {
		return nil, fmt.Errorf("session id cannot be empty")
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &doc, nil
}

// write persists doc atomically: temp file in the same directory, fsync, rename.
func (s *Store) write(doc *document) error {
	id := doc.Session.ID
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure session directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+id+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(id)); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s *Store) modify(id string, fn func(doc *document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(id)
	if err != nil {
		return err
	}
	fn(doc)
	return s.write(doc)
}

// CreateSession writes a new session file.
func (s *Store) CreateSession(ctx context.Context, rec *domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(&document{Session: *rec})
}

// GetSession reads a session file.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.SessionRecord, []domain.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(id)
	if err != nil {
		return nil, nil, err
	}
	return &doc.Session, doc.Answers, nil
}

// SaveAnswer appends the answer and moves the current step to it.
func (s *Store) SaveAnswer(ctx context.Context, answer domain.AnswerRecord) error {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = time.Now().UTC()
	}
	return s.modify(answer.SessionID, func(doc *document) {
		doc.Answers = append(doc.Answers, answer)
		slices.SortStableFunc(doc.Answers, func(a, b domain.AnswerRecord) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
		doc.Session.CurrentStep = answer.StepID
		doc.Session.UpdatedAt = answer.CreatedAt
	})
}

// SetCurrentStep records the session position.
func (s *Store) SetCurrentStep(ctx context.Context, id, stepID string) error {
	return s.modify(id, func(doc *document) {
		doc.Session.CurrentStep = stepID
		doc.Session.UpdatedAt = time.Now().UTC()
	})
}

// CompleteSession marks the session completed.
func (s *Store) CompleteSession(ctx context.Context, id, outcome string) error {
	return s.modify(id, func(doc *document) {
		now := time.Now().UTC()
		doc.Session.Status = domain.SessionCompleted
		doc.Session.Outcome = outcome
		doc.Session.CurrentStep = outcome
		doc.Session.CompletedAt = &now
		doc.Session.UpdatedAt = now
	})
}

// AbandonSession marks the session abandoned.
func (s *Store) AbandonSession(ctx context.Context, id string) error {
	return s.modify(id, func(doc *document) {
		doc.Session.Status = domain.SessionAbandoned
		doc.Session.UpdatedAt = time.Now().UTC()
	})
}

// FindIncompleteSession returns the newest in-progress session of userID on flowID.
func (s *Store) FindIncompleteSession(ctx context.Context, flowID, userID string) (*domain.SessionRecord, error) {
	list, err := s.ListSessions(ctx, ports.SessionFilter{FlowID: flowID, UserID: userID, Status: domain.SessionInProgress})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return &list[0], nil
}

// ListSessions scans the session directory.
func (s *Store) ListSessions(ctx context.Context, filter ports.SessionFilter) ([]domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.SessionRecord{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var out []domain.SessionRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		doc, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		if filter.Match(&doc.Session) {
			out = append(out, doc.Session)
		}
	}
	slices.SortFunc(out, func(a, b domain.SessionRecord) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return out, nil
}

// DeleteSession removes the session file.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}
