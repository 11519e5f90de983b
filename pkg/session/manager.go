package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dylan-euc/client-side-quiz/internal/logging"
	"github.com/dylan-euc/client-side-quiz/internal/runtime"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
	"github.com/google/uuid"
)

const defaultLockTTL = 30 * time.Second

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager runs server-side sessions: every operation rebuilds the state machine
// from the store, applies one transition and persists the result.
//
// Operations on one session id are serialized in-process, and across replicas
// when a DistributedLocker is configured.
type Manager struct {
	flows ports.FlowRegistry
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	newID   func() string
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocker coordinates access across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger sets the logger for internal events (like deferred errors).
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithHooks registers lifecycle hooks on every session the manager builds.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithIDGenerator replaces the UUID session id generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager creates a manager over a flow registry and a session store.
func NewManager(flows ports.FlowRegistry, store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		flows:   flows,
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: defaultLockTTL,
		logger:  logging.NewNop(),
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// StartOptions parameterize Start.
type StartOptions struct {
	// UserID owns the session. Empty means anonymous.
	UserID string
	// Version pins a flow version. Empty means the current version.
	Version string
	// Resume returns the user's newest in-progress session on the flow, if any,
	// instead of creating one. Requires UserID.
	Resume bool
}

// Start creates a session on a flow, or resumes one (see StartOptions.Resume).
func (m *Manager) Start(ctx context.Context, flowID string, opts StartOptions) (*runtime.Session, error) {
	if opts.Resume && opts.UserID != "" {
		rec, err := m.store.FindIncompleteSession(ctx, flowID, opts.UserID)
		switch {
		case err == nil && (opts.Version == "" || rec.FlowVersion == opts.Version):
			m.logger.Info("resuming session", logging.SessionID(rec.ID), logging.FlowID(flowID))
			return m.Get(ctx, rec.ID)
		case err != nil && !errors.Is(err, domain.ErrSessionNotFound):
			return nil, fmt.Errorf("failed to look up incomplete session: %w", err)
		}
	}

	flow, err := m.flow(flowID, opts.Version)
	if err != nil {
		return nil, err
	}

	now := m.now()
	rec := &domain.SessionRecord{
		ID:          m.newID(),
		FlowID:      flow.ID,
		FlowVersion: flow.Version,
		UserID:      opts.UserID,
		Status:      domain.SessionInProgress,
		CurrentStep: flow.InitialStep,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.CreateSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	m.logger.Info("session started",
		logging.SessionID(rec.ID),
		logging.FlowID(flow.ID),
		slog.String("flow_version", flow.Version),
	)
	return m.bind(flow, rec, nil), nil
}

func (m *Manager) flow(id, version string) (*domain.FlowDefinition, error) {
	if version == "" {
		if f, ok := m.flows.GetFlow(id); ok {
			return f, nil
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
	}
	if f, ok := m.flows.GetFlowByVersion(id, version); ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s@%s", domain.ErrFlowNotFound, id, version)
}

// Get rebuilds a session from the store without changing it.
func (m *Manager) Get(ctx context.Context, id string) (*runtime.Session, error) {
	var s *runtime.Session
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		s, _, err = m.load(ctx, id)
		return err
	})
	return s, err
}

// load rebuilds the state machine: answers replayed in creation order (last write
// wins), position from the record, history replayed from the initial step.
func (m *Manager) load(ctx context.Context, id string) (*runtime.Session, *domain.SessionRecord, error) {
	rec, answers, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	flow, err := m.flow(rec.FlowID, rec.FlowVersion)
	if err != nil {
		return nil, nil, err
	}
	return m.bind(flow, rec, domain.AnswerMap(answers)), rec, nil
}

func (m *Manager) bind(flow *domain.FlowDefinition, rec *domain.SessionRecord, answers map[string]any) *runtime.Session {
	sessionID := rec.ID
	opts := []runtime.SessionOption{
		runtime.WithSessionID(sessionID),
		runtime.WithAnswers(answers),
		runtime.WithHooks(m.hooks),
		runtime.WithLogger(m.logger),
		runtime.WithOnAnswer(func(ctx context.Context, stepID, shortcode string, value any) error {
			return m.store.SaveAnswer(ctx, domain.AnswerRecord{
				SessionID: sessionID,
				StepID:    stepID,
				Shortcode: shortcode,
				Value:     value,
				CreatedAt: m.now(),
			})
		}),
		runtime.WithOnComplete(func(ctx context.Context, outcomeID string) error {
			return m.store.CompleteSession(ctx, sessionID, outcomeID)
		}),
	}

	current := rec.CurrentStep
	if rec.Status == domain.SessionCompleted && rec.Outcome != "" {
		current = rec.Outcome
	}
	if current == "" || (!flow.HasStep(current) && !domain.IsOutcomeID(current)) {
		current = flow.InitialStep
	}
	if history := runtime.ReplayHistory(flow, answers, current); history != nil {
		opts = append(opts, runtime.WithHistory(history))
	} else {
		opts = append(opts, runtime.WithCurrentStep(current))
	}
	return runtime.NewSession(flow, opts...)
}

func (m *Manager) mutate(ctx context.Context, id string, fn func(ctx context.Context, s *runtime.Session) error) (*runtime.Session, error) {
	var s *runtime.Session
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var (
			rec *domain.SessionRecord
			err error
		)
		s, rec, err = m.load(ctx, id)
		if err != nil {
			return err
		}
		switch rec.Status {
		case domain.SessionCompleted:
			return domain.ErrSessionCompleted
		case domain.SessionAbandoned:
			return domain.ErrSessionAbandoned
		}

		before := s.CurrentStepID()
		if err := fn(ctx, s); err != nil {
			return err
		}
		if after := s.CurrentStepID(); after != before && !s.IsOutcome() {
			if err := m.store.SetCurrentStep(ctx, id, after); err != nil {
				return fmt.Errorf("failed to record position: %w", err)
			}
		}
		return nil
	})
	return s, err
}

// Submit sets value as the current answer and submits it.
// A failed validation is not an error; see Session.ValidationError.
func (m *Manager) Submit(ctx context.Context, id string, value any) (*runtime.Session, error) {
	return m.mutate(ctx, id, func(ctx context.Context, s *runtime.Session) error {
		s.SetCurrentAnswer(value)
		return s.SubmitAnswer(ctx)
	})
}

// Back moves the session to the previous step of its history.
func (m *Manager) Back(ctx context.Context, id string) (*runtime.Session, error) {
	return m.mutate(ctx, id, func(ctx context.Context, s *runtime.Session) error {
		s.GoBack()
		return nil
	})
}

// Reset abandons the session and starts a fresh one for the same user and flow
// version. Stored answers are kept for the abandoned session.
func (m *Manager) Reset(ctx context.Context, id string) (*runtime.Session, error) {
	var rec *domain.SessionRecord
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		rec, _, err = m.store.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status == domain.SessionInProgress {
			return m.store.AbandonSession(ctx, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.Start(ctx, rec.FlowID, StartOptions{UserID: rec.UserID, Version: rec.FlowVersion})
}

// Abandon marks an in-progress session abandoned.
func (m *Manager) Abandon(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		rec, _, err := m.store.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status == domain.SessionCompleted {
			return domain.ErrSessionCompleted
		}
		m.logger.Info("session abandoned", logging.SessionID(id), logging.StepID(rec.CurrentStep))
		return m.store.AbandonSession(ctx, id)
	})
}

// List returns the stored session records matching filter.
func (m *Manager) List(ctx context.Context, filter ports.SessionFilter) ([]domain.SessionRecord, error) {
	return m.store.ListSessions(ctx, filter)
}

// Delete removes a session and its answers.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.DeleteSession(ctx, id)
	})
}

func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock runs fn while holding the session's local lock and, if configured,
// its distributed lock.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					logging.SessionID(sessionID),
					logging.Err(err),
				)
			}
		}()
	}

	return fn(ctx)
}
