package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dylan-euc/client-side-quiz/pkg/adapters/memory"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
	"github.com/dylan-euc/client-side-quiz/pkg/registry"
	"github.com/dylan-euc/client-side-quiz/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightLoss(version string) *domain.FlowDefinition {
	return &domain.FlowDefinition{
		ID:          "weight-loss",
		Version:     version,
		InitialStep: "welcome",
		Steps: []domain.Step{
			{ID: "welcome", Kind: domain.KindInfo, Next: domain.Goto("age")},
			{
				ID:         "age",
				Kind:       domain.KindNumber,
				Shortcode:  "patient_age",
				Validation: &domain.ValidationRules{Required: true},
				Next: domain.Branches(
					domain.When(domain.LT(18), "outcome:ineligible-age"),
					domain.Otherwise("goals"),
				),
			},
			{
				ID:         "goals",
				Kind:       domain.KindText,
				Validation: &domain.ValidationRules{Required: true},
				Next:       domain.Goto("outcome:eligible"),
			},
		},
		Outcomes: map[string]domain.Outcome{
			"outcome:eligible":       {Kind: domain.OutcomeEligible},
			"outcome:ineligible-age": {Kind: domain.OutcomeIneligible},
		},
	}
}

func newManager(t *testing.T, opts ...session.Option) (*session.Manager, *memory.Store) {
	t.Helper()
	reg, err := registry.New([]*domain.FlowDefinition{weightLoss("1.0.0"), weightLoss("1.1.0")})
	require.NoError(t, err)
	store := memory.NewStore()
	return session.NewManager(reg, store, opts...), store
}

func TestManager_StartAndComplete(t *testing.T) {
	ctx := context.Background()
	mgr, store := newManager(t)

	s, err := mgr.Start(ctx, "weight-loss", session.StartOptions{UserID: "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, s.ID())
	assert.Equal(t, "1.1.0", s.Flow().Version, "current version by default")
	assert.Equal(t, "welcome", s.CurrentStepID())

	s, err = mgr.Submit(ctx, s.ID(), nil)
	require.NoError(t, err)
	assert.Equal(t, "age", s.CurrentStepID())

	s, err = mgr.Submit(ctx, s.ID(), 42.0)
	require.NoError(t, err)
	assert.Equal(t, "goals", s.CurrentStepID())

	rec, answers, err := store.GetSession(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, "goals", rec.CurrentStep)
	require.Len(t, answers, 1)
	assert.Equal(t, "patient_age", answers[0].Shortcode)

	s, err = mgr.Submit(ctx, s.ID(), "feel better")
	require.NoError(t, err)
	assert.True(t, s.IsOutcome())
	assert.Equal(t, 100, s.Progress().Percentage)

	rec, _, err = store.GetSession(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, rec.Status)
	assert.Equal(t, "outcome:eligible", rec.Outcome)

	_, err = mgr.Submit(ctx, s.ID(), "again")
	assert.ErrorIs(t, err, domain.ErrSessionCompleted)

	again, err := mgr.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, "outcome:eligible", again.CurrentStepID())
}

func TestManager_ValidationFailureIsNotAnError(t *testing.T) {
	ctx := context.Background()
	mgr, store := newManager(t)

	s, err := mgr.Start(ctx, "weight-loss", session.StartOptions{})
	require.NoError(t, err)
	_, err = mgr.Submit(ctx, s.ID(), nil)
	require.NoError(t, err)

	s, err = mgr.Submit(ctx, s.ID(), nil)
	require.NoError(t, err)
	assert.Equal(t, "age", s.CurrentStepID())
	assert.Equal(t, "This field is required", s.ValidationError())

	_, answers, err := store.GetSession(ctx, s.ID())
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestManager_BackUsesReplayedHistory(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)

	s, err := mgr.Start(ctx, "weight-loss", session.StartOptions{})
	require.NoError(t, err)
	id := s.ID()
	_, err = mgr.Submit(ctx, id, nil)
	require.NoError(t, err)
	_, err = mgr.Submit(ctx, id, 42.0)
	require.NoError(t, err)

	s, err = mgr.Back(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "age", s.CurrentStepID())
	assert.Equal(t, 42.0, s.CurrentAnswer())

	s, err = mgr.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"welcome", "age"}, s.History())

	// Re-answering overrides the earlier answer (last write wins).
	s, err = mgr.Submit(ctx, id, 15.0)
	require.NoError(t, err)
	assert.Equal(t, "outcome:ineligible-age", s.CurrentStepID())
	assert.Equal(t, 15.0, s.Answers()["age"])
}

func TestManager_ResumeIncomplete(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)

	first, err := mgr.Start(ctx, "weight-loss", session.StartOptions{UserID: "u1", Version: "1.0.0"})
	require.NoError(t, err)
	_, err = mgr.Submit(ctx, first.ID(), nil)
	require.NoError(t, err)

	resumed, err := mgr.Start(ctx, "weight-loss", session.StartOptions{UserID: "u1", Resume: true})
	require.NoError(t, err)
	assert.Equal(t, first.ID(), resumed.ID())
	assert.Equal(t, "1.0.0", resumed.Flow().Version, "resumed sessions keep their flow version")
	assert.Equal(t, "age", resumed.CurrentStepID())

	other, err := mgr.Start(ctx, "weight-loss", session.StartOptions{UserID: "u2", Resume: true})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), other.ID())
}

func TestManager_ResetAndAbandon(t *testing.T) {
	ctx := context.Background()
	mgr, store := newManager(t)

	s, err := mgr.Start(ctx, "weight-loss", session.StartOptions{UserID: "u1", Version: "1.0.0"})
	require.NoError(t, err)
	_, err = mgr.Submit(ctx, s.ID(), nil)
	require.NoError(t, err)

	fresh, err := mgr.Reset(ctx, s.ID())
	require.NoError(t, err)
	assert.NotEqual(t, s.ID(), fresh.ID())
	assert.Equal(t, "welcome", fresh.CurrentStepID())
	assert.Equal(t, "1.0.0", fresh.Flow().Version)

	old, _, err := store.GetSession(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionAbandoned, old.Status)

	_, err = mgr.Submit(ctx, s.ID(), 30.0)
	assert.ErrorIs(t, err, domain.ErrSessionAbandoned)

	require.NoError(t, mgr.Abandon(ctx, fresh.ID()))
	list, err := mgr.List(ctx, ports.SessionFilter{UserID: "u1", Status: domain.SessionAbandoned})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestManager_UnknownFlowAndSession(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)

	_, err := mgr.Start(ctx, "nope", session.StartOptions{})
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	_, err = mgr.Start(ctx, "weight-loss", session.StartOptions{Version: "9.9.9"})
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)

	_, err = mgr.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = mgr.Submit(ctx, "missing", 1.0)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type failingStore struct {
	*memory.Store
	err error
}

func (f *failingStore) SaveAnswer(ctx context.Context, a domain.AnswerRecord) error {
	return f.err
}

func TestManager_StoreFailureKeepsPosition(t *testing.T) {
	ctx := context.Background()
	reg, err := registry.New([]*domain.FlowDefinition{weightLoss("1.0.0")})
	require.NoError(t, err)
	boom := errors.New("disk full")
	store := &failingStore{Store: memory.NewStore(), err: boom}
	mgr := session.NewManager(reg, store, session.WithIDGenerator(func() string { return "fixed" }))

	s, err := mgr.Start(ctx, "weight-loss", session.StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, "fixed", s.ID())
	_, err = mgr.Submit(ctx, "fixed", nil)
	require.NoError(t, err)

	_, err = mgr.Submit(ctx, "fixed", 42.0)
	assert.ErrorIs(t, err, boom)

	s, err = mgr.Get(ctx, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "age", s.CurrentStepID())
	assert.Empty(t, s.Answers())
}

type countingLocker struct {
	held     atomic.Int32
	overlaps atomic.Int32
	calls    atomic.Int32
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.calls.Add(1)
	if l.held.Add(1) > 1 {
		l.overlaps.Add(1)
	}
	return func(context.Context) error {
		l.held.Add(-1)
		return nil
	}, nil
}

func TestManager_ConcurrentSubmitsAreSerialized(t *testing.T) {
	ctx := context.Background()
	locker := &countingLocker{}
	mgr, store := newManager(t, session.WithLocker(locker))

	s, err := mgr.Start(ctx, "weight-loss", session.StartOptions{})
	require.NoError(t, err)
	id := s.ID()
	_, err = mgr.Submit(ctx, id, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(age int) {
			defer wg.Done()
			_, err := mgr.Submit(ctx, id, float64(18+age))
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrSessionCompleted, fmt.Sprint(age))
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, locker.overlaps.Load())
	assert.GreaterOrEqual(t, locker.calls.Load(), int32(11))

	// One submit answered age, one answered goals, the rest hit the outcome.
	rec, answers, err := store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, rec.Status)
	assert.Len(t, answers, 2)
}
