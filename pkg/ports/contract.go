package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405.000000")
	seq := 0
	newRecord := func(flowID, userID string) *domain.SessionRecord {
		seq++
		now := time.Now().UTC().Truncate(time.Millisecond).Add(time.Duration(seq) * time.Second)
		return &domain.SessionRecord{
			ID:          fmt.Sprintf("%s-%d", prefix, seq),
			FlowID:      flowID,
			FlowVersion: "1.0.0",
			UserID:      userID,
			Status:      domain.SessionInProgress,
			CurrentStep: "welcome",
			StartedAt:   now,
			UpdatedAt:   now,
		}
	}

	t.Run("Create and Get", func(t *testing.T) {
		rec := newRecord("weight-loss", "user-1")
		require.NoError(t, store.CreateSession(ctx, rec))

		loaded, answers, err := store.GetSession(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, loaded.ID)
		assert.Equal(t, "weight-loss", loaded.FlowID)
		assert.Equal(t, "1.0.0", loaded.FlowVersion)
		assert.Equal(t, "user-1", loaded.UserID)
		assert.Equal(t, domain.SessionInProgress, loaded.Status)
		assert.Empty(t, answers)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, _, err := store.GetSession(ctx, "non-existent-"+prefix)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Answers Are Ordered And Move Current Step", func(t *testing.T) {
		rec := newRecord("weight-loss", "user-2")
		require.NoError(t, store.CreateSession(ctx, rec))

		base := rec.StartedAt
		require.NoError(t, store.SaveAnswer(ctx, domain.AnswerRecord{
			SessionID: rec.ID, StepID: "age", Shortcode: "patient_age", Value: 42.0, CreatedAt: base.Add(time.Second),
		}))
		require.NoError(t, store.SaveAnswer(ctx, domain.AnswerRecord{
			SessionID: rec.ID, StepID: "conditions", Value: []any{"asthma"}, CreatedAt: base.Add(2 * time.Second),
		}))

		loaded, answers, err := store.GetSession(ctx, rec.ID)
		require.NoError(t, err)
		require.Len(t, answers, 2)
		assert.Equal(t, "age", answers[0].StepID)
		assert.Equal(t, "patient_age", answers[0].Shortcode)
		assert.EqualValues(t, 42, answers[0].Value)
		assert.Equal(t, "conditions", answers[1].StepID)
		assert.Equal(t, []any{"asthma"}, answers[1].Value)
		assert.Equal(t, "conditions", loaded.CurrentStep)

		require.NoError(t, store.SetCurrentStep(ctx, rec.ID, "goals"))
		loaded, _, err = store.GetSession(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "goals", loaded.CurrentStep)
	})

	t.Run("Save Answer To Missing Session", func(t *testing.T) {
		err := store.SaveAnswer(ctx, domain.AnswerRecord{SessionID: "missing-" + prefix, StepID: "age", Value: 1.0})
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Complete", func(t *testing.T) {
		rec := newRecord("weight-loss", "user-3")
		require.NoError(t, store.CreateSession(ctx, rec))
		require.NoError(t, store.CompleteSession(ctx, rec.ID, "outcome:eligible"))

		loaded, _, err := store.GetSession(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionCompleted, loaded.Status)
		assert.Equal(t, "outcome:eligible", loaded.Outcome)
		assert.NotNil(t, loaded.CompletedAt)

		assert.ErrorIs(t, store.CompleteSession(ctx, "missing-"+prefix, "outcome:eligible"), domain.ErrSessionNotFound)
	})

	t.Run("Abandon", func(t *testing.T) {
		rec := newRecord("weight-loss", "user-4")
		require.NoError(t, store.CreateSession(ctx, rec))
		require.NoError(t, store.AbandonSession(ctx, rec.ID))

		loaded, _, err := store.GetSession(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionAbandoned, loaded.Status)
	})

	t.Run("Find Incomplete", func(t *testing.T) {
		older := newRecord("skin-consult", "user-5")
		newer := newRecord("skin-consult", "user-5")
		done := newRecord("skin-consult", "user-5")
		require.NoError(t, store.CreateSession(ctx, older))
		require.NoError(t, store.CreateSession(ctx, newer))
		require.NoError(t, store.CreateSession(ctx, done))
		require.NoError(t, store.CompleteSession(ctx, done.ID, "outcome:eligible"))

		found, err := store.FindIncompleteSession(ctx, "skin-consult", "user-5")
		require.NoError(t, err)
		assert.Equal(t, newer.ID, found.ID)

		_, err = store.FindIncompleteSession(ctx, "skin-consult", "nobody-"+prefix)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("List And Delete", func(t *testing.T) {
		a := newRecord("list-flow-"+prefix, "user-6")
		b := newRecord("list-flow-"+prefix, "user-7")
		require.NoError(t, store.CreateSession(ctx, a))
		require.NoError(t, store.CreateSession(ctx, b))

		all, err := store.ListSessions(ctx, SessionFilter{FlowID: a.FlowID})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, b.ID, all[0].ID, "most recent first")

		mine, err := store.ListSessions(ctx, SessionFilter{FlowID: a.FlowID, UserID: "user-6"})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, a.ID, mine[0].ID)

		require.NoError(t, store.DeleteSession(ctx, a.ID))
		_, _, err = store.GetSession(ctx, a.ID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		all, err = store.ListSessions(ctx, SessionFilter{FlowID: a.FlowID})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}
