package quiz_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	quiz "github.com/dylan-euc/client-side-quiz"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func screeningFlow(version string) *domain.FlowDefinition {
	return &domain.FlowDefinition{
		ID:          "screening",
		Version:     version,
		InitialStep: "age",
		Steps: []domain.Step{
			{
				ID:         "age",
				Kind:       domain.KindNumber,
				Shortcode:  "patient_age",
				Validation: &domain.ValidationRules{Required: true},
				Next: domain.Branches(
					domain.When(domain.LT(18), "outcome:ineligible"),
					domain.Otherwise("outcome:eligible"),
				),
			},
		},
		Outcomes: map[string]domain.Outcome{
			"outcome:eligible":   {Kind: domain.OutcomeEligible},
			"outcome:ineligible": {Kind: domain.OutcomeIneligible},
		},
	}
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := quiz.New(context.Background())
	assert.Error(t, err)
}

func TestNew_RejectsInvalidFlow(t *testing.T) {
	broken := screeningFlow("1.0.0")
	broken.InitialStep = "missing"

	_, err := quiz.New(context.Background(), quiz.WithFlows(broken))
	var graphErr *domain.GraphError
	require.ErrorAs(t, err, &graphErr)
	assert.Equal(t, domain.CodeMissingInitialStep, graphErr.Code)
}

func TestEngine_StartAndVersions(t *testing.T) {
	eng, err := quiz.New(context.Background(), quiz.WithFlows(screeningFlow("1.0.0"), screeningFlow("1.1.0")))
	require.NoError(t, err)

	s, err := eng.Start("screening")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", s.Flow().Version)

	s, err = eng.StartWith("screening", quiz.SessionOptions{Version: "1.0.0", ID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", s.Flow().Version)
	assert.Equal(t, "abc", s.ID())

	_, err = eng.Start("nope")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	_, err = eng.StartWith("screening", quiz.SessionOptions{Version: "9.0.0"})
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestEngine_CollaboratorsAndResume(t *testing.T) {
	ctx := context.Background()
	eng, err := quiz.New(ctx, quiz.WithFlows(screeningFlow("1.0.0")))
	require.NoError(t, err)

	var saved []string
	var outcome string
	s, err := eng.StartWith("screening", quiz.SessionOptions{
		OnAnswer: func(_ context.Context, stepID, shortcode string, _ any) error {
			saved = append(saved, stepID+"/"+shortcode)
			return nil
		},
		OnComplete: func(_ context.Context, outcomeID string) error {
			outcome = outcomeID
			return nil
		},
	})
	require.NoError(t, err)

	s.SetCurrentAnswer(40.0)
	require.NoError(t, s.SubmitAnswer(ctx))
	assert.Equal(t, []string{"age/patient_age"}, saved)
	assert.Equal(t, "outcome:eligible", outcome)

	resumed, err := eng.Resume(s.Snapshot(), quiz.SessionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "outcome:eligible", resumed.CurrentStepID())
	assert.Equal(t, 40.0, resumed.Answers()["age"])
	assert.Equal(t, []string{"age", "outcome:eligible"}, resumed.History())

	snap := s.Snapshot()
	snap.History = []string{"age", "gone"}
	fresh, err := eng.Resume(snap, quiz.SessionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "age", fresh.CurrentStepID(), "unknown history falls back to the initial step")
}

func TestEvaluateAndResolve(t *testing.T) {
	answers := map[string]any{"sex": "female"}
	assert.True(t, quiz.Evaluate(domain.Equals("female").On("sex"), nil, answers))
	assert.False(t, quiz.Evaluate(domain.LT(18), 30.0, answers))

	next := domain.Branches(domain.When(domain.LT(18), "young"), domain.Otherwise("adult"))
	target, err := quiz.ResolveNext(next, 12.0, answers)
	require.NoError(t, err)
	assert.Equal(t, "young", target)

	assert.NoError(t, quiz.Validate(screeningFlow("1.0.0")))
}

const dirFlow = `
id: screening
version: %s
initialStep: age
steps:
  - id: age
    type: number
    next: outcome:done
outcomes:
  outcome:done: { type: eligible }
`

func writeFlow(t *testing.T, dir, version string) {
	t.Helper()
	body := fmt.Sprintf(dirFlow, version)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "screening-"+version+".yaml"), []byte(body), 0o644))
}

func TestEngine_ReloadNotifiesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	writeFlow(t, dir, "1.0.0")

	eng, err := quiz.New(ctx, quiz.WithFlowDir(dir))
	require.NoError(t, err)
	f, ok := eng.Registry().GetFlow("screening")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", f.Version)

	events, err := eng.Subscribe(ctx)
	require.NoError(t, err)

	writeFlow(t, dir, "1.1.0")
	n, err := eng.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no reload event")
	}
	f, _ = eng.Registry().GetFlow("screening")
	assert.Equal(t, "1.1.0", f.Version)

	// A broken file keeps the previous set.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("id: broken\ninitialStep: nope\n"), 0o644))
	_, err = eng.Reload(ctx)
	assert.Error(t, err)
	assert.Len(t, eng.Registry().GetFlowVersions("screening"), 2)
}

func TestEngine_WatchRequiresWatchableLoader(t *testing.T) {
	eng, err := quiz.New(context.Background(), quiz.WithFlows(screeningFlow("1.0.0")))
	require.NoError(t, err)
	assert.ErrorIs(t, eng.Watch(context.Background(), nil), quiz.ErrNotWatchable)
}
