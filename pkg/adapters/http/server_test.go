package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	quizhttp "github.com/dylan-euc/client-side-quiz/pkg/adapters/http"
	"github.com/dylan-euc/client-side-quiz/pkg/adapters/memory"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/observability"
	"github.com/dylan-euc/client-side-quiz/pkg/registry"
	"github.com/dylan-euc/client-side-quiz/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightLoss(version string) *domain.FlowDefinition {
	return &domain.FlowDefinition{
		ID:          "weight-loss",
		Name:        "Weight loss onboarding",
		Version:     version,
		InitialStep: "welcome",
		Steps: []domain.Step{
			{ID: "welcome", Kind: domain.KindInfo, Question: "Welcome", Next: domain.Goto("age")},
			{
				ID:         "age",
				Kind:       domain.KindNumber,
				Question:   "How old are you?",
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

type fixture struct {
	handler http.Handler
	store   *memory.Store
	metrics *observability.Metrics
}

func newFixture(t *testing.T, opts ...quizhttp.Option) *fixture {
	t.Helper()
	reg, err := registry.New([]*domain.FlowDefinition{weightLoss("1.0.0"), weightLoss("1.1.0")})
	require.NoError(t, err)
	store := memory.NewStore()
	promReg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promReg)
	mgr := session.NewManager(reg, store, session.WithHooks(metrics.Hooks()))
	opts = append([]quizhttp.Option{quizhttp.WithMetrics(metrics, promReg)}, opts...)
	return &fixture{handler: quizhttp.NewHandler(reg, mgr, opts...), store: store, metrics: metrics}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestFlows(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/flows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	flows := decode[[]quizhttp.FlowSummary](t, rec)
	require.Len(t, flows, 1)
	assert.Equal(t, "1.1.0", flows[0].Version)
	assert.Equal(t, []string{"1.1.0", "1.0.0"}, flows[0].Versions)
	assert.Equal(t, 2, flows[0].Questions)

	rec = f.do(t, http.MethodGet, "/flows/weight-loss?version=1.0.0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]any](t, rec)
	assert.Equal(t, "1.0.0", doc["version"])
	assert.Equal(t, "welcome", doc["initialStep"])

	rec = f.do(t, http.MethodGet, "/flows/weight-loss/versions", nil)
	assert.Equal(t, []string{"1.1.0", "1.0.0"}, decode[[]string](t, rec))

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/flows/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/flows/nope/versions", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/flows/weight-loss?version=9.0.0", nil).Code)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/sessions", quizhttp.StartRequest{FlowID: "weight-loss", UserID: "u1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[quizhttp.SessionResponse](t, rec)
	id := resp.State.SessionID
	require.NotEmpty(t, id)
	assert.Equal(t, "welcome", resp.Screen.StepID)
	assert.Equal(t, domain.KindInfo, resp.Screen.Kind)

	rec = f.do(t, http.MethodPost, "/sessions/"+id+"/answer", quizhttp.AnswerRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "age", decode[quizhttp.SessionResponse](t, rec).Screen.StepID)

	rec = f.do(t, http.MethodPost, "/sessions/"+id+"/answer", quizhttp.AnswerRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[quizhttp.SessionResponse](t, rec)
	assert.Equal(t, "age", resp.Screen.StepID)
	assert.Equal(t, "This field is required", resp.State.Validation)

	rec = f.do(t, http.MethodPost, "/sessions/"+id+"/answer", quizhttp.AnswerRequest{Value: 42})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "goals", decode[quizhttp.SessionResponse](t, rec).Screen.StepID)

	rec = f.do(t, http.MethodPost, "/sessions/"+id+"/back", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[quizhttp.SessionResponse](t, rec)
	assert.Equal(t, "age", resp.Screen.StepID)
	assert.Equal(t, 42.0, resp.Screen.Answer)

	f.do(t, http.MethodPost, "/sessions/"+id+"/answer", quizhttp.AnswerRequest{Value: 42})
	rec = f.do(t, http.MethodPost, "/sessions/"+id+"/answer", quizhttp.AnswerRequest{Value: "more energy"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[quizhttp.SessionResponse](t, rec)
	assert.True(t, resp.Screen.Terminal)
	require.NotNil(t, resp.Screen.Outcome)
	assert.Equal(t, domain.OutcomeEligible, resp.Screen.Outcome.Kind)
	assert.Equal(t, "outcome:eligible", resp.State.Outcome)

	rec = f.do(t, http.MethodPost, "/sessions/"+id+"/answer", quizhttp.AnswerRequest{Value: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, decode[quizhttp.SessionResponse](t, rec).State.Progress)

	rec = f.do(t, http.MethodGet, "/sessions?user_id=u1&status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.SessionRecord](t, rec), 1)
}

func TestSessionResetAbandonDelete(t *testing.T) {
	f := newFixture(t)

	start := func() string {
		rec := f.do(t, http.MethodPost, "/sessions", quizhttp.StartRequest{FlowID: "weight-loss", Version: "1.0.0"})
		require.Equal(t, http.StatusCreated, rec.Code)
		return decode[quizhttp.SessionResponse](t, rec).State.SessionID
	}

	id := start()
	rec := f.do(t, http.MethodPost, "/sessions/"+id+"/reset", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	fresh := decode[quizhttp.SessionResponse](t, rec)
	assert.NotEqual(t, id, fresh.State.SessionID)
	assert.Equal(t, "1.0.0", fresh.State.FlowVersion)

	rec = f.do(t, http.MethodPost, "/sessions/"+id+"/answer", quizhttp.AnswerRequest{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/sessions/"+fresh.State.SessionID+"/abandon", nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/sessions/"+fresh.State.SessionID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/sessions/"+fresh.State.SessionID, nil).Code)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/sessions", quizhttp.StartRequest{}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/sessions", quizhttp.StartRequest{FlowID: "nope"}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/sessions/missing/answer", quizhttp.AnswerRequest{Value: 1}).Code)

	rec = f.do(t, http.MethodPost, "/sessions", quizhttp.StartRequest{FlowID: "weight-loss"})
	id := decode[quizhttp.SessionResponse](t, rec).State.SessionID
	rec = f.do(t, http.MethodPost, "/sessions/"+id+"/answer", quizhttp.AnswerRequest{Value: strings.Repeat("x", 5000)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGraph(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/flows/weight-loss/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "graph TD")
	assert.NotContains(t, rec.Body.String(), "classDef visited")

	rec = f.do(t, http.MethodPost, "/sessions", quizhttp.StartRequest{FlowID: "weight-loss"})
	id := decode[quizhttp.SessionResponse](t, rec).State.SessionID
	f.do(t, http.MethodPost, "/sessions/"+id+"/answer", quizhttp.AnswerRequest{})

	rec = f.do(t, http.MethodGet, "/flows/weight-loss/graph?session_id="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "class welcome visited;")
	assert.Contains(t, rec.Body.String(), "class age current;")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/flows/weight-loss", nil)
	f.do(t, http.MethodPost, "/sessions", quizhttp.StartRequest{FlowID: "weight-loss"})

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `quiz_http_requests_total{method="GET",path_pattern="/flows/{id}",status="200"} 1`)
	assert.Contains(t, body, "quiz_flows_loaded 0")
}

func readEvent(t *testing.T, sc *bufio.Scanner, prefix string) string {
	t.Helper()
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, prefix) {
			return line
		}
	}
	t.Fatalf("stream ended before %q: %v", prefix, sc.Err())
	return ""
}

func TestSubscribeSession(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	rec := f.do(t, http.MethodPost, "/sessions", quizhttp.StartRequest{FlowID: "weight-loss"})
	id := decode[quizhttp.SessionResponse](t, rec).State.SessionID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	readEvent(t, sc, "data: connected")

	f.do(t, http.MethodPost, "/sessions/"+id+"/answer", quizhttp.AnswerRequest{})

	line := readEvent(t, sc, "data: {")
	var diff domain.SnapshotDiff
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &diff))
	require.NotNil(t, diff.CurrentStepID)
	assert.Equal(t, "age", *diff.CurrentStepID)
	require.NotNil(t, diff.History)
	assert.Equal(t, []string{"age"}, diff.History.Appended)
}

func TestSubscribeReloads(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t)
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/events", nil).Code)
	})

	t.Run("enabled", func(t *testing.T) {
		f := newFixture(t, quizhttp.WithReloads(func(ctx context.Context) (<-chan struct{}, error) {
			ch := make(chan struct{}, 1)
			ch <- struct{}{}
			close(ch)
			return ch, nil
		}))
		rec := f.do(t, http.MethodGet, "/events", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "event: ping")
		assert.Contains(t, rec.Body.String(), "event: reload")
	})
}
