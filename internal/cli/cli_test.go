package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dylan-euc/client-side-quiz/internal/config"
	"github.com/dylan-euc/client-side-quiz/internal/logging"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const onboardingYAML = `
id: onboarding
version: 1.0.0
initialStep: welcome
steps:
  - id: welcome
    type: info
    question: Welcome
    next: age
  - id: age
    type: number
    question: How old are you?
    shortcode: patient_age
    validation: { required: true }
    next:
      - when: { lt: 18 }
        then: outcome:ineligible
      - default: outcome:eligible
outcomes:
  outcome:eligible: { type: eligible }
  outcome:ineligible: { type: ineligible }
`

const danglingYAML = `
id: broken
version: 1.0.0
initialStep: start
steps:
  - id: start
    type: text
    next: nowhere
`

func flowDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewNop()
	mr := miniredis.RunT(t)

	tests := []struct {
		name       string
		cfg        config.StoreConfig
		wantLocker bool
	}{
		{"memory", config.StoreConfig{Driver: config.StoreMemory}, false},
		{"file", config.StoreConfig{Driver: config.StoreFile, DSN: t.TempDir()}, false},
		{"sqlite", config.StoreConfig{Driver: config.StoreSQLite, DSN: filepath.Join(t.TempDir(), "quiz.db")}, false},
		{"redis", config.StoreConfig{Driver: config.StoreRedis, DSN: mr.Addr(), Prefix: "test:"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := OpenStorage(ctx, tt.cfg, config.SecurityConfig{}, logger)
			require.NoError(t, err)
			defer st.Close()
			assert.Equal(t, tt.wantLocker, st.Locker != nil)

			now := time.Now().UTC()
			rec := &domain.SessionRecord{
				ID: "s1", FlowID: "onboarding", FlowVersion: "1.0.0",
				Status: domain.SessionInProgress, CurrentStep: "age",
				StartedAt: now, UpdatedAt: now,
			}
			require.NoError(t, st.Store.CreateSession(ctx, rec))
			got, _, err := st.Store.GetSession(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "age", got.CurrentStep)
		})
	}

	t.Run("unknown driver", func(t *testing.T) {
		_, err := OpenStorage(ctx, config.StoreConfig{Driver: "mongo"}, config.SecurityConfig{}, logger)
		assert.ErrorIs(t, err, config.ErrUnknownStoreDriver)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		_, err := OpenStorage(ctx, config.StoreConfig{Driver: config.StoreRedis, DSN: "127.0.0.1:1"}, config.SecurityConfig{}, logger)
		assert.Error(t, err)
	})

	t.Run("bad pii pattern", func(t *testing.T) {
		_, err := OpenStorage(ctx, config.StoreConfig{Driver: config.StoreMemory}, config.SecurityConfig{PIIFields: []string{"("}}, logger)
		assert.Error(t, err)
	})
}

func TestOpenStorage_SecurityMiddleware(t *testing.T) {
	ctx := context.Background()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	st, err := OpenStorage(ctx, config.StoreConfig{Driver: config.StoreMemory}, config.SecurityConfig{
		EncryptionKey: key,
		PIIFields:     []string{"^email$"},
	}, logging.NewNop())
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, st.Store.CreateSession(ctx, &domain.SessionRecord{ID: "s1", Status: domain.SessionInProgress, StartedAt: now, UpdatedAt: now}))
	require.NoError(t, st.Store.SaveAnswer(ctx, domain.AnswerRecord{SessionID: "s1", StepID: "age", Value: 42.0, CreatedAt: now}))
	require.NoError(t, st.Store.SaveAnswer(ctx, domain.AnswerRecord{SessionID: "s1", StepID: "email", Value: "a@b.c", CreatedAt: now}))

	_, answers, err := st.Store.GetSession(ctx, "s1")
	require.NoError(t, err)
	values := domain.AnswerMap(answers)
	assert.Equal(t, 42.0, values["age"])
	assert.Equal(t, "***", values["email"])
}

func TestRunSession_Text(t *testing.T) {
	dir := flowDir(t, map[string]string{"onboarding.yaml": onboardingYAML})
	var out bytes.Buffer

	err := RunSession(context.Background(), RunOptions{
		FlowDir: dir,
		In:      strings.NewReader("\nabc\n30\n"),
		Out:     &out,
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "How old are you?")
	assert.Contains(t, text, `"abc" is not a number`)
	assert.Contains(t, text, "You're eligible")
}

func TestRunSession_JSON(t *testing.T) {
	dir := flowDir(t, map[string]string{"onboarding.yaml": onboardingYAML})
	var out bytes.Buffer

	err := RunSession(context.Background(), RunOptions{
		FlowDir: dir,
		FlowID:  "onboarding",
		JSON:    true,
		In:      strings.NewReader("null\n12\n"),
		Out:     &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"outcome:ineligible"`)
}

func TestRunSession_PersistedResume(t *testing.T) {
	ctx := context.Background()
	dir := flowDir(t, map[string]string{"onboarding.yaml": onboardingYAML})
	state := t.TempDir()
	opts := func(input string, out io.Writer, fresh bool) RunOptions {
		return RunOptions{
			FlowDir:   dir,
			SessionID: "demo",
			StateDir:  state,
			Fresh:     fresh,
			In:        strings.NewReader(input),
			Out:       out,
		}
	}

	var first bytes.Buffer
	require.NoError(t, RunSession(ctx, opts("\n", &first, false)))

	var second bytes.Buffer
	require.NoError(t, RunSession(ctx, opts("40\n", &second, false)))
	assert.Contains(t, second.String(), "How old are you?")
	assert.NotContains(t, second.String(), "Welcome")
	assert.Contains(t, second.String(), "You're eligible")

	var third bytes.Buffer
	require.NoError(t, RunSession(ctx, opts("", &third, false)))
	assert.Contains(t, third.String(), "You're eligible", "a finished session shows its outcome")

	var fresh bytes.Buffer
	require.NoError(t, RunSession(ctx, opts("", &fresh, true)))
	assert.Contains(t, fresh.String(), "Welcome")
}

func TestRunSession_FlowSelection(t *testing.T) {
	dir := flowDir(t, map[string]string{
		"onboarding.yaml": onboardingYAML,
		"other.yaml":      strings.Replace(onboardingYAML, "id: onboarding", "id: other", 1),
	})

	err := RunSession(context.Background(), RunOptions{FlowDir: dir, In: strings.NewReader(""), Out: io.Discard})
	assert.ErrorIs(t, err, ErrFlowRequired)
	assert.ErrorContains(t, err, "onboarding, other")

	err = RunSession(context.Background(), RunOptions{FlowDir: dir, FlowID: "missing", In: strings.NewReader(""), Out: io.Discard})
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestValidateDir(t *testing.T) {
	dir := flowDir(t, map[string]string{
		"a-onboarding.yaml": onboardingYAML,
		"b-broken.yaml":     danglingYAML,
	})

	results, err := ValidateDir(context.Background(), dir, false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "onboarding@1.0.0", results[0].Key)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, domain.ErrDanglingTarget)

	var out bytes.Buffer
	assert.False(t, PrintResults(&out, results))
	assert.Contains(t, out.String(), "ok   onboarding@1.0.0")
	assert.Contains(t, out.String(), "FAIL broken@1.0.0")

	_, err = ValidateDir(context.Background(), flowDir(t, map[string]string{"bad.yaml": "steps: ["}), false)
	assert.Error(t, err)
}

func TestApp_Handler(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()
	cfg.FlowDir = flowDir(t, map[string]string{"onboarding.yaml": onboardingYAML})

	app, err := NewApp(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	h := app.Handler(cfg, logging.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"flow_id":"onboarding"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quiz_flows_loaded 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := config.Defaults()
	cfg.FlowDir = flowDir(t, map[string]string{"onboarding.yaml": onboardingYAML})
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Watch = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg, logging.NewNop()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
