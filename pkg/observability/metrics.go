package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics holds the Prometheus instruments for flows and the HTTP surface.
type Metrics struct {
	// Flow metrics
	StepVisitsTotal         *prometheus.CounterVec
	AnswersTotal            *prometheus.CounterVec
	ValidationFailuresTotal *prometheus.CounterVec
	OutcomesTotal           *prometheus.CounterVec
	FlowsLoaded             prometheus.Gauge
	FlowReloadsTotal        *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepVisitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_step_visits_total",
			Help: "Total number of step entries.",
		}, []string{"flow_id", "step_id"}),
		AnswersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Total number of committed answers.",
		}, []string{"flow_id", "step_id"}),
		ValidationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_validation_failures_total",
			Help: "Total number of answers rejected by validation.",
		}, []string{"flow_id", "step_id"}),
		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_outcomes_total",
			Help: "Total number of sessions that reached an outcome.",
		}, []string{"flow_id", "outcome_id", "kind"}),
		FlowsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_flows_loaded",
			Help: "Number of flow versions currently registered.",
		}),
		FlowReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_flow_reloads_total",
			Help: "Total number of flow reload attempts.",
		}, []string{"status"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiz_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
	}

	reg.MustRegister(
		m.StepVisitsTotal,
		m.AnswersTotal,
		m.ValidationFailuresTotal,
		m.OutcomesTotal,
		m.FlowsLoaded,
		m.FlowReloadsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Hooks counts lifecycle events.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			m.StepVisitsTotal.WithLabelValues(e.FlowID, e.StepID).Inc()
		},
		OnAnswer: func(_ context.Context, e *domain.AnswerEvent) {
			m.AnswersTotal.WithLabelValues(e.FlowID, e.StepID).Inc()
		},
		OnValidationFailed: func(_ context.Context, e *domain.AnswerEvent) {
			m.ValidationFailuresTotal.WithLabelValues(e.FlowID, e.StepID).Inc()
		},
		OnOutcome: func(_ context.Context, e *domain.OutcomeEvent) {
			m.OutcomesTotal.WithLabelValues(e.FlowID, e.OutcomeID, string(e.Kind)).Inc()
		},
	}
}

// RecordFlowReload records a reload attempt and, on success, the new flow count.
func (m *Metrics) RecordFlowReload(loaded int, err error) {
	if err != nil {
		m.FlowReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.FlowReloadsTotal.WithLabelValues("ok").Inc()
	m.FlowsLoaded.Set(float64(loaded))
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
}

// Middleware records request metrics labelled with chi's route pattern rather
// than the raw path, which would carry session ids.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start))
	})
}

// Handler returns the Prometheus handler for a /metrics endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.TrimSuffix(rctx.RoutePattern(), "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Flush keeps streaming handlers working behind the middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
