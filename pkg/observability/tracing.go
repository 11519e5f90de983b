package observability

import (
	"context"
	"fmt"
	"io"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dylan-euc/client-side-quiz"

// Attribute keys set on lifecycle spans.
var (
	AttrSessionID   = attribute.Key("quiz.session_id")
	AttrFlowID      = attribute.Key("quiz.flow_id")
	AttrStepID      = attribute.Key("quiz.step_id")
	AttrStepKind    = attribute.Key("quiz.step_kind")
	AttrShortcode   = attribute.Key("quiz.shortcode")
	AttrOutcomeID   = attribute.Key("quiz.outcome_id")
	AttrOutcomeKind = attribute.Key("quiz.outcome_kind")
	AttrAnswered    = attribute.Key("quiz.answered")
)

// Tracer returns the package tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// TracingHooks records each lifecycle event as a short span, parented to
// whatever span the caller's context carries.
func TracingHooks(tracer trace.Tracer) domain.LifecycleHooks {
	if tracer == nil {
		tracer = Tracer()
	}
	span := func(ctx context.Context, name string, attrs ...attribute.KeyValue) trace.Span {
		_, s := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
		return s
	}
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			span(ctx, "quiz.step_enter",
				AttrSessionID.String(e.SessionID),
				AttrFlowID.String(e.FlowID),
				AttrStepID.String(e.StepID),
				AttrStepKind.String(string(e.StepKind)),
			).End()
		},
		OnAnswer: func(ctx context.Context, e *domain.AnswerEvent) {
			span(ctx, "quiz.answer",
				AttrSessionID.String(e.SessionID),
				AttrFlowID.String(e.FlowID),
				AttrStepID.String(e.StepID),
				AttrShortcode.String(e.Shortcode),
			).End()
		},
		OnValidationFailed: func(ctx context.Context, e *domain.AnswerEvent) {
			s := span(ctx, "quiz.validation_failed",
				AttrSessionID.String(e.SessionID),
				AttrFlowID.String(e.FlowID),
				AttrStepID.String(e.StepID),
			)
			s.SetStatus(codes.Error, e.Message)
			s.End()
		},
		OnOutcome: func(ctx context.Context, e *domain.OutcomeEvent) {
			span(ctx, "quiz.outcome",
				AttrSessionID.String(e.SessionID),
				AttrFlowID.String(e.FlowID),
				AttrOutcomeID.String(e.OutcomeID),
				AttrOutcomeKind.String(string(e.Kind)),
				AttrAnswered.Int(e.Answered),
			).End()
		},
	}
}

// InitTracing installs a global TracerProvider exporting to w as pretty JSON.
// A nil w disables tracing. The returned function flushes pending spans.
func InitTracing(ctx context.Context, w io.Writer, serviceName, serviceVersion string) (shutdown func(context.Context) error, err error) {
	if w == nil {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("tracing: create exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", serviceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
