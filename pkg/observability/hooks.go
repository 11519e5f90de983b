package observability

import (
	"context"
	"log/slog"

	"github.com/dylan-euc/client-side-quiz/internal/logging"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// Compose returns hooks that call each of the given hooks in order.
// Nil callbacks are skipped.
func Compose(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			for _, h := range hooks {
				if h.OnStepEnter != nil {
					h.OnStepEnter(ctx, e)
				}
			}
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			for _, h := range hooks {
				if h.OnStepLeave != nil {
					h.OnStepLeave(ctx, e)
				}
			}
		},
		OnAnswer: func(ctx context.Context, e *domain.AnswerEvent) {
			for _, h := range hooks {
				if h.OnAnswer != nil {
					h.OnAnswer(ctx, e)
				}
			}
		},
		OnValidationFailed: func(ctx context.Context, e *domain.AnswerEvent) {
			for _, h := range hooks {
				if h.OnValidationFailed != nil {
					h.OnValidationFailed(ctx, e)
				}
			}
		},
		OnOutcome: func(ctx context.Context, e *domain.OutcomeEvent) {
			for _, h := range hooks {
				if h.OnOutcome != nil {
					h.OnOutcome(ctx, e)
				}
			}
		},
	}
}

// LoggingHooks logs every lifecycle event. Answer values are never logged.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	if logger == nil {
		logger = logging.NewNop()
	}
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step entered",
				logging.SessionID(e.SessionID),
				logging.FlowID(e.FlowID),
				logging.StepID(e.StepID),
				slog.String("kind", string(e.StepKind)),
			)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step left",
				logging.SessionID(e.SessionID),
				logging.FlowID(e.FlowID),
				logging.StepID(e.StepID),
			)
		},
		OnAnswer: func(ctx context.Context, e *domain.AnswerEvent) {
			logger.InfoContext(ctx, "answer committed",
				logging.SessionID(e.SessionID),
				logging.FlowID(e.FlowID),
				logging.StepID(e.StepID),
				slog.String("shortcode", e.Shortcode),
			)
		},
		OnValidationFailed: func(ctx context.Context, e *domain.AnswerEvent) {
			logger.InfoContext(ctx, "answer rejected",
				logging.SessionID(e.SessionID),
				logging.FlowID(e.FlowID),
				logging.StepID(e.StepID),
				slog.String("reason", e.Message),
			)
		},
		OnOutcome: func(ctx context.Context, e *domain.OutcomeEvent) {
			logger.InfoContext(ctx, "outcome reached",
				logging.SessionID(e.SessionID),
				logging.FlowID(e.FlowID),
				slog.String("outcome", e.OutcomeID),
				slog.String("outcome_kind", string(e.Kind)),
				slog.Int("answered", e.Answered),
			)
		},
	}
}
