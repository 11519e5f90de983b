package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/dylan-euc/client-side-quiz/internal/logging"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
)

// Session drives one user through a validated flow.
//
// A Session is not safe for concurrent use: callers serialize SetCurrentAnswer,
// SubmitAnswer, GoBack and Reset (pkg/session does this for server-side sessions).
// SubmitAnswer is the only operation that calls out to collaborators.
type Session struct {
	flow      *domain.FlowDefinition
	id        string
	startStep string

	currentStepID   string
	answers         map[string]any
	history         []string
	currentAnswer   any
	validationError string
	submitting      bool

	onAnswer   ports.AnswerFunc
	onComplete ports.CompleteFunc
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithAnswers seeds the session with previously committed answers (resume).
func WithAnswers(answers map[string]any) SessionOption {
	return func(s *Session) {
		s.answers = maps.Clone(answers)
	}
}

// WithCurrentStep starts the session at a previously saved position (resume).
func WithCurrentStep(stepID string) SessionOption {
	return func(s *Session) {
		s.startStep = stepID
	}
}

// WithHistory restores the navigation history of a resumed session. The last
// entry becomes the current position and the first one the start step.
func WithHistory(history []string) SessionOption {
	return func(s *Session) {
		if len(history) > 0 {
			s.history = append([]string(nil), history...)
		}
	}
}

// WithOnAnswer registers the collaborator awaited after each committed answer.
func WithOnAnswer(fn ports.AnswerFunc) SessionOption {
	return func(s *Session) {
		s.onAnswer = fn
	}
}

// WithOnComplete registers the collaborator awaited before an outcome is entered.
func WithOnComplete(fn ports.CompleteFunc) SessionOption {
	return func(s *Session) {
		s.onComplete = fn
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) SessionOption {
	return func(s *Session) {
		s.hooks = hooks
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionID labels the session in snapshots, events and logs.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// NewSession binds a state machine to flow. The flow must already be validated.
func NewSession(flow *domain.FlowDefinition, opts ...SessionOption) *Session {
	s := &Session{
		flow:    flow,
		answers: map[string]any{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.answers == nil {
		s.answers = map[string]any{}
	}
	if len(s.history) > 0 {
		s.startStep = s.history[0]
	} else {
		if s.startStep == "" {
			s.startStep = flow.InitialStep
		}
		s.history = []string{s.startStep}
	}

	s.logger = s.logger.With(logging.FlowID(flow.ID), slog.String("flow_version", flow.Version))
	if s.id != "" {
		s.logger = s.logger.With(logging.SessionID(s.id))
	}

	s.currentStepID = s.history[len(s.history)-1]
	s.currentAnswer = s.answers[s.currentStepID]
	return s
}

// ID returns the session id, empty for anonymous sessions.
func (s *Session) ID() string { return s.id }

// Flow returns the flow the session is bound to.
func (s *Session) Flow() *domain.FlowDefinition { return s.flow }

// CurrentStepID returns the current position: a step id, an outcome id, or "".
func (s *Session) CurrentStepID() string { return s.currentStepID }

// CurrentStep returns the current step, or nil at an outcome.
func (s *Session) CurrentStep() *domain.Step {
	if s.IsOutcome() {
		return nil
	}
	return s.flow.Step(s.currentStepID)
}

// CurrentAnswer returns the in-flight value of the current step.
func (s *Session) CurrentAnswer() any { return s.currentAnswer }

// Answers returns a copy of the committed answers.
func (s *Session) Answers() map[string]any { return maps.Clone(s.answers) }

// History returns a copy of the navigation history.
func (s *Session) History() []string {
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// IsOutcome reports whether the session reached an outcome.
func (s *Session) IsOutcome() bool { return domain.IsOutcomeID(s.currentStepID) }

// Outcome returns the outcome reached, or nil.
func (s *Session) Outcome() *domain.Outcome {
	if !s.IsOutcome() {
		return nil
	}
	o, ok := s.flow.Outcome(s.currentStepID)
	if !ok {
		return nil
	}
	return &o
}

// ValidationError returns the message of the last failed validation, or "".
func (s *Session) ValidationError() string { return s.validationError }

// IsSubmitting reports whether a submission is awaiting its collaborators.
func (s *Session) IsSubmitting() bool { return s.submitting }

// CanGoBack reports whether GoBack would change the position.
func (s *Session) CanGoBack() bool { return len(s.history) > 1 && !s.IsOutcome() }

// IsStopped reports whether the session sits on a stop step.
func (s *Session) IsStopped() bool {
	step := s.CurrentStep()
	return step != nil && step.Kind == domain.KindStop
}

// SetCurrentAnswer updates the in-flight value. Committed answers are untouched.
func (s *Session) SetCurrentAnswer(value any) {
	s.currentAnswer = value
}

// SubmitAnswer validates and commits the in-flight value and moves to the next step.
//
// Informational steps skip validation and commit nothing. A failed validation is
// recorded in ValidationError and leaves the position, history and answers as they
// were. The answer is committed before onAnswer is awaited and is kept if the
// collaborator fails; its error is returned and the position does not move.
// At an outcome, or on a step whose next target is empty, SubmitAnswer does nothing.
func (s *Session) SubmitAnswer(ctx context.Context) error {
	if s.submitting {
		return domain.ErrSubmissionInFlight
	}
	if s.IsOutcome() {
		return nil
	}
	step := s.flow.Step(s.currentStepID)
	if step == nil {
		return fmt.Errorf("%w: %q", domain.ErrStepNotFound, s.currentStepID)
	}
	if step.Kind == domain.KindStop {
		return nil
	}

	if step.Kind == domain.KindInfo {
		next, err := s.resolve(step, nil)
		if err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		if domain.IsOutcomeID(next) && s.onComplete != nil {
			s.submitting = true
			defer func() { s.submitting = false }()
		}
		if err := s.complete(ctx, next); err != nil {
			return err
		}
		s.advance(ctx, step, next)
		return nil
	}

	if res := ValidateAnswer(s.currentAnswer, step); !res.Valid {
		s.validationError = res.Message
		s.logger.Debug("answer rejected", logging.StepID(step.ID), slog.String("reason", res.Message))
		if s.hooks.OnValidationFailed != nil {
			s.hooks.OnValidationFailed(ctx, &domain.AnswerEvent{
				EventBase: s.event(domain.EventValidationFailed),
				StepID:    step.ID,
				Shortcode: step.Shortcode,
				Message:   res.Message,
			})
		}
		return nil
	}
	s.validationError = ""

	s.submitting = true
	defer func() { s.submitting = false }()

	value := s.currentAnswer
	s.answers[step.ID] = value
	if s.hooks.OnAnswer != nil {
		s.hooks.OnAnswer(ctx, &domain.AnswerEvent{
			EventBase: s.event(domain.EventAnswer),
			StepID:    step.ID,
			Shortcode: step.Shortcode,
			Value:     value,
		})
	}

	if s.onAnswer != nil {
		if err := s.onAnswer(ctx, step.ID, step.Shortcode, value); err != nil {
			s.logger.Warn("answer collaborator failed", logging.StepID(step.ID), logging.Err(err))
			return fmt.Errorf("persist answer for step %q: %w", step.ID, err)
		}
	}

	next, err := s.resolve(step, value)
	if err != nil {
		return err
	}
	if next == "" {
		return nil
	}
	if err := s.complete(ctx, next); err != nil {
		return err
	}
	s.advance(ctx, step, next)
	return nil
}

func (s *Session) resolve(step *domain.Step, value any) (string, error) {
	next, err := ResolveNext(step.Next, value, s.answers)
	if err != nil {
		if rerr, ok := err.(*domain.ResolutionError); ok {
			rerr.StepID = step.ID
		}
		s.logger.Error("cannot resolve next step", logging.StepID(step.ID), logging.Err(err))
		return "", err
	}
	return next, nil
}

// complete awaits onComplete when target is an outcome.
func (s *Session) complete(ctx context.Context, target string) error {
	if !domain.IsOutcomeID(target) || s.onComplete == nil {
		return nil
	}
	if err := s.onComplete(ctx, target); err != nil {
		s.logger.Warn("completion collaborator failed", slog.String("outcome", target), logging.Err(err))
		return fmt.Errorf("complete with %q: %w", target, err)
	}
	return nil
}

func (s *Session) advance(ctx context.Context, from *domain.Step, target string) {
	s.emitStep(ctx, domain.EventStepLeave, from.ID)

	s.history = append(s.history, target)
	s.currentStepID = target
	s.currentAnswer = s.answers[target]
	s.validationError = ""

	if domain.IsOutcomeID(target) {
		s.logger.Info("outcome reached", slog.String("outcome", target), slog.Int("answered", len(s.answers)))
		if s.hooks.OnOutcome != nil {
			ev := &domain.OutcomeEvent{
				EventBase: s.event(domain.EventOutcome),
				OutcomeID: target,
				Answered:  len(s.answers),
			}
			if o, ok := s.flow.Outcome(target); ok {
				ev.Kind = o.Kind
			}
			s.hooks.OnOutcome(ctx, ev)
		}
		return
	}
	s.logger.Debug("step entered", logging.StepID(target))
	s.emitStep(ctx, domain.EventStepEnter, target)
}

// GoBack returns to the previous entry of the history and restores its committed answer.
// It does nothing on the first entry or at an outcome.
func (s *Session) GoBack() {
	if !s.CanGoBack() {
		return
	}
	leaving := s.currentStepID
	s.history = s.history[:len(s.history)-1]
	s.currentStepID = s.history[len(s.history)-1]
	s.currentAnswer = s.answers[s.currentStepID]
	s.validationError = ""

	ctx := context.Background()
	s.emitStep(ctx, domain.EventStepLeave, leaving)
	s.emitStep(ctx, domain.EventStepEnter, s.currentStepID)
}

// Reset clears every answer and returns to the start step.
func (s *Session) Reset() {
	s.answers = map[string]any{}
	s.history = []string{s.startStep}
	s.currentStepID = s.startStep
	s.currentAnswer = nil
	s.validationError = ""
	s.submitting = false

	s.logger.Debug("session reset")
	s.emitStep(context.Background(), domain.EventStepEnter, s.startStep)
}

// Progress summarizes how much of the flow has been answered.
type Progress struct {
	Current    int `json:"current"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Progress is derived from the distinct committed answers over the non-info steps.
func (s *Session) Progress() Progress {
	p := Progress{Current: len(s.answers), Total: s.flow.InputStepCount()}
	if p.Total > 0 {
		p.Percentage = int(math.Round(float64(p.Current) / float64(p.Total) * 100))
	}
	p.Percentage = min(max(p.Percentage, 0), 100)
	return p
}

// Snapshot captures the observable state of the session.
func (s *Session) Snapshot() *domain.Snapshot {
	snap := &domain.Snapshot{
		SessionID:     s.id,
		FlowID:        s.flow.ID,
		FlowVersion:   s.flow.Version,
		CurrentStepID: s.currentStepID,
		CurrentAnswer: s.currentAnswer,
		Answers:       s.Answers(),
		History:       s.History(),
		Progress:      s.Progress().Percentage,
		Validation:    s.validationError,
	}
	if s.IsOutcome() {
		snap.Outcome = s.currentStepID
	}
	return snap
}

func (s *Session) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      t,
		SessionID: s.id,
		FlowID:    s.flow.ID,
	}
}

func (s *Session) emitStep(ctx context.Context, t domain.EventType, stepID string) {
	hook := s.hooks.OnStepEnter
	if t == domain.EventStepLeave {
		hook = s.hooks.OnStepLeave
	}
	if hook == nil {
		return
	}
	ev := &domain.StepEvent{EventBase: s.event(t), StepID: stepID}
	if step := s.flow.Step(stepID); step != nil {
		ev.StepKind = step.Kind
	}
	hook(ctx, ev)
}
