package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dylan-euc/client-side-quiz/internal/logging"
	"github.com/dylan-euc/client-side-quiz/internal/runtime"
)

// Commands understood by the runner on any step.
const (
	CommandBack  = "back"
	CommandReset = "reset"
	CommandHelp  = "help"
	CommandQuit  = "quit"
	CommandExit  = "exit"
)

// Runner handles the turn loop of a session using the provided IO.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	handler IOHandler
	logger  *slog.Logger
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithHandler configures the IOHandler. The default is a TextHandler on
// Stdin/Stdout.
func WithHandler(h IOHandler) Option {
	return func(r *Runner) {
		r.handler = h
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// Run drives s until it reaches an outcome, the input ends or the user quits.
// It returns nil in all three cases; errors come from the handler, from ctx,
// or from a failed answer collaborator.
func (r *Runner) Run(ctx context.Context, s *runtime.Session) error {
	for {
		screen := NewScreen(s)
		if err := r.handler.Output(ctx, screen); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
		if s.IsOutcome() {
			r.logger.Info("session finished", logging.SessionID(s.ID()), logging.StepID(s.CurrentStepID()))
			return nil
		}

		val, err := r.handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		done, err := r.turn(ctx, s, val)
		if err != nil || done {
			return err
		}
	}
}

// turn applies one line of input. It reports done when the user quits.
func (r *Runner) turn(ctx context.Context, s *runtime.Session, val any) (bool, error) {
	if text, ok := val.(string); ok {
		switch strings.ToLower(strings.TrimSpace(text)) {
		case CommandQuit, CommandExit:
			return true, nil
		case CommandBack:
			if !s.CanGoBack() {
				return false, r.handler.SystemOutput(ctx, "Already at the first question.")
			}
			s.GoBack()
			return false, nil
		case CommandReset:
			s.Reset()
			return false, r.handler.SystemOutput(ctx, "Starting over.")
		case CommandHelp:
			return false, r.handler.SystemOutput(ctx, Help(NewScreen(s)))
		}

		parsed, err := ParseInput(s.CurrentStep(), text)
		if err != nil {
			return false, r.handler.SystemOutput(ctx, err.Error())
		}
		val = parsed
	}

	if s.IsStopped() {
		return false, r.handler.SystemOutput(ctx, "This questionnaire cannot continue. Type back or quit.")
	}

	s.SetCurrentAnswer(val)
	if err := s.SubmitAnswer(ctx); err != nil {
		r.logger.Error("submit failed", logging.SessionID(s.ID()), logging.StepID(s.CurrentStepID()), logging.Err(err))
		return false, fmt.Errorf("submit failed: %w", err)
	}
	return false, nil
}

// Help describes the commands and, when present, the step's help text.
func Help(screen Screen) string {
	var b strings.Builder
	if screen.HelpText != nil {
		if screen.HelpText.Title != "" {
			fmt.Fprintf(&b, "%s\n", screen.HelpText.Title)
		}
		fmt.Fprintf(&b, "%s\n\n", screen.HelpText.Content)
	}
	b.WriteString("Commands: back (previous question), reset (start over), help, quit.")
	return b.String()
}
