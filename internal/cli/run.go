package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	quiz "github.com/dylan-euc/client-side-quiz"
	"github.com/dylan-euc/client-side-quiz/internal/logging"
	"github.com/dylan-euc/client-side-quiz/internal/presentation/tui"
	"github.com/dylan-euc/client-side-quiz/internal/runtime"
	"github.com/dylan-euc/client-side-quiz/pkg/adapters/file"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/observability"
	"github.com/dylan-euc/client-side-quiz/pkg/runner"
	"github.com/dylan-euc/client-side-quiz/pkg/session"
)

var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// ErrFlowRequired is returned when the directory holds several flows and none
// was named.
var ErrFlowRequired = errors.New("several flows available, choose one with --flow")

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	FlowDir string
	FlowID  string
	Version string
	Strict  bool
	JSON    bool
	Debug   bool

	// SessionID persists the session under StateDir so a later run resumes it.
	SessionID string
	StateDir  string
	// Fresh discards the persisted session before starting.
	Fresh bool

	In  io.Reader
	Out io.Writer
}

// RunSession drives one questionnaire on the terminal, or as JSON lines.
func RunSession(ctx context.Context, opts RunOptions) error {
	in, out := opts.In, opts.Out
	if in == nil {
		in = stdin
	}
	if out == nil {
		out = stdout
	}

	logger := logging.NewNop()
	if opts.Debug {
		logger = logging.NewWithWriter(stderr, slog.LevelDebug, false)
	}

	eng, err := quiz.New(ctx, engineOptions(opts, logger)...)
	if err != nil {
		return fmt.Errorf("error initializing engine: %w", err)
	}
	flowID, err := pickFlow(eng, opts.FlowID)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, eng, flowID, opts, logger)
	if err != nil {
		return fmt.Errorf("failed to init session: %w", err)
	}

	handler, interactive, err := newHandler(in, out, opts.JSON)
	if err != nil {
		return err
	}
	if interactive {
		tui.PrintBanner(out, quiz.Version)
	}

	r := runner.New(runner.WithHandler(handler), runner.WithLogger(logger))
	if err := r.Run(ctx, s); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("run interrupted", logging.StepID(s.CurrentStepID()))
			return nil
		}
		return err
	}
	return nil
}

func engineOptions(opts RunOptions, logger *slog.Logger) []quiz.Option {
	engineOpts := []quiz.Option{
		quiz.WithLogger(logger),
		quiz.WithFlowDir(opts.FlowDir),
	}
	if opts.Debug {
		engineOpts = append(engineOpts, quiz.WithLifecycleHooks(observability.LoggingHooks(logger)))
	}
	if opts.Strict {
		engineOpts = append(engineOpts, quiz.WithStrict())
	}
	return engineOpts
}

// pickFlow defaults to the only flow of the directory.
func pickFlow(eng *quiz.Engine, flowID string) (string, error) {
	if flowID != "" {
		return flowID, nil
	}
	all := eng.Registry().All()
	switch len(all) {
	case 0:
		return "", fmt.Errorf("%w: no flows found", domain.ErrFlowNotFound)
	case 1:
		return all[0].ID, nil
	}
	ids := make([]string, len(all))
	for i, f := range all {
		ids[i] = f.ID
	}
	slices.Sort(ids)
	return "", fmt.Errorf("%w: %s", ErrFlowRequired, strings.Join(ids, ", "))
}

// openSession starts an in-memory session, or loads or creates the persisted
// one named by opts.SessionID.
func openSession(ctx context.Context, eng *quiz.Engine, flowID string, opts RunOptions, logger *slog.Logger) (*runtime.Session, error) {
	if opts.SessionID == "" {
		return eng.StartWith(flowID, quiz.SessionOptions{Version: opts.Version})
	}

	store := file.NewStore(opts.StateDir)
	if opts.Fresh {
		if err := store.DeleteSession(ctx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
	}

	hooks := positionHooks(store, logger)
	if opts.Debug {
		hooks = observability.Compose(hooks, observability.LoggingHooks(logger))
	}
	mgr := session.NewManager(eng.Registry(), store,
		session.WithLogger(logger),
		session.WithHooks(hooks),
		session.WithIDGenerator(func() string { return opts.SessionID }),
	)

	s, err := mgr.Get(ctx, opts.SessionID)
	switch {
	case err == nil:
		logger.Info("session resumed", logging.SessionID(opts.SessionID), logging.StepID(s.CurrentStepID()))
		return s, nil
	case errors.Is(err, domain.ErrSessionNotFound):
		return mgr.Start(ctx, flowID, session.StartOptions{Version: opts.Version})
	default:
		return nil, err
	}
}

// newHandler picks JSON lines, or text rendered with glamour when out is a
// terminal. It reports whether the output is interactive.
func newHandler(in io.Reader, out io.Writer, jsonMode bool) (runner.IOHandler, bool, error) {
	if jsonMode {
		return runner.NewJSONHandler(in, out), false, nil
	}
	f, ok := out.(*os.File)
	if !ok || !tui.IsInteractive(f) {
		return runner.NewTextHandler(in, out), false, nil
	}
	render, err := tui.NewRenderer(tui.Width(f))
	if err != nil {
		return nil, false, fmt.Errorf("failed to init renderer: %w", err)
	}
	return runner.NewTextHandler(in, out, runner.WithTextHandlerRenderer(render)), true, nil
}
