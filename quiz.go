package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dylan-euc/client-side-quiz/internal/logging"
	"github.com/dylan-euc/client-side-quiz/internal/runtime"
	"github.com/dylan-euc/client-side-quiz/internal/validator"
	"github.com/dylan-euc/client-side-quiz/pkg/adapters/file"
	"github.com/dylan-euc/client-side-quiz/pkg/adapters/memory"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
	"github.com/dylan-euc/client-side-quiz/pkg/registry"
)

// Version of the module, overridden at build time with -ldflags.
var Version = "0.3.0"

// Session is the client-side state machine for one respondent.
type Session = runtime.Session

// ErrNotWatchable is returned by Watch when the loader cannot report changes.
var ErrNotWatchable = errors.New("current loader does not support watching")

// Engine is the entry point of the library: it loads flows, keeps them in a
// versioned registry and starts sessions on them.
type Engine struct {
	loader   ports.FlowLoader
	registry *registry.Registry
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	strict   bool

	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithFlows serves the given definitions from memory.
func WithFlows(flows ...*domain.FlowDefinition) Option {
	return func(e *Engine) {
		e.loader = memory.NewLoader(flows...)
	}
}

// WithFlowDir loads every YAML or JSON flow under dir.
func WithFlowDir(dir string) Option {
	return func(e *Engine) {
		e.loader = file.NewLoader(dir, file.WithLoaderLogger(e.logger))
	}
}

// WithLoader injects a custom flow loader.
func WithLoader(l ports.FlowLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithLifecycleHooks registers observability hooks on every session.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
// Pass it before WithFlowDir so the loader shares it.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStrict rejects flows whose shortcodes or condition operands are not
// well formed, on top of the structural checks.
func WithStrict() Option {
	return func(e *Engine) {
		e.strict = true
	}
}

// New loads and validates the configured flows.
// Any structural error in any flow fails the whole load.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: logging.NewNop(),
		subs:   make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.loader == nil {
		return nil, errors.New("no flow source configured (use WithFlows, WithFlowDir or WithLoader)")
	}

	flows, err := e.loader.LoadFlows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load flows: %w", err)
	}
	var regOpts []registry.Option
	if e.strict {
		regOpts = append(regOpts, registry.WithValidation(validator.Strict()))
	}
	e.registry, err = registry.New(flows, regOpts...)
	if err != nil {
		return nil, err
	}
	e.logger.Info("flows loaded", slog.Int("count", len(flows)))
	return e, nil
}

// Registry returns the versioned flow registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Hooks returns the lifecycle hooks given to sessions.
func (e *Engine) Hooks() domain.LifecycleHooks {
	return e.hooks
}

// Loader returns the flow source.
func (e *Engine) Loader() ports.FlowLoader {
	return e.loader
}

// SessionOptions configure a session started by the engine.
type SessionOptions struct {
	// Version pins a flow version. Empty means the current one.
	Version string
	// ID tags the session in logs and snapshots.
	ID string
	// Answers and History resume a previous session. A history whose steps are
	// not all in the flow is ignored.
	Answers map[string]any
	History []string
	// OnAnswer is awaited after every committed answer.
	OnAnswer ports.AnswerFunc
	// OnComplete is awaited before the session enters an outcome.
	OnComplete ports.CompleteFunc
}

// Start binds a new session to the current version of a flow.
func (e *Engine) Start(flowID string) (*Session, error) {
	return e.StartWith(flowID, SessionOptions{})
}

// StartWith binds a session to a flow with explicit options.
func (e *Engine) StartWith(flowID string, opts SessionOptions) (*Session, error) {
	flow, err := e.Flow(flowID, opts.Version)
	if err != nil {
		return nil, err
	}

	sessionOpts := []runtime.SessionOption{
		runtime.WithSessionID(opts.ID),
		runtime.WithAnswers(opts.Answers),
		runtime.WithHooks(e.hooks),
		runtime.WithLogger(e.logger),
	}
	if validHistory(flow, opts.History) {
		sessionOpts = append(sessionOpts, runtime.WithHistory(opts.History))
	}
	if opts.OnAnswer != nil {
		sessionOpts = append(sessionOpts, runtime.WithOnAnswer(opts.OnAnswer))
	}
	if opts.OnComplete != nil {
		sessionOpts = append(sessionOpts, runtime.WithOnComplete(opts.OnComplete))
	}
	return runtime.NewSession(flow, sessionOpts...), nil
}

// Resume restores a session from a snapshot taken with Session.Snapshot.
func (e *Engine) Resume(snap *domain.Snapshot, opts SessionOptions) (*Session, error) {
	opts.Version = snap.FlowVersion
	opts.ID = snap.SessionID
	opts.Answers = snap.Answers
	opts.History = snap.History
	return e.StartWith(snap.FlowID, opts)
}

func validHistory(flow *domain.FlowDefinition, history []string) bool {
	if len(history) == 0 {
		return false
	}
	for _, id := range history {
		if !flow.HasStep(id) && !domain.IsOutcomeID(id) {
			return false
		}
	}
	return true
}

// Flow returns a flow version, or the current one when version is empty.
func (e *Engine) Flow(id, version string) (*domain.FlowDefinition, error) {
	if version == "" {
		if f, ok := e.registry.GetFlow(id); ok {
			return f, nil
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
	}
	if f, ok := e.registry.GetFlowByVersion(id, version); ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s@%s", domain.ErrFlowNotFound, id, version)
}

// Reload reads the flows again and swaps them in. On error the previous set
// stays active. Subscribers are notified after a successful swap.
func (e *Engine) Reload(ctx context.Context) (int, error) {
	flows, err := e.loader.LoadFlows(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load flows: %w", err)
	}
	if err := e.registry.Replace(flows...); err != nil {
		return 0, err
	}
	e.notify()
	return len(flows), nil
}

// Watch reloads the flows whenever the loader reports a change, until ctx is
// done. onReload, if not nil, receives the result of every reload.
func (e *Engine) Watch(ctx context.Context, onReload func(loaded int, err error)) error {
	w, ok := e.loader.(ports.Watchable)
	if !ok {
		return ErrNotWatchable
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for range changes {
			n, err := e.Reload(ctx)
			if err != nil {
				e.logger.Error("flow reload failed, keeping previous flows", logging.Err(err))
			} else {
				e.logger.Info("flows reloaded", slog.Int("count", n))
			}
			if onReload != nil {
				onReload(n, err)
			}
		}
	}()
	return nil
}

// Subscribe returns a channel signaled after every successful reload.
// It is closed when ctx is done.
func (e *Engine) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		delete(e.subs, ch)
		close(ch)
		e.mu.Unlock()
	}()
	return ch, nil
}

func (e *Engine) notify() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Validate runs the structural checks on a flow. The error is a
// *domain.GraphError for the first structural violation found.
func Validate(flow *domain.FlowDefinition) error {
	return validator.ValidateFlow(flow)
}

// Evaluate reports whether cond holds for the current value and the answers
// committed so far.
func Evaluate(cond domain.Condition, current any, answers map[string]any) bool {
	return runtime.Evaluate(cond, current, answers)
}

// ResolveNext picks the target of next for the current value. An empty target
// means the session stays where it is.
func ResolveNext(next domain.Next, current any, answers map[string]any) (string, error) {
	return runtime.ResolveNext(next, current, answers)
}
