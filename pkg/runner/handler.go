package runner

import "context"

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents the screen of the current step.
	Output(ctx context.Context, screen Screen) error

	// Input reads one response from the user. Text handlers return the raw
	// line as a string; structured handlers may return already typed values.
	Input(ctx context.Context) (any, error)

	// SystemOutput presents a meta-message to the user (e.g. input errors, help).
	// This is distinct from content rendering.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer is a function that transforms markdown before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)
