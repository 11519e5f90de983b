package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// DefaultPrompt is written before each line read by TextHandler.
const DefaultPrompt = "> "

// TextHandler renders screens as markdown and reads one answer per line.
type TextHandler struct {
	in     *bufio.Reader
	out    io.Writer
	render ContentRenderer
	prompt string

	lines    chan line
	readOnce sync.Once
}

type line struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer post-processes the markdown of each screen, e.g. with
// glamour. Output falls back to the raw markdown when rendering fails.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.render = renderer
	}
}

// WithPrompt replaces DefaultPrompt.
func WithPrompt(prompt string) TextHandlerOption {
	return func(h *TextHandler) {
		h.prompt = prompt
	}
}

// NewTextHandler creates a handler over r and w, defaulting to stdin and stdout.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{in: bufio.NewReader(r), out: w, prompt: DefaultPrompt}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// readLines feeds h.lines from a single goroutine so Input can return on ctx
// while a read is blocked. The channel is closed at end of input.
func (h *TextHandler) readLines() {
	h.lines = make(chan line)
	go func() {
		defer close(h.lines)
		for {
			text, err := h.in.ReadString('\n')
			if text != "" {
				h.lines <- line{text: text}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				h.lines <- line{err: err}
				return
			}
		}
	}()
}

func (h *TextHandler) Output(ctx context.Context, screen Screen) error {
	md := screen.Markdown()
	if h.render != nil {
		if out, err := h.render(md); err == nil {
			md = out
		}
	}
	_, err := fmt.Fprintln(h.out, strings.TrimSpace(md))
	return err
}

// Input returns the next sanitized line. Lines that fail sanitizing are
// reported and read again.
func (h *TextHandler) Input(ctx context.Context) (any, error) {
	h.readOnce.Do(h.readLines)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(h.out, h.prompt)

		var l line
		var ok bool
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case l, ok = <-h.lines:
		}
		if !ok {
			return "", io.EOF
		}
		if l.err != nil {
			return "", l.err
		}

		clean, err := SanitizeInput(strings.TrimSpace(l.text))
		if err != nil {
			fmt.Fprintf(h.out, "Error: %v. Please try again.\n", err)
			continue
		}
		return clean, nil
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.out, "\n[System] %s\n", msg)
	return err
}
