/*
Package runner drives a questionnaire session from a terminal or any line
oriented stream.

It is the bridge between the session state machine and the outside world: each
turn it renders the current step as a Screen, reads one line through an
IOHandler, interprets commands (back, reset, help, quit) and submits everything
else as the answer, parsed according to the step kind.

# Key Components

  - Runner: the turn loop.
  - IOHandler: decouples how screens are shown and answers are read.
  - TextHandler: interactive CLI usage, optionally rendering markdown.
  - JSONHandler: JSON-lines for headless hosts.

# Usage

	r := runner.New(
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	if err := r.Run(ctx, session); err != nil {
		log.Fatal(err)
	}
*/
package runner
