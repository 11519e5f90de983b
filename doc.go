/*
Package quiz runs branching medical-intake questionnaires.

A questionnaire is a flow: a versioned graph of steps (questions, info screens
and stop screens) whose edges are plain targets or conditional branches, ending
in named outcomes such as eligible, ineligible or needs-review. Flows are
validated when they are loaded, so a running session never meets a dangling
target.

# Concept

The engine keeps the flow catalog; a Session walks one flow for one respondent.
A session owns its answers and navigation history. Persistence, analytics and
the user interface are collaborators plugged in around it: the session awaits
OnAnswer after each committed answer and OnComplete before it enters an
outcome.

# Usage

	eng, err := quiz.New(ctx, quiz.WithFlowDir("./flows"))
	if err != nil {
		log.Fatal(err)
	}

	s, err := eng.Start("weight-loss-onboarding")
	if err != nil {
		log.Fatal(err)
	}

	s.SetCurrentAnswer(34.0)
	if err := s.SubmitAnswer(ctx); err != nil {
		log.Fatal(err) // a collaborator failed; the session did not move
	}
	if msg := s.ValidationError(); msg != "" {
		fmt.Println(msg)
	}

A failed validation is not an error: the session stays on the step and
ValidationError describes the problem.

# Server-side sessions

The session package stores sessions through a ports.SessionStore (memory,
JSON files, Redis, SQLite or PostgreSQL) and serializes operations per session.
The http and mcp adapters expose it to browsers and AI agents, and cmd/quiz
wires everything behind a single binary.
*/
package quiz
