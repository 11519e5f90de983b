/*
Package domain contains the core models of the questionnaire flow engine.

It defines the declarative graph a flow is made of (Steps, Outcomes and the conditional
edges between them), the persisted shapes of a session, and the errors the engine
reports. This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - Step: One question or screen of a flow (text, number, radio, checkbox, info, stop...).
  - Condition: A tagged boolean expression over the current or a referenced answer.
  - Next: Either a literal target or an ordered list of Branches (first match wins).
  - Outcome: A terminal classification addressed by an "outcome:" prefixed id.
  - FlowDefinition: A versioned set of steps and outcomes with an initial step.
  - SessionRecord / AnswerRecord: What a persistence collaborator stores per session.
*/
package domain
