/*
Package ports defines the driven ports (interfaces) of the flow engine.

These interfaces decouple the engine from external implementations, allowing it to
work with various flow sources, session stores and lock providers.

# Key Interfaces

  - FlowRegistry: Looks up validated flow definitions by id and version.
  - FlowLoader: Reads flow definitions from a source (files, memory).
  - SessionStore: Persists session records and the answers committed to them.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
  - AnswerFunc / CompleteFunc: The persistence collaborator a Session awaits.
*/
package ports
