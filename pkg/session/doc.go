/*
Package session implements server-side session management and persistence orchestration.

A Manager rebuilds a state machine from a SessionStore for every operation,
wires its collaborators to the store (answers are saved as they are committed,
outcomes complete the session) and serializes access per session id, locally
and, with a DistributedLocker, across replicas.
*/
package session
