package ports

import "context"

// AnswerFunc is awaited by a session after an answer is committed locally.
// A returned error propagates to the caller of SubmitAnswer; the local commit stays.
type AnswerFunc func(ctx context.Context, stepID, shortcode string, value any) error

// CompleteFunc is awaited by a session before it enters an outcome.
type CompleteFunc func(ctx context.Context, outcomeID string) error
