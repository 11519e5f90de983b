package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "quiz:"

// Store implements ports.SessionStore using Redis.
//
// Layout, relative to the prefix:
//
//	session:<id>  JSON session record
//	answers:<id>  list of JSON answer records, append order
//	sessions      sorted set of session ids scored by start time
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

var _ ports.SessionStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for sessions. Every write refreshes it.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) sessionKey(id string) string { return s.prefix + "session:" + id }
func (s *Store) answersKey(id string) string { return s.prefix + "answers:" + id }
func (s *Store) indexKey() string            { return s.prefix + "sessions" }

// CreateSession stores the record and indexes it.
func (s *Store) CreateSession(ctx context.Context, rec *domain.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(rec.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(rec.StartedAt.UnixMilli()),
		Member: rec.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (s *Store) loadRecord(ctx context.Context, c backend.Cmdable, id string) (*domain.SessionRecord, error) {
	val, err := c.Get(ctx, s.sessionKey(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &rec, nil
}

// GetSession returns the record and its answers ordered by creation time.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.SessionRecord, []domain.AnswerRecord, error) {
	rec, err := s.loadRecord(ctx, s.client, id)
	if err != nil {
		return nil, nil, err
	}

	raw, err := s.client.LRange(ctx, s.answersKey(id), 0, -1).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read answers: %w", err)
	}
	answers := make([]domain.AnswerRecord, 0, len(raw))
	for _, item := range raw {
		var a domain.AnswerRecord
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal answer: %w", err)
		}
		answers = append(answers, a)
	}
	slices.SortStableFunc(answers, func(a, b domain.AnswerRecord) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return rec, answers, nil
}

// update applies fn to the record inside an optimistic transaction.
// extra queues additional commands in the same transaction.
func (s *Store) update(ctx context.Context, id string, fn func(rec *domain.SessionRecord), extra func(pipe backend.Pipeliner)) error {
	key := s.sessionKey(id)
	txf := func(tx *backend.Tx) error {
		rec, err := s.loadRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		fn(rec)
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			if extra != nil {
				extra(pipe)
			}
			return nil
		})
		return err
	}

	for range 5 {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("session %s: too much contention", id)
}

// SaveAnswer appends the answer and moves the current step to it.
func (s *Store) SaveAnswer(ctx context.Context, answer domain.AnswerRecord) error {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}

	answersKey := s.answersKey(answer.SessionID)
	return s.update(ctx, answer.SessionID,
		func(rec *domain.SessionRecord) {
			rec.CurrentStep = answer.StepID
			rec.UpdatedAt = answer.CreatedAt
		},
		func(pipe backend.Pipeliner) {
			pipe.RPush(ctx, answersKey, data)
			if s.ttl > 0 {
				pipe.Expire(ctx, answersKey, s.ttl)
			}
		},
	)
}

// SetCurrentStep records the session position.
func (s *Store) SetCurrentStep(ctx context.Context, id, stepID string) error {
	return s.update(ctx, id, func(rec *domain.SessionRecord) {
		rec.CurrentStep = stepID
		rec.UpdatedAt = time.Now().UTC()
	}, nil)
}

// CompleteSession marks the session completed.
func (s *Store) CompleteSession(ctx context.Context, id, outcome string) error {
	return s.update(ctx, id, func(rec *domain.SessionRecord) {
		now := time.Now().UTC()
		rec.Status = domain.SessionCompleted
		rec.Outcome = outcome
		rec.CurrentStep = outcome
		rec.CompletedAt = &now
		rec.UpdatedAt = now
	}, nil)
}

// AbandonSession marks the session abandoned.
func (s *Store) AbandonSession(ctx context.Context, id string) error {
	return s.update(ctx, id, func(rec *domain.SessionRecord) {
		rec.Status = domain.SessionAbandoned
		rec.UpdatedAt = time.Now().UTC()
	}, nil)
}

// FindIncompleteSession returns the newest in-progress session of userID on flowID.
func (s *Store) FindIncompleteSession(ctx context.Context, flowID, userID string) (*domain.SessionRecord, error) {
	list, err := s.ListSessions(ctx, ports.SessionFilter{FlowID: flowID, UserID: userID, Status: domain.SessionInProgress})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return &list[0], nil
}

// ListSessions walks the index newest first. Ids whose record has expired
// are pruned from the index on the way.
func (s *Store) ListSessions(ctx context.Context, filter ports.SessionFilter) ([]domain.SessionRecord, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var (
		out   []domain.SessionRecord
		stale []any
	)
	for _, id := range ids {
		rec, err := s.loadRecord(ctx, s.client, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if filter.Match(rec) {
			out = append(out, *rec)
		}
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
		}
	}
	return out, nil
}

// DeleteSession removes the session, its answers and its index entry.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.sessionKey(id), s.answersKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
