// Package cli wires configuration, storage, observability and the engine
// together for the quiz commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	quiz "github.com/dylan-euc/client-side-quiz"
	"github.com/dylan-euc/client-side-quiz/internal/config"
	"github.com/dylan-euc/client-side-quiz/internal/logging"
	"github.com/dylan-euc/client-side-quiz/pkg/adapters/file"
	"github.com/dylan-euc/client-side-quiz/pkg/adapters/memory"
	"github.com/dylan-euc/client-side-quiz/pkg/adapters/redis"
	"github.com/dylan-euc/client-side-quiz/pkg/adapters/sqlstore"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/persistence/middleware"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
)

// Storage is an opened session store with its optional distributed locker.
type Storage struct {
	Store  ports.SessionStore
	Locker ports.DistributedLocker
	close  func() error
}

// Close releases the store's connections.
func (s *Storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStorage opens the configured session store and wraps it with the
// security middleware. Only the redis driver provides a distributed locker.
func OpenStorage(ctx context.Context, cfg config.StoreConfig, sec config.SecurityConfig, logger *slog.Logger) (*Storage, error) {
	st := &Storage{}
	switch cfg.Driver {
	case config.StoreMemory, "":
		st.Store = memory.NewStore()
	case config.StoreFile:
		st.Store = file.NewStore(cfg.DSN)
	case config.StoreRedis:
		opts := []redis.Option{redis.WithPrefix(cfg.Prefix)}
		if cfg.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.TTL))
		}
		rs := redis.New(cfg.DSN, cfg.Password, cfg.DB, opts...)
		if err := rs.Client().Ping(ctx).Err(); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.DSN, err)
		}
		st.Store = rs
		st.Locker = redis.NewLocker(rs.Client(), cfg.Prefix)
		st.close = rs.Close
	case config.StoreSQLite, config.StorePostgres:
		dialect := sqlstore.SQLite
		if cfg.Driver == config.StorePostgres {
			dialect = sqlstore.Postgres
		}
		ss, err := sqlstore.Open(ctx, dialect, cfg.DSN)
		if err != nil {
			return nil, err
		}
		st.Store = ss
		st.close = ss.Close
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStoreDriver, cfg.Driver)
	}

	mws, err := securityMiddleware(sec)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	st.Store = middleware.Chain(st.Store, mws...)

	logger.Info("session store ready",
		slog.String("driver", cfg.Driver),
		slog.Bool("encrypted", sec.EncryptionKey != ""),
		slog.Int("pii_fields", len(sec.PIIFields)),
	)
	return st, nil
}

// securityMiddleware masks PII before encrypting, so masked values are never
// written even in encrypted form.
func securityMiddleware(sec config.SecurityConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(sec.PIIFields) > 0 {
		for _, p := range sec.PIIFields {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("invalid pii field pattern %q: %w", p, err)
			}
		}
		mws = append(mws, middleware.NewPIIMiddleware(sec.PIIFields))
	}
	if sec.EncryptionKey != "" {
		keys, err := sec.Keys()
		if err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    keys[0],
			FallbackKeys: keys[1:],
		}))
	}
	return mws, nil
}

// NewEngine loads the flows of cfg.FlowDir.
func NewEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, hooks domain.LifecycleHooks) (*quiz.Engine, error) {
	opts := []quiz.Option{
		quiz.WithLogger(logger),
		quiz.WithFlowDir(cfg.FlowDir),
		quiz.WithLifecycleHooks(hooks),
	}
	if cfg.Strict {
		opts = append(opts, quiz.WithStrict())
	}
	eng, err := quiz.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return eng, nil
}

// NewLogger builds the application logger from cfg.
func NewLogger(cfg *config.Config) *slog.Logger {
	return logging.NewWithWriter(stderr, logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)
}

// positionHooks record the current step of server-side sessions that are
// driven directly, outside session.Manager transitions.
func positionHooks(store ports.SessionStore, logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			if e.SessionID == "" {
				return
			}
			if err := store.SetCurrentStep(ctx, e.SessionID, e.StepID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
				logger.Warn("failed to record position", logging.SessionID(e.SessionID), logging.Err(err))
			}
		},
	}
}
