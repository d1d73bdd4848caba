// Package session keeps the process-wide mapping from bearer tokens to
// authenticated Instagram clients. Entries live in memory for the life of
// the process and can be mirrored to a Store so they survive restarts.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"instabridge/internal/instagram"
)

var (
	// ErrInvalidToken is returned when no session is registered under a token
	ErrInvalidToken = errors.New("invalid token")
)

// Registry maps tokens to sessions.
type Registry interface {
	// Register inserts or overwrites the session for token. The in-memory
	// entry is always written; a non-nil error means only persistence failed.
	Register(ctx context.Context, token string, client instagram.Client) (*Session, error)
	// Resolve looks up the session for token.
	Resolve(ctx context.Context, token string) (*Session, error)
	// Len reports how many sessions are held in memory.
	Len() int
}

// Option configures a registry.
type Option func(*registry)

// WithStore mirrors sessions to store and uses restorer to rebuild clients
// for tokens that are not in memory.
func WithStore(store Store, restorer instagram.Authenticator, ttl time.Duration) Option {
	return func(r *registry) {
		r.store = store
		r.restorer = restorer
		r.ttl = ttl
	}
}

// WithLogger sets the logger used for persistence warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *registry) {
		r.logger = logger
	}
}

type registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store    Store
	restorer instagram.Authenticator
	ttl      time.Duration
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) Registry {
	r := &registry{
		sessions: make(map[string]*Session),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *registry) Register(ctx context.Context, token string, client instagram.Client) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	s := &Session{
		Token:     token,
		Client:    client,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.sessions[token] = s
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Save(ctx, token, client.Snapshot(), r.ttl); err != nil {
			return s, fmt.Errorf("persist session: %w", err)
		}
	}

	return s, nil
}

func (r *registry) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	r.mu.RLock()
	s, ok := r.sessions[token]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	if r.store == nil {
		return nil, ErrInvalidToken
	}
	return r.restore(ctx, token)
}

func (r *registry) restore(ctx context.Context, token string) (*Session, error) {
	snap, err := r.store.Load(ctx, token)
	if errors.Is(err, ErrNotStored) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	client, err := r.restorer.Restore(snap)
	if err != nil {
		r.logger.Warn("Discarding unrestorable session snapshot", "error", err)
		return nil, ErrInvalidToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A concurrent Register or restore may have won the race.
	if s, ok := r.sessions[token]; ok {
		return s, nil
	}
	s := &Session{
		Token:     token,
		Client:    client,
		CreatedAt: time.Now(),
	}
	r.sessions[token] = s

	r.logger.Info("Session restored from store", "account_id", client.AccountID())
	return s, nil
}

func (r *registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
