package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/docfinder/internal/db"
	"github.com/kailas-cloud/docfinder/internal/domain"
	domsession "github.com/kailas-cloud/docfinder/internal/domain/session"
)

// store is the consumer interface for session state (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Repo stores sessions as JSON documents with a sliding TTL.
type Repo struct {
	store  store
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// New creates a session repository.
func New(s store, prefix string, ttl time.Duration) *Repo {
	return &Repo{store: s, prefix: prefix, ttl: ttl, now: time.Now}
}

// Load returns the stored session or a fresh idle one when none exists.
func (r *Repo) Load(ctx context.Context, id string) (*domsession.Session, error) {
	data, err := r.store.Get(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domsession.New(id), nil
		}
		return nil, fmt.Errorf("%w: load session %s: %w", domain.ErrStorage, id, err)
	}

	var s domsession.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: decode session %s: %w", domain.ErrStorage, id, err)
	}
	s.ID = id
	return &s, nil
}

// Save writes the session and refreshes its TTL.
func (r *Repo) Save(ctx context.Context, s *domsession.Session) error {
	s.UpdatedAt = r.now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	if err := r.store.SetWithTTL(ctx, r.key(s.ID), data, r.ttl); err != nil {
		return fmt.Errorf("%w: save session %s: %w", domain.ErrStorage, s.ID, err)
	}
	return nil
}

// Delete drops the session.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("%w: delete session %s: %w", domain.ErrStorage, id, err)
	}
	return nil
}

// Ping checks the backing store.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	return nil
}

func (r *Repo) key(id string) string {
	return r.prefix + id
}
