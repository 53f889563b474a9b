// Package redis backs the session store with Redis or Valkey through rueidis.
package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docfinder/internal/db"
)

var _ db.Store = (*Store)(nil)

const (
	clientName       = "docfinder"
	defaultDialTime  = 5 * time.Second
	firstRetryDelay  = 50 * time.Millisecond
	maxRetryInterval = time.Second
)

// Config holds connection parameters for a Redis or Valkey server.
type Config struct {
	Addrs       []string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Store is a db.Store over a rueidis client. Session values are small and
// written on every turn, so client-side caching stays off.
type Store struct {
	client rueidis.Client
}

// NewStore connects to the configured server.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = defaultDialTime
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   clientName,
		DisableCache: true,
		Dialer:       net.Dialer{Timeout: dial},
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpConnect, Err: err}
	}

	return &Store{client: client}, nil
}

// NewStoreForTest wraps an existing client, typically a rueidis mock.
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings right away, then retries with a doubling delay capped at
// one second until the server answers or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := firstRetryDelay
	for {
		err := s.Ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("session store not ready after %s: %w", timeout, err)
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryInterval)
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}
