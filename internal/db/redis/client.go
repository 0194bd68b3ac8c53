// Package redis backs the embedding cache with Redis or Valkey through rueidis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/bioscope/internal/db"
)

var _ db.Store = (*Store)(nil)

const (
	defaultDialTimeout = 5 * time.Second
	readyPollMin       = 50 * time.Millisecond
	readyPollMax       = time.Second
)

// Config holds connection parameters for the cache.
type Config struct {
	Addrs       []string
	Username    string
	Password    string
	DB          int
	ClientName  string        // shown in CLIENT LIST
	DialTimeout time.Duration // 0 = 5s
}

// Store is a rueidis-backed key/value store.
type Store struct {
	client rueidis.Client
}

// NewStore connects to the cache. Client-side caching is disabled since
// embedding entries are written once and read rarely.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("cache addrs is required")
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   cfg.ClientName,
		Dialer:       net.Dialer{Timeout: dial},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect cache %v: %w", cfg.Addrs, err)
	}

	return &Store{client: client}, nil
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

// WaitForReady pings right away, then backs off from 50ms up to 1s between
// attempts until the store answers or timeout expires. The timeout error
// carries the last ping failure.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := readyPollMin
	for {
		lastErr := s.Ping(ctx)
		if lastErr == nil {
			return nil
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("cache not ready after %s: %w", timeout, errors.Join(ctx.Err(), lastErr))
		case <-t.C:
		}
		delay = min(delay*2, readyPollMax)
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}
