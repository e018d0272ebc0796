package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

var ErrNotFound = errors.New("not found")

const defaultLockTimeout = 2 * time.Second

// Store wraps DB access.
type Store struct {
	Pool        *pgxpool.Pool
	lockTimeout time.Duration
}

type Option func(*Store)

// WithLockTimeout bounds how long a tap transaction waits for row locks.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func New(dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{Pool: pool, lockTimeout: defaultLockTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

// NewID returns a monotonic, lexically sortable row ID.
func NewID() string {
	return ulid.Make().String()
}
