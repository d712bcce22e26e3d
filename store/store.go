// Package store is the application's key-value persistence contract. Values
// are JSON encoded. Failures are logged and never returned: a failed load
// yields the default and a failed save is dropped.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Thiht/transactor"
	"github.com/charmbracelet/log"

	"github.com/benjamonnguyen/focusforge-go"
)

const defaultTimeout = 5 * time.Second

type Store struct {
	repo    focusforge.KVRepo
	tx      transactor.Transactor
	l       log.Logger
	timeout time.Duration
}

func New(repo focusforge.KVRepo, tx transactor.Transactor, l log.Logger) *Store {
	return &Store{
		repo:    repo,
		tx:      tx,
		l:       l,
		timeout: defaultTimeout,
	}
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Load returns the value stored at key, or def if it is missing or unreadable.
func Load[T any](s *Store, key string, def T) T {
	ctx, cancel := s.ctx()
	defer cancel()

	v, _ := load(ctx, s, key, def)
	return v
}

// Save stores v at key.
func Save[T any](s *Store, key string, v T) {
	ctx, cancel := s.ctx()
	defer cancel()

	_ = save(ctx, s, key, v)
}

// Update applies fn to the current value at key inside a transaction and
// returns the new value. The new value is returned even if persisting it failed.
func Update[T any](s *Store, key string, def T, fn func(T) T) T {
	ctx, cancel := s.ctx()
	defer cancel()

	var next T
	computed := false
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		cur, err := load(ctx, s, key, def)
		if err != nil {
			return err
		}
		next = fn(cur)
		computed = true
		return save(ctx, s, key, next)
	})
	if err != nil {
		s.l.Warn("failed to update value", "key", key, "err", err)
		if !computed {
			next = fn(def)
		}
	}
	return next
}

// load only returns errors from the repo; a corrupt value is logged and
// treated as missing.
func load[T any](ctx context.Context, s *Store, key string, def T) (T, error) {
	data, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, focusforge.ErrNotFound) {
			return def, nil
		}
		s.l.Warn("failed to load value", "key", key, "err", err)
		return def, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.l.Warn("failed to decode value", "key", key, "err", err)
		return def, nil
	}
	return v, nil
}

func save[T any](ctx context.Context, s *Store, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		s.l.Warn("failed to encode value", "key", key, "err", err)
		return err
	}
	if err := s.repo.Put(ctx, key, data); err != nil {
		s.l.Warn("failed to save value", "key", key, "err", err)
		return err
	}
	return nil
}
