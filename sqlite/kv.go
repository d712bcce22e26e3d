// Package sqlite implements repo interfaces
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	txStdLib "github.com/Thiht/transactor/stdlib"
	"github.com/charmbracelet/log"

	"github.com/benjamonnguyen/focusforge-go"
)

const (
	SelectValue = "SELECT value FROM kv WHERE key = ?"
	UpsertValue = "INSERT INTO kv (key, value, created_at, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at"
	DeleteValue = "DELETE FROM kv WHERE key = ?"
)

type kvEntity struct {
	Key       string
	Value     []byte
	CreatedAt int64
	UpdatedAt int64
}

type kvRepo struct {
	dbGetter txStdLib.DBGetter
	l        log.Logger
}

var _ focusforge.KVRepo = (*kvRepo)(nil)

func NewKVRepo(dbGetter txStdLib.DBGetter, logger log.Logger) *kvRepo {
	return &kvRepo{
		dbGetter: dbGetter,
		l:        logger,
	}
}

func (r *kvRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("provide key")
	}

	var value []byte
	row := r.dbGetter(ctx).QueryRowContext(ctx, SelectValue, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, focusforge.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (r *kvRepo) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("provide key")
	}

	now := time.Now().UnixMilli()
	e := kvEntity{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	args := []any{e.Key, e.Value, e.CreatedAt, e.UpdatedAt}
	r.l.Debug("putting value", "query", UpsertValue, "key", key, "bytes", len(value))
	_, err := r.dbGetter(ctx).ExecContext(ctx, UpsertValue, args...)
	return err
}

func (r *kvRepo) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("provide key")
	}

	r.l.Debug("deleting value", "query", DeleteValue, "key", key)
	res, err := r.dbGetter(ctx).ExecContext(ctx, DeleteValue, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return focusforge.ErrNotFound
	}
	return nil
}
