// Package storage is the local draft persistence collaborator: a small
// asynchronous key-value surface over SQLite. Callers treat every operation
// as fallible and best-effort; failures are logged upstream, never surfaced.
package storage

import (
	"context"
	"errors"

	"sidequest/internal/repo"
)

// ErrNotFound reports an absent key.
var ErrNotFound = errors.New("storage: key not found")

// KV is the narrow persistence interface the wizard consumes.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// SQLite backs KV with the workspace database's kv table.
type SQLite struct {
	Repo repo.Repo
}

func (s SQLite) Get(ctx context.Context, key string) (string, error) {
	value, err := s.Repo.GetKV(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrNotFound
	}
	return value, err
}

func (s SQLite) Set(ctx context.Context, key, value string) error {
	return s.Repo.SetKV(ctx, key, value)
}

func (s SQLite) Remove(ctx context.Context, key string) error {
	return s.Repo.DeleteKV(ctx, key)
}
