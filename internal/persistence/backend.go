package persistence

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Backend when no value is stored under the key.
var ErrNotFound = errors.New("snapshot not found")

// Backend is a durable key-value slot. Put replaces the whole value in one step.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
