// Package localstore keeps the shopper's client-side state: the persisted cart
// plus the cached user and token. Values are opaque bytes keyed by name.
package localstore

import (
	"context"
	"errors"
)

const (
	KeyCartItems = "cartItems"
	KeyUser      = "user"
	KeyToken     = "token"
)

var ErrNotFound = errors.New("localstore: key not found")

// Store is last-writer-wins: every Set replaces the whole value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
