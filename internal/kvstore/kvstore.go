// Package kvstore is the durable key-value layer underneath the reactive
// caches: namespaced string keys, JSON-serialized values, disk-backed in
// production and in-memory in tests. It is the single source of truth for
// "last known good" state across process restarts.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
)

// Documented keys. One per reactive cache instance plus the sync manager
// metadata and the last-known wellness rows.
const (
	KeyTodos    = "todos"
	KeyCalendar = "calendar"
	KeyExpenses = "expenses"
	KeyBudgets  = "budgets"
	KeySettings = "settings"
	KeySyncMeta = "sync.meta"
	KeyWellness = "wellness"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the durable get/set/remove contract.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// GetJSON reads and unmarshals the value at key into out. On a missing key,
// read failure, or parse failure it leaves out set to fallback and returns
// nil: storage trouble must never surface as an error to callers.
func GetJSON[T any](ctx context.Context, s Store, key string, fallback T, out *T) error {
	*out = fallback
	raw, err := s.Get(ctx, key)
	if err != nil {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	*out = v
	return nil
}

// SetJSON marshals value and writes it at key.
func SetJSON[T any](ctx context.Context, s Store, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw)
}
