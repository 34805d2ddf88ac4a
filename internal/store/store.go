// Package store defines the durable key-value record store consumed by
// the domain agents, with a sqlite-backed implementation for the device
// and an in-memory implementation for tests.
//
// Keys are domain-scoped strings (model.KeySymptomLogs etc.); values
// are opaque JSON blobs. Each call is atomic at single-key granularity
// only; there are no transactions, and writes are last-write-wins full
// value overwrites. The core assumes no concurrent external writers
// (single user, single device).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("store: key not found")

// Store is the record store contract.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
}

// GetJSON decodes the value at key into v. Returns false (and leaves v
// untouched) when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
