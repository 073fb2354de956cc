// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Typed stores values of T as JSON under a key prefix.
type Typed[T any] struct {
	cache      Cache
	prefix     string
	defaultTTL time.Duration
}

// NewTyped creates a typed view over c. Keys passed to its methods are
// prefixed with prefix.
func NewTyped[T any](c Cache, prefix string, defaultTTL time.Duration) *Typed[T] {
	return &Typed[T]{cache: c, prefix: prefix, defaultTTL: defaultTTL}
}

// Get returns the stored value. A missing key yields ErrCacheMiss; an
// undecodable entry is deleted and reported as a miss.
func (t *Typed[T]) Get(ctx context.Context, key string) (*T, error) {
	data, err := t.cache.Get(ctx, t.prefix+key)
	if err != nil {
		return nil, err
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		_ = t.cache.Delete(ctx, t.prefix+key)
		return nil, ErrCacheMiss
	}
	return &value, nil
}

// Set stores value with the default TTL.
func (t *Typed[T]) Set(ctx context.Context, key string, value *T) error {
	return t.SetWithTTL(ctx, key, value, t.defaultTTL)
}

// SetWithTTL stores value with a custom TTL.
func (t *Typed[T]) SetWithTTL(ctx context.Context, key string, value *T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}
	return t.cache.Set(ctx, t.prefix+key, data, ttl)
}

// Delete removes key.
func (t *Typed[T]) Delete(ctx context.Context, key string) error {
	return t.cache.Delete(ctx, t.prefix+key)
}
