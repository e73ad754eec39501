/*
 * Copyright 2025 Storegrid, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package kv provides TTL-bound key-value storage for scan sessions and
// resilience state. Each update touches exactly one key; there are no
// multi-key transactions.
package kv

import (
	"context"
	"time"
)

// Store is a TTL-bound key-value store.
type Store interface {
	// Get returns the value for key. found is false for missing or
	// expired keys.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put writes key unconditionally, refreshing its TTL.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Create writes key only if it does not exist. Returns ErrKeyExists
	// otherwise. This is the primitive behind scan locks.
	Create(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}
