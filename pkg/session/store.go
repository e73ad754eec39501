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

// Package session holds short-lived scan state: one TTL-bound session,
// result set, and exclusive lock per device kind.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/storegrid/fleetwatch/pkg/kv"
	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
)

const (
	lockPrefix    = "scan-lock/"
	sessionPrefix = "scan-session/"
	resultsPrefix = "scan-results/"

	// DefaultTTL bounds how long scan state survives after the last
	// update. The lock shares this TTL so a wedged scan cannot block its
	// kind forever.
	DefaultTTL = 600 * time.Second
)

// ErrScanInProgress is returned when a scan of the same kind already holds
// the lock.
var ErrScanInProgress = errors.New("a scan of this device kind is already running")

// Store persists scan sessions and results with TTL semantics.
type Store struct {
	kv     kv.Store
	ttl    time.Duration
	logger logger.Logger
}

// NewStore wraps a kv.Store. ttl of zero falls back to DefaultTTL.
func NewStore(store kv.Store, ttl time.Duration, log logger.Logger) *Store {
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return &Store{kv: store, ttl: ttl, logger: log}
}

// AcquireLock atomically claims the per-kind scan lock. The lock expires
// with the store TTL, which is the only recovery path for a wedged scan.
func (s *Store) AcquireLock(ctx context.Context, kind models.DeviceKind, sessionID string) error {
	err := s.kv.Create(ctx, lockPrefix+string(kind), []byte(sessionID), s.ttl)
	if errors.Is(err, kv.ErrKeyExists) {
		return ErrScanInProgress
	}

	if err != nil {
		return fmt.Errorf("failed to acquire scan lock for %s: %w", kind, err)
	}

	return nil
}

// ReleaseLock drops the per-kind scan lock.
func (s *Store) ReleaseLock(ctx context.Context, kind models.DeviceKind) error {
	if err := s.kv.Delete(ctx, lockPrefix+string(kind)); err != nil {
		return fmt.Errorf("failed to release scan lock for %s: %w", kind, err)
	}

	return nil
}

// PutSession writes the session snapshot, refreshing its TTL.
func (s *Store) PutSession(ctx context.Context, sess *models.ScanSession) error {
	sess.UpdatedAt = time.Now()

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.kv.Put(ctx, sessionPrefix+string(sess.Kind), data, s.ttl); err != nil {
		return fmt.Errorf("failed to store session for %s: %w", sess.Kind, err)
	}

	return nil
}

// GetSession returns the current session for kind, or an idle placeholder
// when none is stored.
func (s *Store) GetSession(ctx context.Context, kind models.DeviceKind) (*models.ScanSession, error) {
	data, found, err := s.kv.Get(ctx, sessionPrefix+string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to load session for %s: %w", kind, err)
	}

	if !found {
		return &models.ScanSession{Kind: kind, Status: models.ScanIdle}, nil
	}

	var sess models.ScanSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session for %s: %w", kind, err)
	}

	return &sess, nil
}

// PutResults stores the device list for kind.
func (s *Store) PutResults(ctx context.Context, kind models.DeviceKind, devices []models.DiscoveredDevice) error {
	data, err := json.Marshal(devices)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := s.kv.Put(ctx, resultsPrefix+string(kind), data, s.ttl); err != nil {
		return fmt.Errorf("failed to store results for %s: %w", kind, err)
	}

	return nil
}

// GetResults returns session progress plus the devices found so far.
func (s *Store) GetResults(ctx context.Context, kind models.DeviceKind) (*models.ScanResults, error) {
	sess, err := s.GetSession(ctx, kind)
	if err != nil {
		return nil, err
	}

	out := &models.ScanResults{Progress: *sess, Devices: []models.DiscoveredDevice{}}

	data, found, err := s.kv.Get(ctx, resultsPrefix+string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to load results for %s: %w", kind, err)
	}

	if !found {
		return out, nil
	}

	if err := json.Unmarshal(data, &out.Devices); err != nil {
		return nil, fmt.Errorf("failed to decode results for %s: %w", kind, err)
	}

	return out, nil
}
