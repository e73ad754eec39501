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

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storegrid/fleetwatch/pkg/kv"
	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	mem := kv.NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })

	return NewStore(mem, time.Minute, logger.NewTestLogger())
}

func TestScanLock(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("first acquire wins", func(t *testing.T) {
		require.NoError(t, store.AcquireLock(ctx, models.KindPrinter, "sess-1"))
	})

	t.Run("second acquire of the same kind conflicts", func(t *testing.T) {
		err := store.AcquireLock(ctx, models.KindPrinter, "sess-2")
		require.ErrorIs(t, err, ErrScanInProgress)
	})

	t.Run("locks are per kind", func(t *testing.T) {
		require.NoError(t, store.AcquireLock(ctx, models.KindSwitch, "sess-3"))
	})

	t.Run("release frees the kind", func(t *testing.T) {
		require.NoError(t, store.ReleaseLock(ctx, models.KindPrinter))
		require.NoError(t, store.AcquireLock(ctx, models.KindPrinter, "sess-4"))
	})
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("missing session reads as idle", func(t *testing.T) {
		sess, err := store.GetSession(ctx, models.KindPrinter)
		require.NoError(t, err)

		assert.Equal(t, models.ScanIdle, sess.Status)
		assert.Equal(t, models.KindPrinter, sess.Kind)
	})

	t.Run("put stamps the update time", func(t *testing.T) {
		in := &models.ScanSession{
			ID:     "sess-1",
			Kind:   models.KindPrinter,
			Status: models.ScanRunning,
			Total:  42,
		}

		require.NoError(t, store.PutSession(ctx, in))

		out, err := store.GetSession(ctx, models.KindPrinter)
		require.NoError(t, err)

		assert.Equal(t, "sess-1", out.ID)
		assert.Equal(t, models.ScanRunning, out.Status)
		assert.Equal(t, 42, out.Total)
		assert.False(t, out.UpdatedAt.IsZero())
	})
}

func TestResultsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("missing results yield an empty device list", func(t *testing.T) {
		results, err := store.GetResults(ctx, models.KindSwitch)
		require.NoError(t, err)

		assert.Empty(t, results.Devices)
		assert.Equal(t, models.ScanIdle, results.Progress.Status)
	})

	t.Run("results carry session progress", func(t *testing.T) {
		sess := &models.ScanSession{ID: "sess-9", Kind: models.KindSwitch, Status: models.ScanDone, Found: 1}
		require.NoError(t, store.PutSession(ctx, sess))

		devices := []models.DiscoveredDevice{{IP: "10.0.0.2", Kind: models.KindSwitch}}
		require.NoError(t, store.PutResults(ctx, models.KindSwitch, devices))

		results, err := store.GetResults(ctx, models.KindSwitch)
		require.NoError(t, err)

		require.Len(t, results.Devices, 1)
		assert.Equal(t, "10.0.0.2", results.Devices[0].IP)
		assert.Equal(t, models.ScanDone, results.Progress.Status)
	})
}
