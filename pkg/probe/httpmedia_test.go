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

package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
)

// mediaTarget points a PollTarget at a test server's host:port.
func mediaTarget(srv *httptest.Server) models.PollTarget {
	return models.PollTarget{
		DeviceID: "mp-1",
		Kind:     models.KindMediaPlayer,
		Address:  strings.TrimPrefix(srv.URL, "http://"),
		HTTP:     &models.HTTPCredentials{Username: "admin", Password: "secret"},
	}
}

func TestHTTPMediaPoll(t *testing.T) {
	ctx := context.Background()
	prober := NewHTTPMediaProber(logger.NewTestLogger())

	t.Run("healthy player is online with attributes", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "admin", user)
			assert.Equal(t, "secret", pass)

			assert.Equal(t, "/api/v1/player/status", r.URL.Path)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"name": "lobby-screen",
				"model": "MS-4200",
				"firmware": "2.1.0",
				"playback_state": "playing",
				"volume": 40,
				"now_playing": "promo-loop.mp4",
				"uptime_seconds": 3600
			}`))
		}))
		defer srv.Close()

		outcome, err := prober.Poll(ctx, mediaTarget(srv))
		require.NoError(t, err)

		assert.True(t, outcome.ProbedOnline)
		assert.False(t, outcome.ProbedError)
		assert.Equal(t, "lobby-screen", outcome.Hostname)
		assert.Equal(t, "MS-4200", outcome.Model)
		assert.Equal(t, "2.1.0", outcome.Firmware)
		assert.Equal(t, int64(3600), outcome.UptimeSeconds)
		assert.Equal(t, "playing", outcome.Attributes["playback_state"])
		assert.Equal(t, "40", outcome.Attributes["volume"])
	})

	t.Run("non-2xx response is an error probe", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		outcome, err := prober.Poll(ctx, mediaTarget(srv))
		require.NoError(t, err)

		assert.False(t, outcome.ProbedOnline)
		assert.True(t, outcome.ProbedError)
	})

	t.Run("transport failure is a clean offline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close() // nothing listening anymore

		outcome, err := prober.Poll(ctx, mediaTarget(srv))
		require.NoError(t, err)

		assert.False(t, outcome.ProbedOnline)
		assert.False(t, outcome.ProbedError)
	})

	t.Run("unparsable body still counts as online", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer srv.Close()

		outcome, err := prober.Poll(ctx, mediaTarget(srv))
		require.NoError(t, err)

		assert.True(t, outcome.ProbedOnline)
		assert.Empty(t, outcome.Model)
	})
}

func TestHTTPMediaControl(t *testing.T) {
	ctx := context.Background()
	prober := NewHTTPMediaProber(logger.NewTestLogger())

	t.Run("play posts a control action", func(t *testing.T) {
		var gotBody string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/player/control", r.URL.Path)

			buf := make([]byte, 256)
			n, _ := r.Body.Read(buf)
			gotBody = string(buf[:n])
		}))
		defer srv.Close()

		require.NoError(t, prober.Play(ctx, mediaTarget(srv), "promo-loop.mp4"))
		assert.Contains(t, gotBody, `"action":"play"`)
		assert.Contains(t, gotBody, "promo-loop.mp4")
	})

	t.Run("rejected command surfaces the status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))
		defer srv.Close()

		err := prober.Stop(ctx, mediaTarget(srv))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "409")
	})

	t.Run("volume range is validated locally", func(t *testing.T) {
		err := prober.SetVolume(ctx, models.PollTarget{Address: "127.0.0.1"}, 150)
		require.Error(t, err)
	})

	t.Run("content upload and delete", func(t *testing.T) {
		var methods []string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			methods = append(methods, r.Method+" "+r.URL.Path)
		}))
		defer srv.Close()

		target := mediaTarget(srv)

		require.NoError(t, prober.UploadContent(ctx, target, "promo.mp4", strings.NewReader("data")))
		require.NoError(t, prober.DeleteContent(ctx, target, "promo.mp4"))

		assert.Equal(t, []string{
			"PUT /api/v1/content/promo.mp4",
			"DELETE /api/v1/content/promo.mp4",
		}, methods)
	})
}

func TestHTTPMediaPortOperations(t *testing.T) {
	prober := NewHTTPMediaProber(logger.NewTestLogger())

	_, err := prober.PortTable(context.Background(), models.PollTarget{})
	assert.ErrorIs(t, err, ErrNotSupported)

	err = prober.SetPortConfig(context.Background(), models.PollTarget{}, models.PortConfigChange{})
	assert.ErrorIs(t, err, ErrNotSupported)
}
