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

package identify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/storegrid/fleetwatch/pkg/models"
)

const maxFingerprintBody = 64 * 1024

// Media player fingerprinting fetches a small page set. A host is accepted
// only on positive evidence: a characteristic URL answering, a status
// document carrying every required tag, or a now-playing marker. A bare
// 200 on / is not enough.
var (
	// Paths that only the media player firmware serves.
	characteristicPaths = []string{"/api/v1/player/status", "/mediaplayer/info"}

	// Every one of these tags must appear in a status document.
	requiredStatusTags = []string{"playback_state", "volume", "firmware"}

	nowPlayingMarkers = []string{"now playing", "now_playing"}

	statusPaths = []string{"/status", "/api/status", "/"}
)

func (i *Identifier) fingerprintMediaPlayer(ctx context.Context, device models.DiscoveredDevice) (models.DiscoveredDevice, bool) {
	ports := httpPorts(device.OpenPorts)
	if len(ports) == 0 {
		return device, false
	}

	for _, port := range ports {
		base := fmt.Sprintf("http://%s:%d", device.IP, port)

		for _, path := range characteristicPaths {
			if body, ok := i.fetch(ctx, base+path); ok {
				device.ModelInfo = extractModel(body)
				device.Vendor = "MediaStation"

				return device, true
			}
		}

		for _, path := range statusPaths {
			body, ok := i.fetch(ctx, base+path)
			if !ok {
				continue
			}

			lower := strings.ToLower(body)

			if hasAllTags(lower, requiredStatusTags) || containsAny(lower, nowPlayingMarkers) {
				device.ModelInfo = extractModel(body)
				device.Vendor = "MediaStation"

				return device, true
			}
		}
	}

	return device, false
}

func (i *Identifier) fetch(ctx context.Context, url string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", false
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", false
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			i.logger.Debug().Err(err).Str("url", url).Msg("failed to close fingerprint response")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFingerprintBody))
	if err != nil {
		return "", false
	}

	return string(body), true
}

func hasAllTags(body string, tags []string) bool {
	for _, tag := range tags {
		if !strings.Contains(body, tag) {
			return false
		}
	}

	return true
}

// extractModel pulls a model string out of a status document, best-effort.
func extractModel(body string) string {
	for _, key := range []string{`"model":"`, `"model": "`} {
		if idx := strings.Index(body, key); idx >= 0 {
			rest := body[idx+len(key):]
			if end := strings.Index(rest, `"`); end > 0 {
				return rest[:end]
			}
		}
	}

	return ""
}

func httpPorts(open []int) []int {
	var ports []int

	for _, p := range open {
		switch p {
		case 80, 8080:
			ports = append(ports, p)
		}
	}

	return ports
}
