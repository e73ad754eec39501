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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
)

const (
	mediaHTTPTimeout   = 5 * time.Second
	mediaMaxBodyBytes  = 256 * 1024
	mediaStatusPath    = "/api/v1/player/status"
	mediaControlPath   = "/api/v1/player/control"
	mediaContentPath   = "/api/v1/content"
	unexpectedStatusFm = "unexpected status %d from %s"
)

// HTTPMediaProber talks to media players over their management HTTP API
// with basic auth. Success is judged by response status alone: a 2xx is
// online, any other response reached a live but misbehaving device, and
// a transport failure means the device is simply off.
type HTTPMediaProber struct {
	client *http.Client
	logger logger.Logger
}

var _ Prober = (*HTTPMediaProber)(nil)

func NewHTTPMediaProber(log logger.Logger) *HTTPMediaProber {
	return &HTTPMediaProber{
		client: &http.Client{Timeout: mediaHTTPTimeout},
		logger: log,
	}
}

// mediaStatus mirrors the player status document. Unknown fields are
// ignored; every field is optional.
type mediaStatus struct {
	Name          string `json:"name"`
	Model         string `json:"model"`
	Firmware      string `json:"firmware"`
	PlaybackState string `json:"playback_state"`
	Volume        *int   `json:"volume"`
	NowPlaying    string `json:"now_playing"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (p *HTTPMediaProber) Poll(ctx context.Context, target models.PollTarget) (*models.PollOutcome, error) {
	outcome := &models.PollOutcome{Attributes: map[string]string{}}

	body, status, err := p.get(ctx, target, mediaStatusPath)
	if err != nil {
		// Transport failure: nothing answered, clean offline.
		p.logger.Debug().Err(err).Str("target", target.Address).Msg("media status request failed")

		return outcome, nil
	}

	if status < 200 || status >= 300 {
		// The device answered but refused us. That is a malfunction,
		// not an outage.
		outcome.ProbedError = true

		p.logger.Debug().Int("status", status).Str("target", target.Address).Msg("media status rejected")

		return outcome, nil
	}

	outcome.ProbedOnline = true

	var doc mediaStatus
	if err := json.Unmarshal(body, &doc); err != nil {
		p.logger.Debug().Err(err).Str("target", target.Address).Msg("media status body unparsable")

		return outcome, nil
	}

	outcome.Hostname = doc.Name
	outcome.Model = doc.Model
	outcome.Firmware = doc.Firmware
	outcome.UptimeSeconds = doc.UptimeSeconds

	if doc.PlaybackState != "" {
		outcome.Attributes["playback_state"] = doc.PlaybackState
	}

	if doc.NowPlaying != "" {
		outcome.Attributes["now_playing"] = doc.NowPlaying
	}

	if doc.Volume != nil {
		outcome.Attributes["volume"] = fmt.Sprintf("%d", *doc.Volume)
	}

	return outcome, nil
}

// Play starts playback of the named content item.
func (p *HTTPMediaProber) Play(ctx context.Context, target models.PollTarget, content string) error {
	payload := fmt.Sprintf(`{"action":"play","content":%q}`, content)

	return p.command(ctx, target, mediaControlPath, payload)
}

// Stop halts playback.
func (p *HTTPMediaProber) Stop(ctx context.Context, target models.PollTarget) error {
	return p.command(ctx, target, mediaControlPath, `{"action":"stop"}`)
}

// SetVolume adjusts the output volume, 0 to 100.
func (p *HTTPMediaProber) SetVolume(ctx context.Context, target models.PollTarget, volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("volume %d out of range", volume)
	}

	payload := fmt.Sprintf(`{"action":"volume","level":%d}`, volume)

	return p.command(ctx, target, mediaControlPath, payload)
}

// UploadContent pushes a content file to the player.
func (p *HTTPMediaProber) UploadContent(ctx context.Context, target models.PollTarget, name string, data io.Reader) error {
	u := p.baseURL(target) + mediaContentPath + "/" + url.PathEscape(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, data)
	if err != nil {
		return err
	}

	p.setAuth(req, target)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("content upload to %s failed: %w", target.Address, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf(unexpectedStatusFm, resp.StatusCode, u)
	}

	return nil
}

// DeleteContent removes a content file from the player.
func (p *HTTPMediaProber) DeleteContent(ctx context.Context, target models.PollTarget, name string) error {
	u := p.baseURL(target) + mediaContentPath + "/" + url.PathEscape(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, http.NoBody)
	if err != nil {
		return err
	}

	p.setAuth(req, target)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("content delete on %s failed: %w", target.Address, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf(unexpectedStatusFm, resp.StatusCode, u)
	}

	return nil
}

// ListContent returns the names of content files on the player.
func (p *HTTPMediaProber) ListContent(ctx context.Context, target models.PollTarget) ([]string, error) {
	body, status, err := p.get(ctx, target, mediaContentPath)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		return nil, fmt.Errorf(unexpectedStatusFm, status, mediaContentPath)
	}

	var doc struct {
		Items []string `json:"items"`
	}

	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("content listing unparsable: %w", err)
	}

	return doc.Items, nil
}

// Media players expose no switch-style port surface.
func (p *HTTPMediaProber) PortTable(_ context.Context, _ models.PollTarget) ([]models.PortState, error) {
	return nil, ErrNotSupported
}

func (p *HTTPMediaProber) SetPortConfig(_ context.Context, _ models.PollTarget, _ models.PortConfigChange) error {
	return ErrNotSupported
}

func (p *HTTPMediaProber) command(ctx context.Context, target models.PollTarget, path, payload string) error {
	u := p.baseURL(target) + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(payload))
	if err != nil {
		return err
	}

	p.setAuth(req, target)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("command to %s failed: %w", target.Address, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf(unexpectedStatusFm, resp.StatusCode, u)
	}

	return nil
}

func (p *HTTPMediaProber) get(ctx context.Context, target models.PollTarget, path string) ([]byte, int, error) {
	u := p.baseURL(target) + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, 0, err
	}

	p.setAuth(req, target)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, mediaMaxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}

func (p *HTTPMediaProber) baseURL(target models.PollTarget) string {
	return "http://" + target.Address
}

func (p *HTTPMediaProber) setAuth(req *http.Request, target models.PollTarget) {
	if target.HTTP != nil && target.HTTP.Username != "" {
		req.SetBasicAuth(target.HTTP.Username, target.HTTP.Password)
	}
}
