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

package scan

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/storegrid/fleetwatch/pkg/logger"
)

const (
	defaultTimeout     = 2 * time.Second
	defaultConcurrency = 128
	batchSize          = 50
	retryBackoffStep   = 200 * time.Millisecond
)

// FoundHost is a host with at least one open configured port.
type FoundHost struct {
	IP        string
	OpenPorts []int
}

// BatchProgress is published after every completed batch.
type BatchProgress struct {
	Scanned int
	Total   int
	Found   int
}

// PortScanner probes a fixed port set against hosts in fixed-size batches.
// All connection attempts share one global concurrency limiter, so peak
// in-flight connections never exceed the configured ceiling regardless of
// batch size.
type PortScanner struct {
	timeout     time.Duration
	retries     int
	concurrency int
	logger      logger.Logger
}

// NewPortScanner builds a scanner. Zero values fall back to defaults.
func NewPortScanner(timeout time.Duration, retries, concurrency int, log logger.Logger) *PortScanner {
	if timeout == 0 {
		timeout = defaultTimeout
	}

	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	if retries < 0 {
		retries = 0
	}

	return &PortScanner{
		timeout:     timeout,
		retries:     retries,
		concurrency: concurrency,
		logger:      log,
	}
}

// Scan probes every (host, port) pair. Batches execute strictly in
// enumeration order and onBatch fires after each one, so reported progress
// is monotonically non-decreasing. A host is found iff at least one port
// accepted a connection.
func (s *PortScanner) Scan(ctx context.Context, hosts []string, ports []int, onBatch func(BatchProgress)) ([]FoundHost, error) {
	if len(hosts) == 0 || len(ports) == 0 {
		return nil, nil
	}

	// Shared across the whole scan, not per batch.
	limiter := make(chan struct{}, s.concurrency)

	var found []FoundHost

	scanned := 0

	for start := 0; start < len(hosts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return found, err
		}

		end := start + batchSize
		if end > len(hosts) {
			end = len(hosts)
		}

		batch := hosts[start:end]
		batchFound := s.scanBatch(ctx, batch, ports, limiter)
		found = append(found, batchFound...)
		scanned += len(batch)

		if onBatch != nil {
			onBatch(BatchProgress{Scanned: scanned, Total: len(hosts), Found: len(found)})
		}
	}

	return found, nil
}

// scanBatch runs every (host, port) attempt of one batch concurrently,
// bounded by the shared limiter, and returns found hosts in batch order.
func (s *PortScanner) scanBatch(ctx context.Context, batch []string, ports []int, limiter chan struct{}) []FoundHost {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		open = make(map[string][]int)
	)

	for _, host := range batch {
		for _, port := range ports {
			wg.Add(1)

			go func(host string, port int) {
				defer wg.Done()

				select {
				case limiter <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-limiter }()

				if s.checkPort(ctx, host, port) {
					mu.Lock()
					open[host] = append(open[host], port)
					mu.Unlock()
				}
			}(host, port)
		}
	}

	wg.Wait()

	var found []FoundHost

	for _, host := range batch {
		if ports, ok := open[host]; ok {
			sort.Ints(ports)
			found = append(found, FoundHost{IP: host, OpenPorts: ports})
		}
	}

	return found
}

// checkPort retries the connect attempt with linear backoff on failure.
func (s *PortScanner) checkPort(ctx context.Context, host string, port int) bool {
	addr := fmt.Sprintf("%s:%d", host, port)

	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(time.Duration(attempt) * retryBackoffStep):
			}
		}

		if s.dialOnce(ctx, addr) {
			return true
		}
	}

	return false
}

func (s *PortScanner) dialOnce(ctx context.Context, addr string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var dialer net.Dialer

	conn, err := dialer.DialContext(probeCtx, "tcp", addr)
	if err != nil {
		return false
	}

	if err := conn.Close(); err != nil {
		s.logger.Debug().Err(err).Str("addr", addr).Msg("failed to close probe connection")
	}

	return true
}
