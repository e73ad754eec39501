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

// Package scan implements host enumeration and TCP port scanning for
// device discovery.
package scan

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/storegrid/fleetwatch/pkg/logger"
)

// ExpandSubnets expands a comma-separated list of CIDR ranges (single IPs
// are accepted too) into a deduplicated host list in network order.
// Network and broadcast addresses are skipped for prefixes shorter than
// /31. Malformed fragments are skipped with a warning. The call fails with
// ErrSubnetLimitExceeded as soon as the running total exceeds maxHosts.
func ExpandSubnets(subnets string, maxHosts int, log logger.Logger) ([]string, error) {
	var hosts []string

	seen := make(map[string]bool)

	for _, fragment := range strings.Split(subnets, ",") {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}

		if !strings.Contains(fragment, "/") {
			ip := net.ParseIP(fragment)
			if ip == nil {
				log.Warn().Str("fragment", fragment).Msg("skipping invalid IP in subnet list")
				continue
			}

			if appendHost(&hosts, seen, ip.String(), maxHosts) {
				return nil, fmt.Errorf("%w: limit %d", ErrSubnetLimitExceeded, maxHosts)
			}

			continue
		}

		_, ipNet, err := net.ParseCIDR(fragment)
		if err != nil {
			log.Warn().Err(err).Str("fragment", fragment).Msg("skipping invalid CIDR in subnet list")
			continue
		}

		network, broadcast := subnetBounds(ipNet)

		for ip := cloneIP(ipNet.IP.Mask(ipNet.Mask)); ipNet.Contains(ip); incrementIP(ip) {
			ipStr := ip.String()
			if ipStr == network || ipStr == broadcast {
				continue
			}

			if appendHost(&hosts, seen, ipStr, maxHosts) {
				return nil, fmt.Errorf("%w: limit %d", ErrSubnetLimitExceeded, maxHosts)
			}
		}
	}

	if len(hosts) == 0 {
		return nil, ErrNoValidHosts
	}

	return hosts, nil
}

// appendHost adds ipStr unless already seen. It returns true when the
// running total would exceed maxHosts.
func appendHost(hosts *[]string, seen map[string]bool, ipStr string, maxHosts int) bool {
	if seen[ipStr] {
		return false
	}

	if len(*hosts)+1 > maxHosts {
		return true
	}

	seen[ipStr] = true
	*hosts = append(*hosts, ipStr)

	return false
}

// subnetBounds returns the network and broadcast addresses to exclude, or
// empty strings for /31 and /32 where every address is usable.
func subnetBounds(ipNet *net.IPNet) (network, broadcast string) {
	ones, bits := ipNet.Mask.Size()
	if ipNet.IP.To4() == nil || ones >= bits-1 {
		return "", ""
	}

	networkIP := ipNet.IP.Mask(ipNet.Mask)

	broadcastIP := cloneIP(networkIP)
	for i := range broadcastIP {
		broadcastIP[i] |= ^ipNet.Mask[i]
	}

	return networkIP.String(), broadcastIP.String()
}

func cloneIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)

	return out
}

// incrementIP increments an IP address by 1.
func incrementIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}

// ParsePorts parses a comma-separated port list into a deduplicated,
// order-preserving slice filtered to 1..65535. Invalid tokens are dropped.
func ParsePorts(ports string) ([]int, error) {
	var out []int

	seen := make(map[int]bool)

	for _, token := range strings.Split(ports, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		port, err := strconv.Atoi(token)
		if err != nil || port < 1 || port > 65535 {
			continue
		}

		if seen[port] {
			continue
		}

		seen[port] = true
		out = append(out, port)
	}

	if len(out) == 0 {
		return nil, ErrNoValidPorts
	}

	return out, nil
}
