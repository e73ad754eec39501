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
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"
)

// NetBIOS Node Status (NBSTAT) lookup over UDP/137, RFC 1001/1002. Used as
// the hostname fallback for Windows-style names that DNS cannot resolve.
// Works without elevated privileges.

const (
	netbiosPort    = 137
	netbiosTimeout = 2 * time.Second

	nbstatType  = 0x0021
	nbstatClass = 0x0001
)

// netbiosLookup sends one NBSTAT query and returns the primary workstation
// name, plus the MAC when the response carries one.
func netbiosLookup(ctx context.Context, ip string) (hostname, mac string, err error) {
	target := net.ParseIP(ip)
	if target == nil {
		return "", "", fmt.Errorf("invalid IP address: %s", ip)
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return "", "", fmt.Errorf("udp listen: %w", err)
	}

	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(netbiosTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = conn.SetDeadline(deadline)

	addr := &net.UDPAddr{IP: target, Port: netbiosPort}
	if _, err := conn.WriteTo(buildNBSTATRequest(), addr); err != nil {
		return "", "", fmt.Errorf("send request: %w", err)
	}

	buf := make([]byte, 2048)

	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		return "", "", fmt.Errorf("read response: %w", err)
	}

	return parseNBSTATResponse(buf[:n])
}

// buildNBSTATRequest constructs a Node Status request for the wildcard
// name: header, then '*' padded to 16 bytes and half-ASCII encoded.
func buildNBSTATRequest() []byte {
	var buf bytes.Buffer

	_ = binary.Write(&buf, binary.BigEndian, uint16(0x4657)) // transaction ID
	_ = binary.Write(&buf, binary.BigEndian, uint16(0x0000)) // flags
	_ = binary.Write(&buf, binary.BigEndian, uint16(1))      // QDCOUNT
	_ = binary.Write(&buf, binary.BigEndian, uint16(0))      // ANCOUNT
	_ = binary.Write(&buf, binary.BigEndian, uint16(0))      // NSCOUNT
	_ = binary.Write(&buf, binary.BigEndian, uint16(0))      // ARCOUNT

	buf.WriteByte(32) // encoded name length

	name := make([]byte, 16)
	name[0] = '*'

	for _, b := range name {
		buf.WriteByte('A' + (b>>4)&0x0F)
		buf.WriteByte('A' + b&0x0F)
	}

	buf.WriteByte(0) // terminator

	_ = binary.Write(&buf, binary.BigEndian, uint16(nbstatType))
	_ = binary.Write(&buf, binary.BigEndian, uint16(nbstatClass))

	return buf.Bytes()
}

// parseNBSTATResponse extracts the first active unique workstation name
// (suffix 0x00) and the trailing MAC from a Node Status response.
func parseNBSTATResponse(data []byte) (hostname, mac string, err error) {
	if len(data) < 57 {
		return "", "", fmt.Errorf("response too short: %d bytes", len(data))
	}

	numNames := int(data[56])
	if numNames <= 0 {
		return "", "", fmt.Errorf("no names in response")
	}

	off := 57

	for i := 0; i < numNames && off+18 <= len(data); i++ {
		entry := data[off : off+18]
		name := strings.TrimRight(string(entry[0:15]), " \x00")
		suffix := entry[15]
		flags := binary.BigEndian.Uint16(entry[16:18])
		isGroup := flags&0x8000 != 0

		if hostname == "" && suffix == 0x00 && !isGroup {
			hostname = name
		}

		off += 18
	}

	if off+6 <= len(data) {
		hw := net.HardwareAddr(data[off : off+6])
		if hw.String() != "00:00:00:00:00:00" {
			mac = hw.String()
		}
	}

	if hostname == "" {
		return "", "", fmt.Errorf("no workstation name in response")
	}

	return hostname, mac, nil
}
