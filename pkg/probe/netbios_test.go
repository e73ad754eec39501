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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNBSTATRequest(t *testing.T) {
	req := buildNBSTATRequest()

	// header(12) + length(1) + encoded name(32) + terminator(1) + type/class(4)
	require.Len(t, req, 50)

	assert.Equal(t, byte(0x46), req[0])
	assert.Equal(t, byte(0x57), req[1])
	assert.Equal(t, byte(32), req[12])

	// '*' is 0x2A: half-ASCII encodes to 'C','K'; padding zeros to 'A','A'
	assert.Equal(t, byte('C'), req[13])
	assert.Equal(t, byte('K'), req[14])
	assert.Equal(t, byte('A'), req[15])
	assert.Equal(t, byte(0), req[45])
}

// nbstatResponse builds a synthetic Node Status response with the given
// name entries and trailing MAC.
func nbstatResponse(entries [][18]byte, mac []byte) []byte {
	data := make([]byte, 57)
	data[56] = byte(len(entries))

	for _, e := range entries {
		data = append(data, e[:]...)
	}

	return append(data, mac...)
}

func nameEntry(name string, suffix byte, group bool) [18]byte {
	var e [18]byte

	copy(e[:15], []byte(name))

	for i := len(name); i < 15; i++ {
		e[i] = ' '
	}

	e[15] = suffix

	if group {
		e[16] = 0x80
	}

	return e
}

func TestParseNBSTATResponse(t *testing.T) {
	t.Run("workstation name and MAC", func(t *testing.T) {
		data := nbstatResponse([][18]byte{
			nameEntry("WORKGROUP", 0x00, true), // group entry skipped
			nameEntry("POS-TERM-7", 0x00, false),
			nameEntry("POS-TERM-7", 0x20, false), // server suffix skipped
		}, []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff})

		hostname, mac, err := parseNBSTATResponse(data)
		require.NoError(t, err)

		assert.Equal(t, "POS-TERM-7", hostname)
		assert.Equal(t, "aa:bb:cc:dd:ee:ff", mac)
	})

	t.Run("all-zero MAC is dropped", func(t *testing.T) {
		data := nbstatResponse([][18]byte{
			nameEntry("HOST-1", 0x00, false),
		}, make([]byte, 6))

		hostname, mac, err := parseNBSTATResponse(data)
		require.NoError(t, err)

		assert.Equal(t, "HOST-1", hostname)
		assert.Empty(t, mac)
	})

	t.Run("truncated response", func(t *testing.T) {
		_, _, err := parseNBSTATResponse(make([]byte, 10))
		require.Error(t, err)
	})

	t.Run("no workstation name", func(t *testing.T) {
		data := nbstatResponse([][18]byte{
			nameEntry("WORKGROUP", 0x00, true),
		}, make([]byte, 6))

		_, _, err := parseNBSTATResponse(data)
		require.Error(t, err)
	})
}
