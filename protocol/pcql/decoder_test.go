// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pcql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorPrimitives(t *testing.T) {
	c := newCursor([]byte{0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x03, 0, 0, 0, 0, 0, 0, 0, 0x04})
	b, err := c.Byte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b)

	s, err := c.Short()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), s)

	i, err := c.Int()
	require.NoError(t, err)
	assert.Equal(t, int32(3), i)

	l, err := c.Long()
	require.NoError(t, err)
	assert.Equal(t, int64(4), l)

	require.NoError(t, c.ExpectEOF())
}

func TestCursorByteUnderflow(t *testing.T) {
	c := newCursor([]byte{0x01})
	_, err := c.Short()
	assert.ErrorIs(t, err, ErrUnderflow)
}

func TestCursorString(t *testing.T) {
	c := newCursor([]byte{0x00, 0x05, 'h', 'e', 'l', 'l', 'o'})
	s, err := c.String()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	require.NoError(t, c.ExpectEOF())
}

func TestCursorStringInvalidUTF8(t *testing.T) {
	c := newCursor([]byte{0x00, 0x02, 0xff, 0xfe})
	_, err := c.String()
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestCursorLongStringNegativeLength(t *testing.T) {
	c := newCursor([]byte{0xff, 0xff, 0xff, 0xff})
	_, err := c.LongString()
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestCursorBytesNull(t *testing.T) {
	c := newCursor([]byte{0xff, 0xff, 0xff, 0xff})
	b, null, err := c.Bytes()
	require.NoError(t, err)
	assert.True(t, null)
	assert.Nil(t, b)
}

func TestCursorBytesEmpty(t *testing.T) {
	c := newCursor([]byte{0x00, 0x00, 0x00, 0x00})
	b, null, err := c.Bytes()
	require.NoError(t, err)
	assert.False(t, null)
	assert.Empty(t, b)
}

func TestCursorInetV4(t *testing.T) {
	c := newCursor([]byte{0x04, 127, 0, 0, 1, 0x00, 0x00, 0x23, 0x52})
	addr, err := c.Inet()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9042", addr)
}

func TestCursorInetInvalidLength(t *testing.T) {
	c := newCursor([]byte{0x05, 0, 0, 0, 0, 0})
	_, err := c.Inet()
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestCursorExpectEOFTrailing(t *testing.T) {
	c := newCursor([]byte{0x01, 0x02})
	_, err := c.Byte()
	require.NoError(t, err)
	assert.ErrorIs(t, c.ExpectEOF(), ErrTrailingBytes)
}
