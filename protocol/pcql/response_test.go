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

func TestDecodeResponseError(t *testing.T) {
	var body []byte
	body = append(body, 0x00, 0x00, 0x00, 0x0A) // code=10 (syntax error)
	body = append(body, strBytes("bad query")...)

	frame := &Frame{Opcode: OpError, Stream: 1, Body: body, TimestampNS: 200}
	resp, err := decodeResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, "[10] bad query", resp.Msg)
}

func TestDecodeResponseReady(t *testing.T) {
	frame := &Frame{Opcode: OpReady, Stream: 2, Body: nil, TimestampNS: 200}
	resp, err := decodeResponse(frame)
	require.NoError(t, err)
	assert.Empty(t, resp.Msg)
}

func TestDecodeResponseResultSetKeyspace(t *testing.T) {
	var body []byte
	body = append(body, 0x00, 0x00, 0x00, 0x03) // kind = SET_KEYSPACE
	body = append(body, strBytes("my_ks")...)

	frame := &Frame{Opcode: OpResult, Stream: 3, Body: body, TimestampNS: 200}
	resp, err := decodeResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, "Response type = SET_KEYSPACE\nKeyspace = my_ks", resp.Msg)
}

func TestDecodeResponseResultVoid(t *testing.T) {
	body := []byte{0x00, 0x00, 0x00, 0x01}
	frame := &Frame{Opcode: OpResult, Stream: 4, Body: body, TimestampNS: 200}
	resp, err := decodeResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, "Response type = VOID", resp.Msg)
}

func TestDecodeResponseResultRowsSkipsRowData(t *testing.T) {
	var body []byte
	body = append(body, 0x00, 0x00, 0x00, 0x02) // kind = ROWS
	body = append(body, 0x00, 0x00, 0x00, 0x04) // metadata flags = NO_METADATA
	body = append(body, 0x00, 0x00, 0x00, 0x00) // columns_count = 0
	body = append(body, 0x00, 0x00, 0x00, 0x02) // rows_count = 2
	body = append(body, 0xDE, 0xAD, 0xBE, 0xEF) // arbitrary trailing row bytes, intentionally not consumed

	frame := &Frame{Opcode: OpResult, Stream: 5, Body: body, TimestampNS: 200}
	resp, err := decodeResponse(frame)
	require.NoError(t, err)
	assert.Contains(t, resp.Msg, "Response type = ROWS")
	assert.Contains(t, resp.Msg, "Number of rows = 2")
}

func TestDecodeResponseResultRowsNoMetadataUsesColumnsCount(t *testing.T) {
	var body []byte
	body = append(body, 0x00, 0x00, 0x00, 0x02) // kind = ROWS
	body = append(body, 0x00, 0x00, 0x00, 0x04) // metadata flags = NO_METADATA
	body = append(body, 0x00, 0x00, 0x00, 0x03) // columns_count = 3 (wire still carries it)
	body = append(body, 0x00, 0x00, 0x00, 0x01) // rows_count = 1
	body = append(body, 0xDE, 0xAD, 0xBE, 0xEF) // arbitrary trailing row bytes, intentionally not consumed

	frame := &Frame{Opcode: OpResult, Stream: 5, Body: body, TimestampNS: 200}
	resp, err := decodeResponse(frame)
	require.NoError(t, err)
	assert.Contains(t, resp.Msg, "Number of columns = 3")
	assert.Contains(t, resp.Msg, "[]")
}

func TestDecodeResponseResultRowsWithMetadataListsColumnNames(t *testing.T) {
	var body []byte
	body = append(body, 0x00, 0x00, 0x00, 0x02) // kind = ROWS
	body = append(body, 0x00, 0x00, 0x00, 0x01) // metadata flags = GLOBAL_TABLES_SPEC
	body = append(body, 0x00, 0x00, 0x00, 0x02) // columns_count = 2
	body = append(body, strBytes("ks1")...)
	body = append(body, strBytes("tbl1")...)
	body = append(body, strBytes("id")...)
	body = append(body, 0x00, 0x09) // option id = int
	body = append(body, strBytes("name")...)
	body = append(body, 0x00, 0x0D) // option id = varchar
	body = append(body, 0x00, 0x00, 0x00, 0x00) // rows_count = 0

	frame := &Frame{Opcode: OpResult, Stream: 5, Body: body, TimestampNS: 200}
	resp, err := decodeResponse(frame)
	require.NoError(t, err)
	assert.Contains(t, resp.Msg, "Number of columns = 2")
	assert.Contains(t, resp.Msg, `["id","name"]`)
	assert.NotContains(t, resp.Msg, "keyspace")
}

func TestDecodeResponseResultUnrecognizedKind(t *testing.T) {
	body := []byte{0x00, 0x00, 0x00, 0x63}
	frame := &Frame{Opcode: OpResult, Stream: 6, Body: body, TimestampNS: 200}
	_, err := decodeResponse(frame)
	assert.ErrorIs(t, err, ErrUnrecognizedResultKind)
}

func TestDecodeResponseEventStatusChange(t *testing.T) {
	var body []byte
	body = append(body, strBytes("STATUS_CHANGE")...)
	body = append(body, strBytes("UP")...)
	body = append(body, 0x04, 10, 0, 0, 5, 0x00, 0x00, 0x23, 0x52) // inet 10.0.0.5:9042

	frame := &Frame{Opcode: OpEvent, Stream: 0, Body: body, TimestampNS: 200}
	resp, err := decodeResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, "STATUS_CHANGE UP 10.0.0.5:9042", resp.Msg)
}

func TestDecodeResponseEventUnknownType(t *testing.T) {
	var body []byte
	body = append(body, strBytes("UNKNOWN_EVENT")...)

	frame := &Frame{Opcode: OpEvent, Stream: 0, Body: body, TimestampNS: 200}
	_, err := decodeResponse(frame)
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestDecodeResponseUnhandledOpcode(t *testing.T) {
	frame := &Frame{Opcode: OpStartup, Stream: 7, Body: nil, TimestampNS: 200}
	_, err := decodeResponse(frame)
	assert.ErrorIs(t, err, ErrUnhandledOpcode)
}
