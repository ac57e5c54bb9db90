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

func TestDecodeRequestStartup(t *testing.T) {
	var body []byte
	body = append(body, 0x00, 0x01)
	body = append(body, strBytes("CQL_VERSION")...)
	body = append(body, strBytes("3.0.0")...)

	frame := &Frame{Opcode: OpStartup, Stream: 1, Body: body, TimestampNS: 100}
	req, err := decodeRequest(frame)
	require.NoError(t, err)
	assert.Equal(t, OpStartup, req.Op)
	assert.JSONEq(t, `{"CQL_VERSION":"3.0.0"}`, req.Msg)
}

func TestDecodeRequestOptions(t *testing.T) {
	frame := &Frame{Opcode: OpOptions, Stream: 2, Body: nil, TimestampNS: 100}
	req, err := decodeRequest(frame)
	require.NoError(t, err)
	assert.Empty(t, req.Msg)
}

func TestDecodeRequestQueryNoValues(t *testing.T) {
	var body []byte
	text := "SELECT * FROM ks.tbl"
	body = append(body, 0x00, 0x00, 0x00, byte(len(text)))
	body = append(body, text...)
	body = append(body, 0x00, 0x01) // consistency=ONE
	body = append(body, 0x00)       // flags=0

	frame := &Frame{Opcode: OpQuery, Stream: 3, Body: body, TimestampNS: 100}
	req, err := decodeRequest(frame)
	require.NoError(t, err)
	assert.Equal(t, text, req.Msg)
}

func TestDecodeRequestQueryWithValues(t *testing.T) {
	text := "INSERT INTO ks.tbl (id) VALUES (?)"
	var body []byte
	body = append(body, 0x00, 0x00, 0x00, byte(len(text)))
	body = append(body, text...)
	body = append(body, 0x00, 0x01)                   // consistency
	body = append(body, flagValues)                   // flags
	body = append(body, 0x00, 0x01)                   // values count
	body = append(body, 0x00, 0x00, 0x00, 0x01, 0xAB)  // value bytes = [0xAB]

	frame := &Frame{Opcode: OpQuery, Stream: 3, Body: body, TimestampNS: 100}
	req, err := decodeRequest(frame)
	require.NoError(t, err)
	assert.Contains(t, req.Msg, text+"\n")
	assert.Contains(t, req.Msg, `["ab"]`)
}

func TestDecodeRequestBatchEmptyQueries(t *testing.T) {
	var body []byte
	body = append(body, batchTypeLogged)
	body = append(body, 0x00, 0x00) // n=0
	body = append(body, 0x00, 0x01) // consistency
	body = append(body, 0x00)       // flags

	frame := &Frame{Opcode: OpBatch, Stream: 4, Body: body, TimestampNS: 100}
	req, err := decodeRequest(frame)
	require.NoError(t, err)
	assert.Equal(t, "[]", req.Msg)
}

func TestDecodeRequestBatchWithQueries(t *testing.T) {
	var body []byte
	body = append(body, batchTypeLogged)
	body = append(body, 0x00, 0x02) // n=2

	q1 := "INSERT INTO ks.t (a) VALUES (1)"
	body = append(body, batchQueryKindString)
	body = append(body, 0x00, 0x00, 0x00, byte(len(q1)))
	body = append(body, q1...)
	body = append(body, 0x00, 0x00) // name/value pairs = 0

	body = append(body, batchQueryKindID)
	body = append(body, 0x00, 0x02, 0xCA, 0xFE) // short bytes id
	body = append(body, 0x00, 0x00)             // name/value pairs = 0

	body = append(body, 0x00, 0x01) // consistency
	body = append(body, 0x00)       // flags

	frame := &Frame{Opcode: OpBatch, Stream: 5, Body: body, TimestampNS: 100}
	req, err := decodeRequest(frame)
	require.NoError(t, err)
	assert.Contains(t, req.Msg, q1)
	assert.Contains(t, req.Msg, `"id":"cafe"`)
}

func TestDecodeRequestBatchInvalidType(t *testing.T) {
	body := []byte{0xFF, 0x00, 0x00}
	frame := &Frame{Opcode: OpBatch, Stream: 6, Body: body, TimestampNS: 100}
	_, err := decodeRequest(frame)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestDecodeRequestUnhandledOpcode(t *testing.T) {
	frame := &Frame{Opcode: OpResult, Stream: 7, Body: nil, TimestampNS: 100}
	_, err := decodeRequest(frame)
	assert.ErrorIs(t, err, ErrUnhandledOpcode)
}

func TestDecodeRequestTrailingBytes(t *testing.T) {
	frame := &Frame{Opcode: OpOptions, Stream: 8, Body: []byte{0x00}, TimestampNS: 100}
	_, err := decodeRequest(frame)
	assert.ErrorIs(t, err, ErrTrailingBytes)
}
