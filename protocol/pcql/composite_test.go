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

	"github.com/packetd/packetd/internal/json"
)

func strBytes(s string) []byte {
	b := make([]byte, 2+len(s))
	b[0] = byte(len(s) >> 8)
	b[1] = byte(len(s))
	copy(b[2:], s)
	return b
}

func TestStringMapEmptyMarshalsToEmptyObject(t *testing.T) {
	c := newCursor([]byte{0x00, 0x00})
	m, err := c.StringMap()
	require.NoError(t, err)
	require.NoError(t, c.ExpectEOF())

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestStringMapPreservesInsertionOrderAndLastWins(t *testing.T) {
	var buf []byte
	buf = append(buf, 0x00, 0x03) // n=3
	buf = append(buf, strBytes("CQL_VERSION")...)
	buf = append(buf, strBytes("3.0.0")...)
	buf = append(buf, strBytes("DRIVER_NAME")...)
	buf = append(buf, strBytes("packetd")...)
	buf = append(buf, strBytes("CQL_VERSION")...) // duplicate key, overwrites in place
	buf = append(buf, strBytes("4.0.0")...)

	c := newCursor(buf)
	m, err := c.StringMap()
	require.NoError(t, err)
	require.NoError(t, c.ExpectEOF())
	require.Len(t, m, 2)
	assert.Equal(t, "CQL_VERSION", m[0].Key)
	assert.Equal(t, "4.0.0", m[0].Value)
	assert.Equal(t, "DRIVER_NAME", m[1].Key)

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"CQL_VERSION":"4.0.0","DRIVER_NAME":"packetd"}`, string(b))
}

func TestDecodeOptionScalar(t *testing.T) {
	c := newCursor([]byte{0x00, 0x0D}) // varchar
	typ, err := c.decodeOption()
	require.NoError(t, err)
	assert.Equal(t, "varchar", typ)
}

func TestDecodeOptionListOfInt(t *testing.T) {
	c := newCursor([]byte{0x00, 0x20, 0x00, 0x09}) // list<int>
	typ, err := c.decodeOption()
	require.NoError(t, err)
	assert.Equal(t, "list<int>", typ)
}

func TestDecodeOptionMapOfTextToInt(t *testing.T) {
	c := newCursor([]byte{0x00, 0x21, 0x00, 0x0D, 0x00, 0x09}) // map<varchar,int>
	typ, err := c.decodeOption()
	require.NoError(t, err)
	assert.Equal(t, "map<varchar, int>", typ)
}

func TestDecodeOptionUDT(t *testing.T) {
	var buf []byte
	buf = append(buf, 0x00, 0x30) // UDT
	buf = append(buf, strBytes("ks")...)
	buf = append(buf, strBytes("addr")...)
	buf = append(buf, 0x00, 0x01) // field count
	buf = append(buf, strBytes("street")...)
	buf = append(buf, 0x00, 0x0D) // varchar

	c := newCursor(buf)
	typ, err := c.decodeOption()
	require.NoError(t, err)
	assert.Equal(t, "ks.addr", typ)
	require.NoError(t, c.ExpectEOF())
}

func TestDecodeOptionUnrecognized(t *testing.T) {
	c := newCursor([]byte{0xFF, 0xFF})
	_, err := c.decodeOption()
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestQueryParametersNoFlags(t *testing.T) {
	buf := []byte{0x00, 0x01, 0x00} // consistency=ONE, flags=0
	c := newCursor(buf)
	qp, err := c.QueryParameters()
	require.NoError(t, err)
	require.NoError(t, c.ExpectEOF())
	assert.Equal(t, ConsistencyOne, qp.Consistency)
	assert.Empty(t, qp.Values)
	assert.False(t, qp.HasPageSize)
}

func TestQueryParametersWithValuesAndPageSize(t *testing.T) {
	var buf []byte
	buf = append(buf, 0x00, 0x01)                     // consistency=ONE
	buf = append(buf, flagValues|flagPageSize)        // flags
	buf = append(buf, 0x00, 0x01)                     // values count = 1
	buf = append(buf, 0x00, 0x00, 0x00, 0x01, 0x2A)   // one unnamed value: 1 byte 0x2A
	buf = append(buf, 0x00, 0x00, 0x00, 0x64)         // page_size = 100

	c := newCursor(buf)
	qp, err := c.QueryParameters()
	require.NoError(t, err)
	require.NoError(t, c.ExpectEOF())
	require.Len(t, qp.Values, 1)
	assert.Equal(t, []byte{0x2A}, qp.Values[0].Value)
	assert.True(t, qp.HasPageSize)
	assert.Equal(t, int32(100), qp.PageSize)
}

func TestResultMetadataNoMetadataFlag(t *testing.T) {
	var buf []byte
	buf = append(buf, 0x00, 0x00, 0x00, 0x04) // flags = NO_METADATA
	buf = append(buf, 0x00, 0x00, 0x00, 0x02) // columns_count = 2 (ignored)

	c := newCursor(buf)
	md, err := c.ResultMetadata(false)
	require.NoError(t, err)
	require.NoError(t, c.ExpectEOF())
	assert.Empty(t, md.Columns)
}

func TestResultMetadataGlobalTableSpec(t *testing.T) {
	var buf []byte
	buf = append(buf, 0x00, 0x00, 0x00, 0x01) // flags = GLOBAL_TABLES_SPEC
	buf = append(buf, 0x00, 0x00, 0x00, 0x01) // columns_count = 1
	buf = append(buf, strBytes("ks")...)
	buf = append(buf, strBytes("tbl")...)
	buf = append(buf, strBytes("id")...)
	buf = append(buf, 0x00, 0x0C) // uuid

	c := newCursor(buf)
	md, err := c.ResultMetadata(false)
	require.NoError(t, err)
	require.NoError(t, c.ExpectEOF())
	require.Len(t, md.Columns, 1)
	assert.Equal(t, "ks", md.Columns[0].Keyspace)
	assert.Equal(t, "tbl", md.Columns[0].Table)
	assert.Equal(t, "id", md.Columns[0].Name)
	assert.Equal(t, "uuid", md.Columns[0].Type)
}

func TestSchemaChangeKeyspaceTarget(t *testing.T) {
	var buf []byte
	buf = append(buf, strBytes("CREATED")...)
	buf = append(buf, strBytes("KEYSPACE")...)
	buf = append(buf, strBytes("my_ks")...)

	c := newCursor(buf)
	sc, err := c.SchemaChange()
	require.NoError(t, err)
	require.NoError(t, c.ExpectEOF())
	assert.Equal(t, "CREATED", sc.ChangeType)
	assert.Equal(t, "my_ks", sc.Keyspace)
	assert.Empty(t, sc.Name)
}

func TestSchemaChangeFunctionTarget(t *testing.T) {
	var buf []byte
	buf = append(buf, strBytes("UPDATED")...)
	buf = append(buf, strBytes("FUNCTION")...)
	buf = append(buf, strBytes("my_ks")...)
	buf = append(buf, strBytes("my_fn")...)
	buf = append(buf, 0x00, 0x01)
	buf = append(buf, strBytes("int")...)

	c := newCursor(buf)
	sc, err := c.SchemaChange()
	require.NoError(t, err)
	require.NoError(t, c.ExpectEOF())
	assert.Equal(t, "my_fn", sc.Name)
	assert.Equal(t, []string{"int"}, sc.ArgTypes)
}

func TestSchemaChangeUnknownTarget(t *testing.T) {
	var buf []byte
	buf = append(buf, strBytes("CREATED")...)
	buf = append(buf, strBytes("UNKNOWN")...)

	c := newCursor(buf)
	_, err := c.SchemaChange()
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}
