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
	"github.com/valyala/bytebufferpool"

	"github.com/packetd/packetd/internal/json"
)

// StringMapEntry 有序字符串映射中的一个键值对
type StringMapEntry struct {
	Key   string
	Value string
}

// StringMap 保留插入顺序的字符串映射 重复 key 后者覆盖前者（取代旧值但保持旧位置）
type StringMap []StringMapEntry

// set 按"后者覆盖前者"的语义写入一个 key/value 位置不变
func (m *StringMap) set(key, value string) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, StringMapEntry{Key: key, Value: value})
}

// MarshalJSON 按插入顺序输出 JSON object 而不是 Go map 默认的字典序
func (m StringMap) MarshalJSON() ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteByte('{')
	for i, entry := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// StringMultimapEntry 有序字符串多值映射中的一个键值对
type StringMultimapEntry struct {
	Key    string
	Values []string
}

// StringMultimap 保留插入顺序的字符串到字符串列表映射 重复 key 后者覆盖前者
type StringMultimap []StringMultimapEntry

func (m *StringMultimap) set(key string, values []string) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Values = values
			return
		}
	}
	*m = append(*m, StringMultimapEntry{Key: key, Values: values})
}

// MarshalJSON 按插入顺序输出 JSON object
func (m StringMultimap) MarshalJSON() ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteByte('{')
	for i, entry := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(entry.Values)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// StringMap 解析 [short N][N 次 (string key, string value)] 重复 key 后者覆盖前者
func (c *cursor) StringMap() (StringMap, error) {
	n, err := c.Short()
	if err != nil {
		return nil, err
	}
	m := make(StringMap, 0, n)
	for i := 0; i < int(n); i++ {
		k, err := c.String()
		if err != nil {
			return nil, err
		}
		v, err := c.String()
		if err != nil {
			return nil, err
		}
		m.set(k, v)
	}
	return m, nil
}

// StringMultimap 解析 [short N][N 次 (string key, string list value)] 重复 key 后者覆盖前者
func (c *cursor) StringMultimap() (StringMultimap, error) {
	n, err := c.Short()
	if err != nil {
		return nil, err
	}
	m := make(StringMultimap, 0, n)
	for i := 0; i < int(n); i++ {
		k, err := c.String()
		if err != nil {
			return nil, err
		}
		v, err := c.StringList()
		if err != nil {
			return nil, err
		}
		m.set(k, v)
	}
	return m, nil
}

// NameValuePairs 解析 [short N][N 次 (可选 string name, [bytes] value)]
//
// hasNames 由调用方决定是否读取 name 字段 Batch 解析时固定传入 false
// 因为 batch 查询里的 name-value 对不携带名称
func (c *cursor) NameValuePairs(hasNames bool) (NameValuePairs, error) {
	n, err := c.Short()
	if err != nil {
		return nil, err
	}
	pairs := make(NameValuePairs, 0, n)
	for i := 0; i < int(n); i++ {
		var name string
		if hasNames {
			name, err = c.String()
			if err != nil {
				return nil, err
			}
		}
		b, null, err := c.Bytes()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, NameValuePair{Name: name, Value: b, Null: null})
	}
	return pairs, nil
}

// QueryParameters 解析 query parameters 结构 见 4.2
func (c *cursor) QueryParameters() (*QueryParameters, error) {
	qp := &QueryParameters{}

	cons, err := c.Consistency()
	if err != nil {
		return nil, err
	}
	qp.Consistency = cons

	flags, err := c.Byte()
	if err != nil {
		return nil, err
	}
	qp.Flags = flags

	if flags&flagValues != 0 {
		values, err := c.NameValuePairs(flags&flagNamesForValues != 0)
		if err != nil {
			return nil, err
		}
		qp.Values = values
	}
	if flags&flagPageSize != 0 {
		v, err := c.Int()
		if err != nil {
			return nil, err
		}
		qp.PageSize = v
		qp.HasPageSize = true
	}
	if flags&flagPagingState != 0 {
		b, _, err := c.Bytes()
		if err != nil {
			return nil, err
		}
		qp.PagingState = b
		qp.HasPagingState = true
	}
	if flags&flagSerialConsistency != 0 {
		v, err := c.Consistency()
		if err != nil {
			return nil, err
		}
		qp.SerialConsistency = v
		qp.HasSerialCons = true
	}
	if flags&flagDefaultTimestamp != 0 {
		v, err := c.Long()
		if err != nil {
			return nil, err
		}
		qp.DefaultTimestamp = v
		qp.HasTimestamp = true
	}
	return qp, nil
}

// option 类型标识 见 native_protocol_v4 §3 [option]
type optionID uint16

const (
	optCustom    optionID = 0x0000
	optList      optionID = 0x0020
	optMap       optionID = 0x0021
	optSet       optionID = 0x0022
	optUDT       optionID = 0x0030
	optTuple     optionID = 0x0031
)

var scalarOptionNames = map[optionID]string{
	0x0001: "ascii",
	0x0002: "bigint",
	0x0003: "blob",
	0x0004: "boolean",
	0x0005: "counter",
	0x0006: "decimal",
	0x0007: "double",
	0x0008: "float",
	0x0009: "int",
	0x000B: "timestamp",
	0x000C: "uuid",
	0x000D: "varchar",
	0x000E: "varint",
	0x000F: "timeuuid",
	0x0010: "inet",
	0x0011: "date",
	0x0012: "time",
	0x0013: "smallint",
	0x0014: "tinyint",
	0x0015: "duration",
}

// decodeOption 解析一个（可能递归的）column type option 仅返回人类可读的类型名
//
// 结构性完整消费类型声明字节对于正确推进游标是必须的 即使规范的 Non-goals 排除了
// 值渲染：此处渲染的是类型名（结构性），不是类型感知的值渲染
func (c *cursor) decodeOption() (string, error) {
	id, err := c.Short()
	if err != nil {
		return "", err
	}
	oid := optionID(id)

	switch oid {
	case optCustom:
		name, err := c.String()
		if err != nil {
			return "", err
		}
		return "custom<" + name + ">", nil

	case optList:
		elem, err := c.decodeOption()
		if err != nil {
			return "", err
		}
		return "list<" + elem + ">", nil

	case optSet:
		elem, err := c.decodeOption()
		if err != nil {
			return "", err
		}
		return "set<" + elem + ">", nil

	case optMap:
		key, err := c.decodeOption()
		if err != nil {
			return "", err
		}
		val, err := c.decodeOption()
		if err != nil {
			return "", err
		}
		return "map<" + key + ", " + val + ">", nil

	case optUDT:
		ks, err := c.String()
		if err != nil {
			return "", err
		}
		name, err := c.String()
		if err != nil {
			return "", err
		}
		n, err := c.Short()
		if err != nil {
			return "", err
		}
		for i := 0; i < int(n); i++ {
			if _, err := c.String(); err != nil {
				return "", err
			}
			if _, err := c.decodeOption(); err != nil {
				return "", err
			}
		}
		return ks + "." + name, nil

	case optTuple:
		n, err := c.Short()
		if err != nil {
			return "", err
		}
		elems := make([]string, 0, n)
		for i := 0; i < int(n); i++ {
			elem, err := c.decodeOption()
			if err != nil {
				return "", err
			}
			elems = append(elems, elem)
		}
		s := "tuple<"
		for i, e := range elems {
			if i > 0 {
				s += ", "
			}
			s += e
		}
		return s + ">", nil

	default:
		if name, ok := scalarOptionNames[oid]; ok {
			return name, nil
		}
		return "", ErrInvalidEncoding
	}
}

// ResultMetadata 解析 result metadata 结构 见 4.2
//
// hasPK 仅对 Prepared 响应中的 `variables metadata` 为真 用以提前读取主键索引列表
func (c *cursor) ResultMetadata(hasPK bool) (*ResultMetadata, error) {
	md := &ResultMetadata{}

	flags, err := c.Int()
	if err != nil {
		return nil, err
	}
	md.Flags = flags

	count, err := c.Int()
	if err != nil {
		return nil, err
	}
	md.ColumnCount = count

	if hasPK {
		pkCount, err := c.Int()
		if err != nil {
			return nil, err
		}
		indices := make([]uint16, 0, pkCount)
		for i := int32(0); i < pkCount; i++ {
			v, err := c.Short()
			if err != nil {
				return nil, err
			}
			indices = append(indices, v)
		}
		md.PKIndices = indices
	}

	if flags&metadataFlagHasMorePages != 0 {
		b, _, err := c.Bytes()
		if err != nil {
			return nil, err
		}
		md.PagingState = b
		md.HasPaging = true
	}

	if flags&metadataFlagNoMetadata != 0 {
		return md, nil
	}

	global := flags&metadataFlagGlobalTablesSpec != 0
	if global {
		ks, err := c.String()
		if err != nil {
			return nil, err
		}
		table, err := c.String()
		if err != nil {
			return nil, err
		}
		md.GlobalKS = ks
		md.GlobalTable = table
	}

	cols := make([]ColumnSpec, 0, count)
	for i := int32(0); i < count; i++ {
		var col ColumnSpec
		if !global {
			ks, err := c.String()
			if err != nil {
				return nil, err
			}
			table, err := c.String()
			if err != nil {
				return nil, err
			}
			col.Keyspace = ks
			col.Table = table
		} else {
			col.Keyspace = md.GlobalKS
			col.Table = md.GlobalTable
		}

		name, err := c.String()
		if err != nil {
			return nil, err
		}
		col.Name = name

		typ, err := c.decodeOption()
		if err != nil {
			return nil, err
		}
		col.Type = typ

		cols = append(cols, col)
	}
	md.Columns = cols
	return md, nil
}

// SchemaChange 解析 schema change 结构 见 4.2
func (c *cursor) SchemaChange() (*SchemaChangeData, error) {
	changeType, err := c.String()
	if err != nil {
		return nil, err
	}
	target, err := c.String()
	if err != nil {
		return nil, err
	}

	sc := &SchemaChangeData{ChangeType: changeType, Target: target}

	switch target {
	case "KEYSPACE":
		ks, err := c.String()
		if err != nil {
			return nil, err
		}
		sc.Keyspace = ks

	case "TABLE", "TYPE":
		ks, err := c.String()
		if err != nil {
			return nil, err
		}
		name, err := c.String()
		if err != nil {
			return nil, err
		}
		sc.Keyspace = ks
		sc.Name = name

	case "FUNCTION", "AGGREGATE":
		ks, err := c.String()
		if err != nil {
			return nil, err
		}
		name, err := c.String()
		if err != nil {
			return nil, err
		}
		args, err := c.StringList()
		if err != nil {
			return nil, err
		}
		sc.Keyspace = ks
		sc.Name = name
		sc.ArgTypes = args

	default:
		return nil, ErrInvalidEncoding
	}
	return sc, nil
}
