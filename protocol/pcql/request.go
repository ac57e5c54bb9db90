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
	"encoding/hex"

	"github.com/valyala/bytebufferpool"

	"github.com/packetd/packetd/internal/json"
)

// decodeRequest 按 opcode 分发解析一个请求帧 生成 Request.Msg
//
// 任何未在分发表中的 opcode 都返回 ErrUnhandledOpcode
func decodeRequest(frame *Frame) (Request, error) {
	req := Request{Op: frame.Opcode, TimestampNS: frame.TimestampNS}
	c := newCursor(frame.Body)

	var (
		msg string
		err error
	)

	switch frame.Opcode {
	case OpStartup:
		msg, err = decodeStartup(c)
	case OpAuthResponse:
		msg, err = decodeAuthResponse(c)
	case OpOptions:
		err = c.ExpectEOF()
	case OpRegister:
		msg, err = decodeRegister(c)
	case OpQuery:
		msg, err = decodeQueryRequest(c)
	case OpPrepare:
		msg, err = decodePrepare(c)
	case OpExecute:
		msg, err = decodeExecute(c)
	case OpBatch:
		msg, err = decodeBatchRequest(c)
	default:
		err = ErrUnhandledOpcode
	}
	if err != nil {
		return Request{}, err
	}

	req.Msg = msg
	return req, nil
}

func decodeStartup(c *cursor) (string, error) {
	m, err := c.StringMap()
	if err != nil {
		return "", err
	}
	if err := c.ExpectEOF(); err != nil {
		return "", err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeAuthResponse(c *cursor) (string, error) {
	b, _, err := c.Bytes()
	if err != nil {
		return "", err
	}
	if err := c.ExpectEOF(); err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRegister(c *cursor) (string, error) {
	list, err := c.StringList()
	if err != nil {
		return "", err
	}
	if err := c.ExpectEOF(); err != nil {
		return "", err
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeQueryRequest(c *cursor) (string, error) {
	text, err := c.LongString()
	if err != nil {
		return "", err
	}
	qp, err := c.QueryParameters()
	if err != nil {
		return "", err
	}
	if err := c.ExpectEOF(); err != nil {
		return "", err
	}

	if len(qp.Values) == 0 {
		return text, nil
	}

	hexValues := make([]string, 0, len(qp.Values))
	for _, v := range qp.Values {
		hexValues = append(hexValues, truncateHex(hex.EncodeToString(v.Value)))
	}
	b, err := json.Marshal(hexValues)
	if err != nil {
		return "", err
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.WriteString(text)
	buf.WriteByte('\n')
	buf.Write(b)
	return buf.String(), nil
}

func decodePrepare(c *cursor) (string, error) {
	text, err := c.LongString()
	if err != nil {
		return "", err
	}
	if err := c.ExpectEOF(); err != nil {
		return "", err
	}
	return text, nil
}

func decodeExecute(c *cursor) (string, error) {
	// prepared statement id 本身不在 msg 中渲染，仅用于推进游标
	if _, err := c.ShortBytes(); err != nil {
		return "", err
	}
	qp, err := c.QueryParameters()
	if err != nil {
		return "", err
	}
	if err := c.ExpectEOF(); err != nil {
		return "", err
	}

	hexValues := make([]string, 0, len(qp.Values))
	for _, v := range qp.Values {
		hexValues = append(hexValues, truncateHex(hex.EncodeToString(v.Value)))
	}
	b, err := json.Marshal(hexValues)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// batchQueryJSON 是 BatchQueryPayload 的 JSON 渲染形状 {"query": text} 或 {"id": hex}
type batchQueryJSON struct {
	Query string `json:"query,omitempty"`
	ID    string `json:"id,omitempty"`
}

func decodeBatchRequest(c *cursor) (string, error) {
	batchType, err := c.Byte()
	if err != nil {
		return "", err
	}
	if batchType != batchTypeLogged && batchType != batchTypeUnlogged && batchType != batchTypeCounter {
		return "", ErrInvalidEncoding
	}

	n, err := c.Short()
	if err != nil {
		return "", err
	}

	items := make([]batchQueryJSON, 0, n)
	for i := 0; i < int(n); i++ {
		kind, err := c.Byte()
		if err != nil {
			return "", err
		}

		var item batchQueryJSON
		switch kind {
		case batchQueryKindString:
			text, err := c.LongString()
			if err != nil {
				return "", err
			}
			item.Query = text
		case batchQueryKindID:
			id, err := c.ShortBytes()
			if err != nil {
				return "", err
			}
			item.ID = truncateHex(hex.EncodeToString(id))
		default:
			return "", ErrInvalidEncoding
		}

		// prepared statement id 引用的 batch 条目里 name-value 对不带名称
		if _, err := c.NameValuePairs(false); err != nil {
			return "", err
		}
		items = append(items, item)
	}

	if _, err := c.Consistency(); err != nil {
		return "", err
	}
	flags, err := c.Byte()
	if err != nil {
		return "", err
	}
	if flags&flagSerialConsistency != 0 {
		if _, err := c.Consistency(); err != nil {
			return "", err
		}
	}
	if flags&flagDefaultTimestamp != 0 {
		if _, err := c.Long(); err != nil {
			return "", err
		}
	}
	// flagNamesForValues (0x40) 被解析但丢弃，不影响渲染结果
	if err := c.ExpectEOF(); err != nil {
		return "", err
	}

	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
