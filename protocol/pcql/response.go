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
	"fmt"
	"strconv"

	"github.com/valyala/bytebufferpool"

	"github.com/packetd/packetd/internal/json"
)

// decodeResponse 按 opcode 分发解析一个响应帧 生成 Response.Msg
func decodeResponse(frame *Frame) (Response, error) {
	resp := Response{Op: frame.Opcode, TimestampNS: frame.TimestampNS}
	c := newCursor(frame.Body)

	var (
		msg string
		err error
	)

	switch frame.Opcode {
	case OpError:
		msg, err = decodeError(c)
	case OpReady:
		err = c.ExpectEOF()
	case OpAuthenticate:
		msg, err = decodeAuthenticate(c)
	case OpSupported:
		msg, err = decodeSupported(c)
	case OpAuthSuccess, OpAuthChallenge:
		msg, err = decodeAuthToken(c)
	case OpResult:
		msg, err = decodeResult(c)
	case OpEvent:
		msg, err = decodeEvent(c)
	default:
		err = ErrUnhandledOpcode
	}
	if err != nil {
		return Response{}, err
	}

	resp.Msg = msg
	return resp, nil
}

func decodeError(c *cursor) (string, error) {
	code, err := c.Int()
	if err != nil {
		return "", err
	}
	text, err := c.String()
	if err != nil {
		return "", err
	}
	if err := c.ExpectEOF(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[%d] %s", code, text), nil
}

func decodeAuthenticate(c *cursor) (string, error) {
	name, err := c.String()
	if err != nil {
		return "", err
	}
	if err := c.ExpectEOF(); err != nil {
		return "", err
	}
	return name, nil
}

func decodeSupported(c *cursor) (string, error) {
	mm, err := c.StringMultimap()
	if err != nil {
		return "", err
	}
	if err := c.ExpectEOF(); err != nil {
		return "", err
	}
	b, err := json.Marshal(mm)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeAuthToken(c *cursor) (string, error) {
	b, _, err := c.Bytes()
	if err != nil {
		return "", err
	}
	if err := c.ExpectEOF(); err != nil {
		return "", err
	}
	return truncateHex(hex.EncodeToString(b)), nil
}

func decodeResult(c *cursor) (string, error) {
	kind, err := c.Int()
	if err != nil {
		return "", err
	}

	switch resultKind(kind) {
	case resultKindVoid:
		if err := c.ExpectEOF(); err != nil {
			return "", err
		}
		return "Response type = VOID", nil

	case resultKindRows:
		md, err := c.ResultMetadata(false)
		if err != nil {
			return "", err
		}
		rowsCount, err := c.Int()
		if err != nil {
			return "", err
		}
		// 行数据按设计跳过，此处不要求 EOF

		names := make([]string, 0, len(md.Columns))
		for _, col := range md.Columns {
			names = append(names, col.Name)
		}
		cols, err := json.Marshal(names)
		if err != nil {
			return "", err
		}

		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		buf.WriteString("Response type = ROWS\n")
		buf.WriteString("Number of columns = " + strconv.Itoa(int(md.ColumnCount)) + "\n")
		buf.Write(cols)
		buf.WriteString("\nNumber of rows = " + strconv.Itoa(int(rowsCount)))
		return buf.String(), nil

	case resultKindSetKeyspace:
		ks, err := c.String()
		if err != nil {
			return "", err
		}
		if err := c.ExpectEOF(); err != nil {
			return "", err
		}
		return "Response type = SET_KEYSPACE\nKeyspace = " + ks, nil

	case resultKindPrepared:
		if _, err := c.ShortBytes(); err != nil {
			return "", err
		}
		if _, err := c.ResultMetadata(true); err != nil {
			return "", err
		}
		if _, err := c.ResultMetadata(false); err != nil {
			return "", err
		}
		if err := c.ExpectEOF(); err != nil {
			return "", err
		}
		return "Response type = PREPARED", nil

	case resultKindSchemaChange:
		if _, err := c.SchemaChange(); err != nil {
			return "", err
		}
		if err := c.ExpectEOF(); err != nil {
			return "", err
		}
		return "Response type = SCHEMA_CHANGE", nil

	default:
		return "", ErrUnrecognizedResultKind
	}
}

const (
	eventTopologyChange = "TOPOLOGY_CHANGE"
	eventStatusChange   = "STATUS_CHANGE"
	eventSchemaChange   = "SCHEMA_CHANGE"
)

func decodeEvent(c *cursor) (string, error) {
	eventType, err := c.String()
	if err != nil {
		return "", err
	}

	switch eventType {
	case eventTopologyChange, eventStatusChange:
		changeType, err := c.String()
		if err != nil {
			return "", err
		}
		addr, err := c.Inet()
		if err != nil {
			return "", err
		}
		if err := c.ExpectEOF(); err != nil {
			return "", err
		}
		return eventType + " " + changeType + " " + addr, nil

	case eventSchemaChange:
		sc, err := c.SchemaChange()
		if err != nil {
			return "", err
		}
		if err := c.ExpectEOF(); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s keyspace=%s name=%s", eventType, sc.ChangeType, sc.Keyspace, sc.Name), nil

	default:
		return "", ErrUnknownEventType
	}
}
