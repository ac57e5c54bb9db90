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

import "github.com/pkg/errors"

func newError(format string, args ...any) error {
	format = "cql/decoder: " + format
	return errors.Errorf(format, args...)
}

// 错误分类 对应协议解析过程中可能出现的各类失败
var (
	// ErrUnderflow 请求读取的字节数超过剩余可用字节数
	ErrUnderflow = errors.New("cql: decode underflow")

	// ErrInvalidEncoding 结构性约束被违反 例如 Batch type 超出范围 inet 地址长度非法等
	ErrInvalidEncoding = errors.New("cql: invalid encoding")

	// ErrTrailingBytes ExpectEOF 校验失败 游标之后仍有多余字节
	ErrTrailingBytes = errors.New("cql: trailing bytes")

	// ErrUnrecognizedResultKind Result kind 不在 {1..5} 范围内
	ErrUnrecognizedResultKind = errors.New("cql: unrecognized result kind")

	// ErrUnknownEventType Event type 不在已知的三种取值范围内
	ErrUnknownEventType = errors.New("cql: unknown event type")

	// ErrUnhandledOpcode opcode 不在分发表中
	ErrUnhandledOpcode = errors.New("cql: unhandled opcode")

	// errDecodeHeader frame header 解析失败 字节数不足 9 字节固定长度
	errDecodeHeader = newError("decode header failed")
)
