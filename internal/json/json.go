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

// Package json 对 goccy/go-json 做了一层轻量封装
//
// 统一项目内所有 JSON 编解码入口 避免各处直接依赖标准库 encoding/json
package json

import (
	"io"

	gojson "github.com/goccy/go-json"
)

// Encoder 对外暴露的编码器接口
type Encoder interface {
	Encode(v any) error
}

// NewEncoder 创建并返回 Encoder 实例
func NewEncoder(w io.Writer) Encoder {
	return gojson.NewEncoder(w)
}

// Marshal 序列化 v 为 JSON 字节数组
func Marshal(v any) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal 反序列化 JSON 字节数组到 v
func Unmarshal(data []byte, v any) error {
	return gojson.Unmarshal(data, v)
}
