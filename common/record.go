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

package common

import (
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/packetd/packetd/internal/metricstorage"
)

// RecordType 标识 Record 携带数据的类型
//
// Pipeline 中的 Processor 会根据 RecordType 判断是否需要处理某条 Record
// Exporter 则根据 RecordType 选择对应的 Sinker 进行落盘/上报
type RecordType string

const (
	// RecordRoundTrips 标识原始的协议请求来回数据 socket.RoundTrip
	RecordRoundTrips RecordType = "roundtrips"

	// RecordMetrics 标识由 RoundTrips 衍生出的指标数据
	RecordMetrics RecordType = "metrics"

	// RecordTraces 标识由 RoundTrips 衍生出的调用链数据
	RecordTraces RecordType = "traces"
)

// Record 是 Pipeline / Exporter 之间流转的统一数据载体
//
// Data 的具体类型由 RecordType 决定：
//   - RecordRoundTrips -> socket.RoundTrip
//   - RecordMetrics    -> *MetricsData
//   - RecordTraces     -> *TracesData
type Record struct {
	RecordType RecordType
	Data       any
}

// NewRecord 创建并返回一个新的 Record 实例
func NewRecord(recordType RecordType, data any) *Record {
	return &Record{
		RecordType: recordType,
		Data:       data,
	}
}

// MetricsData RecordMetrics 类型携带的数据
type MetricsData struct {
	Data []metricstorage.ConstMetric
}

// TracesData RecordTraces 类型携带的数据
type TracesData struct {
	Data ptrace.Span
}
