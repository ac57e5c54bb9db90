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

package roundtripstotraces

import (
	"net/http"

	"go.opentelemetry.io/collector/pdata/pcommon"

	"github.com/packetd/packetd/internal/tracekit"
)

// extractTraceContext 优先从请求 header 中提取 traceparent 其次再尝试响应 header
//
// 均未携带则生成一个随机 TraceID 且不设置 ParentSpanID
func extractTraceContext(req, rsp http.Header) tracekit.TraceContext {
	if tc, ok := tracekit.TraceIDFromHTTPHeader(req); ok {
		return tc
	}
	if tc, ok := tracekit.TraceIDFromHTTPHeader(rsp); ok {
		return tc
	}
	return tracekit.TraceContext{TraceID: tracekit.RandomTraceID()}
}

// extractTraceID 仅提取 TraceID 语义同 extractTraceContext
func extractTraceID(req, rsp http.Header) pcommon.TraceID {
	return extractTraceContext(req, rsp).TraceID
}
