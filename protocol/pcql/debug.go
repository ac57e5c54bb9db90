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

//go:build cqldebug

package pcql

import "github.com/packetd/packetd/logger"

// checkInvariants 校验一次成功匹配所必须满足的不变式：响应不早于请求且 stream 一致
//
// 只在 cqldebug 构建标签下编译 永远不返回错误 仅在违反时记录日志 绝不出现在
// 默认构建中
func checkInvariants(reqFrame, respFrame *Frame) {
	if reqFrame.TimestampNS > respFrame.TimestampNS {
		logger.Debugf("cql: invariant violated: req.timestamp_ns(%d) > resp.timestamp_ns(%d)",
			reqFrame.TimestampNS, respFrame.TimestampNS)
	}
	if reqFrame.Stream != respFrame.Stream {
		logger.Debugf("cql: invariant violated: req.stream(%d) != resp.stream(%d)",
			reqFrame.Stream, respFrame.Stream)
	}
}
