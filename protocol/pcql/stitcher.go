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
	"github.com/packetd/packetd/logger"
)

// Stitcher 消费两个按插入时间排序的队列（请求/响应） 产出已匹配的 Record
//
// Stitcher 本身是单线程同步的：一次 ProcessFrames 调用处理一批帧后返回 没有内部
// worker goroutine 也没有挂起点 调用方（通常是每条连接一个 goroutine）需要自行
// 保证同一时刻只有一次 ProcessFrames 在执行
type Stitcher struct {
	requests  []*Frame
	responses []*Frame
}

// NewStitcher 创建一个空的 Stitcher 实例
func NewStitcher() *Stitcher {
	return &Stitcher{}
}

// PushRequest 将一个请求帧追加到请求队列尾部 调用方需保证按时间戳单调递增追加
func (s *Stitcher) PushRequest(f *Frame) {
	s.requests = append(s.requests, f)
}

// PushResponse 将一个响应帧追加到响应队列尾部 调用方需保证按时间戳单调递增追加
func (s *Stitcher) PushResponse(f *Frame) {
	s.responses = append(s.responses, f)
}

// PendingRequests 返回请求队列当前的长度（包括排在未匹配帧之后、已匹配但尚未压缩掉的帧） 供调用方实施容量策略（见 pcql.go）
func (s *Stitcher) PendingRequests() int {
	return len(s.requests)
}

// DropOldestRequest 丢弃请求队列头部的帧（无论是否已消费） 由调用方在容量超限时触发
func (s *Stitcher) DropOldestRequest() *Frame {
	if len(s.requests) == 0 {
		return nil
	}
	f := s.requests[0]
	s.requests = s.requests[1:]
	return f
}

// ProcessFrames 以 response-led 的方式逐个处理响应队列中的帧
//
// 处理完成后响应队列必为空；请求队列队首不会残留已消费的帧（见 compact）
func (s *Stitcher) ProcessFrames() []Record {
	var records []Record

	for len(s.responses) > 0 {
		resp := s.responses[0]
		s.responses = s.responses[1:]

		if resp.Opcode == OpEvent {
			if rec, ok := s.handleSolitaryEvent(resp); ok {
				records = append(records, rec)
			}
			s.compact()
			continue
		}

		req := s.findUnconsumedRequest(resp.Stream)
		if req == nil {
			logger.Errorf("cql: orphan response stream=%d opcode=%s", resp.Stream, resp.Opcode)
			s.compact()
			continue
		}

		rec, ok := s.handleMatch(req, resp)
		if ok {
			records = append(records, rec)
		}
		req.consumed = true
		s.compact()
	}

	return records
}

// findUnconsumedRequest 从请求队列头部开始线性扫描 返回第一个满足 stream 匹配且
// 未消费的请求 若 stream 因复用而重复 最早出现的（队首方向）那个优先匹配
func (s *Stitcher) findUnconsumedRequest(stream int16) *Frame {
	for _, req := range s.requests {
		if !req.consumed && req.Stream == stream {
			return req
		}
	}
	return nil
}

// compact 从请求队列头部弹出所有已消费的帧 在第一个未消费的帧处短路
//
// 保留原始实现的短路策略而非扫描全队列：这使得均摊复杂度只与未匹配请求数量
// 相关 而不是与历史上出现过的请求总数相关
func (s *Stitcher) compact() {
	i := 0
	for i < len(s.requests) && s.requests[i].consumed {
		i++
	}
	if i > 0 {
		s.requests = s.requests[i:]
	}
}

// handleMatch 解析已匹配的请求/响应帧对 任一侧解码失败都会记录日志并丢弃该条
// Record（帧仍然被消费 不会被重新处理）
func (s *Stitcher) handleMatch(reqFrame, respFrame *Frame) (Record, bool) {
	req, err := decodeRequest(reqFrame)
	if err != nil {
		logger.Errorf("cql: decode request failed stream=%d opcode=%s: %v", reqFrame.Stream, reqFrame.Opcode, err)
		return Record{}, false
	}
	resp, err := decodeResponse(respFrame)
	if err != nil {
		logger.Errorf("cql: decode response failed stream=%d opcode=%s: %v", respFrame.Stream, respFrame.Opcode, err)
		return Record{}, false
	}

	checkInvariants(reqFrame, respFrame)
	return Record{Req: req, Resp: resp}, true
}

// handleSolitaryEvent 处理没有前置请求的 EVENT 响应：合成一个假请求
// (op=Register, msg="-", timestamp=resp.timestamp) 与之配对 不触碰请求队列
func (s *Stitcher) handleSolitaryEvent(respFrame *Frame) (Record, bool) {
	resp, err := decodeResponse(respFrame)
	if err != nil {
		logger.Errorf("cql: decode event failed stream=%d: %v", respFrame.Stream, err)
		return Record{}, false
	}

	req := Request{
		Op:          OpRegister,
		TimestampNS: respFrame.TimestampNS,
		Msg:         "-",
	}
	return Record{Req: req, Resp: resp}, true
}
