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

// Package pcql 实现了 CQL (Cassandra Query Language) 原生协议的请求/响应缝合
//
// 核心部分（cursor/composite/request/response/Stitcher）只消费由 frameDecoder
// 组装好的 *Frame 帧 不关心这些帧来自 TCP 还是其他传输；它用到的 packetd 组件
// 只有 internal/json（渲染 Msg）和 logger（记录孤立响应与解码失败）。本文件负责剩下的"胶水"部分——把帧组装、连接池管理、
// 以及 socket.RoundTrip 适配按照 pmysql/ppostgresql 已经建立的方式接入 packetd
package pcql

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/packetd/packetd/common"
	"github.com/packetd/packetd/common/socket"
	"github.com/packetd/packetd/connstream"
	"github.com/packetd/packetd/internal/zerocopy"
	"github.com/packetd/packetd/logger"
	"github.com/packetd/packetd/protocol"
)

func init() {
	protocol.Register(socket.L7ProtoCQL, NewConnPool)
}

// NewConnPool 创建 CQL 协议连接池
//
// 与 pmysql 一致地遵循 `NewConnPool(opts common.Options) protocol.ConnPool` 签名
// 约定；Stitcher 本身不需要任何配置 maxPendingRequests 是 ConnPool 层面加的容量兜底
func NewConnPool(opts common.Options) protocol.ConnPool {
	maxPending := defaultMaxPendingRequests
	if v, err := opts.GetInt(OptMaxPendingRequests); err == nil && v > 0 {
		maxPending = v
	}

	maxBodyLength := defaultMaxBodyLength
	if v, err := opts.GetInt(OptMaxBodyLength); err == nil && v > 0 {
		maxBodyLength = v
	}

	if v, err := opts.GetInt(OptMaxValueHexLength); err == nil && v > 0 {
		SetMaxValueHexLength(v)
	}

	return protocol.NewConnPool(
		socket.L4ProtoTCP,
		func(st socket.Tuple, serverPort socket.Port) protocol.Conn {
			return newCQLConn(st, serverPort, maxPending, maxBodyLength)
		},
		socket.NewTTLCache(socket.TCPMsl*2),
	)
}

// RoundTrip CQL 单次请求来回
//
// 核心的 Request/Response 只携带 op/timestamp/msg 这几个最基本的字段
// 传输层的 Host/Port 元数据放在 RoundTrip 本身，供 metrics/traces 转换器按需取用
//
// 实现了 socket.RoundTrip 接口
type RoundTrip struct {
	Req  Request
	Resp Response

	ClientHost string
	ClientPort uint16
	ServerHost string
	ServerPort uint16
}

var _ socket.RoundTrip = (*RoundTrip)(nil)

func (rt *RoundTrip) Proto() socket.L7Proto {
	return socket.L7ProtoCQL
}

func (rt *RoundTrip) Request() any {
	return &rt.Req
}

func (rt *RoundTrip) Response() any {
	return &rt.Resp
}

func (rt *RoundTrip) Duration() time.Duration {
	return time.Duration(rt.Resp.TimestampNS - rt.Req.TimestampNS)
}

func (rt *RoundTrip) Validate() bool {
	return rt.Resp.TimestampNS >= rt.Req.TimestampNS
}

// frameHeaderLength CQL v4 协议头固定长度：version(1)+flags(1)+stream(2)+opcode(1)+length(4)
const frameHeaderLength = 9

type frameParseState uint8

const (
	frameStateHeader frameParseState = iota
	frameStateBody
)

type frameHeader struct {
	version byte
	flags   byte
	stream  int16
	opcode  Opcode
	length  int32
}

// frameDecoder 在一条方向固定的字节流上持续组装 CQL 帧
//
// 与 ppostgresql 的 decoder 一样要求具备容错和自恢复能力：出现结构性错误时丢弃
// 当前已经缓冲的字节并回到 header 解析状态 而不是让上层连接整体失效
type frameDecoder struct {
	st    socket.TupleRaw
	buf   []byte
	state frameParseState
	hdr   frameHeader

	maxBodyLength int
}

func newFrameDecoder(st socket.Tuple, maxBodyLength int) *frameDecoder {
	return &frameDecoder{
		st:            st.ToRaw(),
		maxBodyLength: maxBodyLength,
	}
}

// reset 丢弃已缓冲但未能组成完整帧的字节 回到初始状态
func (d *frameDecoder) reset() {
	d.buf = nil
	d.state = frameStateHeader
	d.hdr = frameHeader{}
}

// decodeFrameHeader 解析单个 header，不足 frameHeaderLength 字节时返回 errDecodeHeader
// body 长度为负时返回 ErrInvalidEncoding
func decodeFrameHeader(b []byte) (frameHeader, error) {
	if len(b) < frameHeaderLength {
		return frameHeader{}, errDecodeHeader
	}
	length := int32(uint32(b[5])<<24 | uint32(b[6])<<16 | uint32(b[7])<<8 | uint32(b[8]))
	if length < 0 {
		return frameHeader{}, ErrInvalidEncoding
	}
	return frameHeader{
		version: b[0],
		flags:   b[1],
		stream:  int16(uint16(b[2])<<8 | uint16(b[3])),
		opcode:  Opcode(b[4]),
		length:  length,
	}, nil
}

// Decode 从 zerocopy.Reader 读取本次到达的字节 尽可能多地组装出完整帧
//
// 每次调用只对 r 执行一次 Read 把读到的内容追加到内部累积缓冲区后
// 反复尝试切出 [header][body] 完整的帧；跨越多次调用的半个 header
// 或半个 body 会保留在 buf 中，等待下一次 Decode 补全
func (d *frameDecoder) Decode(r zerocopy.Reader, t time.Time) ([]*Frame, error) {
	b, err := r.Read(common.ReadWriteBlockSize)
	if err != nil {
		return nil, nil
	}
	d.buf = append(d.buf, b...)

	var frames []*Frame
	for {
		if d.state == frameStateHeader {
			if len(d.buf) < frameHeaderLength {
				break
			}
			hdr, err := decodeFrameHeader(d.buf[:frameHeaderLength])
			if err != nil {
				d.reset()
				return nil, err
			}
			if d.maxBodyLength > 0 && int(hdr.length) > d.maxBodyLength {
				d.reset()
				return nil, ErrInvalidEncoding
			}
			d.hdr = hdr
			d.buf = d.buf[frameHeaderLength:]
			d.state = frameStateBody
		}

		if len(d.buf) < int(d.hdr.length) {
			break
		}

		body := make([]byte, d.hdr.length)
		copy(body, d.buf[:d.hdr.length])
		d.buf = d.buf[d.hdr.length:]

		frames = append(frames, &Frame{
			Version:     d.hdr.version,
			Flags:       d.hdr.flags,
			Stream:      d.hdr.stream,
			Opcode:      d.hdr.opcode,
			BodyLength:  d.hdr.length,
			Body:        body,
			TimestampNS: t.UnixNano(),
		})
		d.state = frameStateHeader
	}
	return frames, nil
}

// tupleStream 把一个 socket.Tuple 和为它分配的 frameDecoder 绑定在一起
//
// 与 protocol.L7TCPConn.l/r 的做法一致：用两个具名字段而不是 map 来标识一条
// 连接的两个方向 在只有两个元素时比哈希表更高效
type tupleStream struct {
	st socket.Tuple
	fd *frameDecoder
}

// cqlConn 是 CQL 协议的 protocol.Conn 实现
//
// 与其它协议复用 protocol.L7TCPConn + role.Matcher 不同 CQL 的缝合算法
// （response-led 扫描、consumed 标记、头部压缩、stream 复用的最早匹配策略）
// 足够特殊 因此这里直接实现 protocol.Conn 而不是套用通用的 role.Matcher
type cqlConn struct {
	mut           sync.Mutex
	conn          *connstream.Conn
	serverPort    socket.Port
	stitcher      *Stitcher
	maxPending    int
	maxBodyLength int

	l, r *tupleStream
	once sync.Once
}

func newCQLConn(st socket.Tuple, serverPort socket.Port, maxPending, maxBodyLength int) *cqlConn {
	return &cqlConn{
		conn:          connstream.NewConn(st, connstream.NewTCPStream),
		serverPort:    serverPort,
		stitcher:      NewStitcher(),
		maxPending:    maxPending,
		maxBodyLength: maxBodyLength,
	}
}

// isClient 判断 st 一侧是否为请求发起方（客户端 -> 服务端）
func (c *cqlConn) isClient(st socket.Tuple) bool {
	return uint16(c.serverPort) == uint16(st.DstPort)
}

// getFrameDecoder 按 l->r 的顺序匹配已存在的 frameDecoder 没有则按需创建
func (c *cqlConn) getFrameDecoder(st socket.Tuple) *frameDecoder {
	if c.l != nil && c.l.st == st {
		return c.l.fd
	}
	if c.r != nil && c.r.st == st {
		return c.r.fd
	}

	fd := newFrameDecoder(st, c.maxBodyLength)
	ts := &tupleStream{st: st, fd: fd}
	if c.l == nil {
		c.l = ts
	} else {
		c.r = ts
	}
	return fd
}

// OnL4Packet 处理一个 Layer4 数据包：组装帧、推入 Stitcher 对应队列、执行一次
// ProcessFrames，并把产出的 Record 转换为 socket.RoundTrip 写入 ch
func (c *cqlConn) OnL4Packet(pkt socket.L4Packet, ch chan<- socket.RoundTrip) error {
	c.mut.Lock()
	defer c.mut.Unlock()

	st := pkt.SocketTuple()
	fd := c.getFrameDecoder(st)
	isClient := c.isClient(st)

	err := c.conn.Write(pkt, func(r zerocopy.Reader) {
		frames, err := fd.Decode(r, pkt.ArrivedTime())
		if err != nil {
			logger.Warnf("cql: decode frame failed tuple=%s: %v", st, err)
			return
		}

		for _, f := range frames {
			if isClient {
				c.stitcher.PushRequest(f)
				c.enforceCapacityLocked()
			} else {
				c.stitcher.PushResponse(f)
			}
		}
		if len(frames) == 0 {
			return
		}

		for _, rec := range c.stitcher.ProcessFrames() {
			ch <- c.buildRoundTrip(rec)
		}
	})

	if errors.Is(err, connstream.ErrClosed) {
		return protocol.ErrConnClosed
	}
	return err
}

// enforceCapacityLocked 在请求队列超过 maxPending 时淘汰队首最旧的未消费请求
//
// Stitcher 本身不对未匹配请求做任何老化处理（核心语义保持与原始实现一致）
// 容量兜底是 ConnPool 层面加的调用方策略 不是 Stitcher 的职责
func (c *cqlConn) enforceCapacityLocked() {
	for c.maxPending > 0 && c.stitcher.PendingRequests() > c.maxPending {
		dropped := c.stitcher.DropOldestRequest()
		if dropped == nil {
			return
		}
		logger.Warnf("cql: request queue exceeded %d pending entries, dropping oldest stream=%d", c.maxPending, dropped.Stream)
	}
}

// buildRoundTrip 将匹配出的 Record 和连接的 Tuple 信息装配成一次 RoundTrip
func (c *cqlConn) buildRoundTrip(rec Record) socket.RoundTrip {
	rt := &RoundTrip{Req: rec.Req, Resp: rec.Resp}

	if c.r != nil {
		if c.isClient(c.r.st) {
			rt.ClientHost, rt.ClientPort = c.r.st.SrcIP.String(), uint16(c.r.st.SrcPort)
			rt.ServerHost, rt.ServerPort = c.r.st.DstIP.String(), uint16(c.r.st.DstPort)
		} else {
			rt.ClientHost, rt.ClientPort = c.r.st.DstIP.String(), uint16(c.r.st.DstPort)
			rt.ServerHost, rt.ServerPort = c.r.st.SrcIP.String(), uint16(c.r.st.SrcPort)
		}
	}
	if c.l != nil {
		if c.isClient(c.l.st) {
			rt.ClientHost, rt.ClientPort = c.l.st.SrcIP.String(), uint16(c.l.st.SrcPort)
			rt.ServerHost, rt.ServerPort = c.l.st.DstIP.String(), uint16(c.l.st.DstPort)
		} else {
			rt.ClientHost, rt.ClientPort = c.l.st.DstIP.String(), uint16(c.l.st.DstPort)
			rt.ServerHost, rt.ServerPort = c.l.st.SrcIP.String(), uint16(c.l.st.SrcPort)
		}
	}
	return rt
}

// Free 释放链接相关资源
func (c *cqlConn) Free() {
	c.once.Do(func() {
		c.l = nil
		c.r = nil
	})
}

// Stats 返回 Conn 统计数据
func (c *cqlConn) Stats() []connstream.TupleStats {
	return c.conn.Stats()
}

// IsClosed 返回链接是否关闭
func (c *cqlConn) IsClosed() bool {
	return c.conn.IsClosed()
}

// ActiveAt 返回链接最后活跃时间 与 protocol.L7TCPConn.ActiveAt 一致地委托给 connstream.Conn
func (c *cqlConn) ActiveAt() time.Time {
	return c.conn.ActiveAt()
}
