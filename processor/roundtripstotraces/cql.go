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
	"time"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/packetd/packetd/common/socket"
	"github.com/packetd/packetd/protocol/pcql"
)

func init() {
	register(socket.L7ProtoCQL, newCQLConverter())
}

type cqlConverter struct{}

func newCQLConverter() converter {
	return &cqlConverter{}
}

func (c *cqlConverter) Proto() socket.L7Proto {
	return socket.L7ProtoCQL
}

func (c *cqlConverter) Convert(rt socket.RoundTrip) ptrace.Span {
	prt := rt.(*pcql.RoundTrip)
	req, rsp := prt.Req, prt.Resp

	span := ptrace.NewSpan()
	span.SetName(req.Op.String())
	span.SetTraceID(randomTraceID())
	span.SetSpanID(randomSpanID())
	span.SetStartTimestamp(pcommon.NewTimestampFromTime(time.Unix(0, req.TimestampNS)))
	span.SetEndTimestamp(pcommon.NewTimestampFromTime(time.Unix(0, rsp.TimestampNS)))

	attr := span.Attributes()
	attr.PutStr("db.system.name", "cassandra")
	attr.PutStr("db.query.text", req.Msg)
	attr.PutStr("db.operation.name", req.Op.String())
	attr.PutInt("db.request.size", int64(len(req.Msg)))
	attr.PutInt("db.response.size", int64(len(rsp.Msg)))

	attr.PutStr("server.address", prt.ServerHost)
	attr.PutInt("server.port", int64(prt.ServerPort))
	attr.PutStr("network.peer.address", prt.ClientHost)
	attr.PutInt("network.peer.port", int64(prt.ClientPort))

	if rsp.Op == pcql.OpError {
		attr.PutStr("error.type", rsp.Msg)
	}

	return span
}
