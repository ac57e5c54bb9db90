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

package roundtripstometrics

import (
	"github.com/packetd/packetd/common/socket"
	"github.com/packetd/packetd/internal/labels"
	"github.com/packetd/packetd/internal/metricstorage"
	"github.com/packetd/packetd/protocol/pcql"
)

func init() {
	register(socket.L7ProtoCQL, newCQLConverter)
}

type cqlConverter struct {
	config CommonConfig
}

func newCQLConverter(config Config) converter {
	return &cqlConverter{
		config: config.CQL,
	}
}

func (c *cqlConverter) Proto() socket.L7Proto {
	return socket.L7ProtoCQL
}

func (c *cqlConverter) matchLabels(rt *pcql.RoundTrip) labels.Labels {
	lbs := matchCommonLabels(c.config.RequireLabels, rt.ClientHost, rt.ServerHost, rt.ClientPort, rt.ServerPort)
	for _, label := range c.config.RequireLabels {
		switch label {
		case "request.opcode":
			lbs = append(lbs, labels.Label{Name: "opcode", Value: rt.Req.Op.String()})
		case "response.opcode":
			lbs = append(lbs, labels.Label{Name: "response_opcode", Value: rt.Resp.Op.String()})
		}
	}
	return lbs
}

var cqlCommMetrics = commonMetrics{
	requestTotal:           "cql_request_total",
	requestDurationSeconds: "cql_request_duration_seconds",
	requestBodySizeBytes:   "cql_request_body_size_bytes",
	responseBodySizeBytes:  "cql_response_body_size_bytes",
}

func (c *cqlConverter) Convert(rt socket.RoundTrip) []metricstorage.ConstMetric {
	prt := rt.(*pcql.RoundTrip)

	lbs := c.matchLabels(prt)
	metrics := generateCommonMetrics(cqlCommMetrics, lbs, rt.Duration().Seconds(), len(prt.Req.Msg), len(prt.Resp.Msg))

	if prt.Resp.Op == pcql.OpError {
		metrics = append(metrics, metricstorage.ConstMetric{
			Name:   "cql_response_error_total",
			Model:  metricstorage.ModelCounter,
			Labels: lbs,
			Value:  1,
		})
	}

	return metrics
}
