// Copyright 2026 Mark Halligan
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// toolCalls tracks executions by provider, tool, and outcome
	toolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_tool_calls_total",
			Help: "Total tool calls by provider, tool, and outcome",
		},
		[]string{"provider", "tool", "outcome"},
	)

	// callDuration tracks tool execution latency
	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolgate_tool_call_duration_seconds",
			Help:    "Tool call latency by provider and tool",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "tool"},
	)

	// rateLimitedCalls tracks calls rejected by the rate limiter
	rateLimitedCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_tool_calls_rate_limited_total",
			Help: "Tool calls rejected by the rate limiter, by provider",
		},
		[]string{"provider"},
	)
)

func recordCall(provider, tool, outcome string) {
	toolCalls.WithLabelValues(provider, tool, outcome).Inc()
}

func recordRateLimited(provider string) {
	rateLimitedCalls.WithLabelValues(provider).Inc()
}
