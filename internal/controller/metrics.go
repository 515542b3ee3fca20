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

package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// providerStarts tracks start attempts by outcome
	providerStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_provider_starts_total",
			Help: "Total provider start attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// providerStops tracks stop operations
	providerStops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_provider_stops_total",
			Help: "Total provider stops by provider and mode (graceful, forced)",
		},
		[]string{"provider", "mode"},
	)

	// providersRunning tracks currently running providers
	providersRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "toolgate_providers_running",
			Help: "Number of providers currently running",
		},
	)

	// startDuration tracks time from spawn to Running
	startDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolgate_provider_start_duration_seconds",
			Help:    "Time from spawn to first successful health probe",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// healthTransitions tracks Running/Unhealthy flips seen by the monitor
	healthTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_provider_health_transitions_total",
			Help: "Health state transitions by provider and new state",
		},
		[]string{"provider", "state"},
	)
)

func recordStart(provider, outcome string) {
	providerStarts.WithLabelValues(provider, outcome).Inc()
}

func recordStop(provider, mode string) {
	providerStops.WithLabelValues(provider, mode).Inc()
}

func recordHealthTransition(provider string, state State) {
	healthTransitions.WithLabelValues(provider, string(state)).Inc()
}
