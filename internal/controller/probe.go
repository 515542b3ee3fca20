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
	"context"
	"net/http"
	"time"

	"github.com/mhalligan/toolgate/pkg/errors"
	"github.com/mhalligan/toolgate/pkg/httpclient"
)

const (
	// probeInterval spaces readiness probes during startup.
	probeInterval = 1 * time.Second
	// probeWindow bounds how long a provider may take to become ready.
	probeWindow = 30 * time.Second
	// probeRequestTimeout bounds a single health request.
	probeRequestTimeout = 2 * time.Second
	// monitorInterval spaces the ongoing per-instance health checks once
	// a provider is Running.
	monitorInterval = 5 * time.Second
)

// prober issues HTTP health checks against a provider's base URL.
type prober struct {
	client *http.Client
}

func newProber() (*prober, error) {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = probeRequestTimeout
	cfg.RetryAttempts = 0 // the probe loop is its own retry policy
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, err
	}
	return &prober{client: client}, nil
}

// healthy performs one probe against {baseURL}/health.
func (p *prober) healthy(ctx context.Context, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// waitReady probes until the provider answers, the window elapses, or
// alive reports the process gone. alive may be nil for network
// providers.
func (p *prober) waitReady(ctx context.Context, baseURL string, alive func() bool) error {
	deadline := time.Now().Add(probeWindow)
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		if p.healthy(ctx, baseURL) {
			return nil
		}
		if alive != nil && !alive() {
			return errors.New(errors.CodeLaunch, "provider process exited during startup")
		}
		if time.Now().After(deadline) {
			return errors.ErrProbeTimeout(probeWindow)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.CodeProbeTimeout, "startup probe cancelled")
		case <-ticker.C:
		}
	}
}
