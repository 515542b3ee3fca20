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

package httpclient

import (
	"io"
	"net/http"
	"time"
)

// retryTransport retries idempotent requests with exponential backoff.
// Non-idempotent methods (notably the JSON-RPC POSTs) pass through
// untouched: request identity belongs to the protocol layer, and a blind
// resend would duplicate a call the server may already have handled.
type retryTransport struct {
	base     http.RoundTripper
	attempts int
	backoff  time.Duration
	max      time.Duration
}

func newRetryTransport(base http.RoundTripper, cfg Config) *retryTransport {
	return &retryTransport{
		base:     base,
		attempts: cfg.RetryAttempts,
		backoff:  cfg.RetryBackoff,
		max:      cfg.MaxBackoff,
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isIdempotent(req.Method) {
		return t.base.RoundTrip(req)
	}

	var (
		resp *http.Response
		err  error
	)
	wait := t.backoff
	for attempt := 0; attempt <= t.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(wait):
			}
			wait *= 2
			if wait > t.max {
				wait = t.max
			}
		}

		resp, err = t.base.RoundTrip(req)
		if err != nil {
			continue
		}
		if !isRetryableStatus(resp.StatusCode) || attempt == t.attempts {
			return resp, nil
		}
		// Drain so the pooled connection can be reused.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}
