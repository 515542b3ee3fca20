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

package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mhalligan/toolgate/internal/rpc"
	"github.com/mhalligan/toolgate/pkg/errors"
	"github.com/mhalligan/toolgate/pkg/httpclient"
)

// reconnectDelay is how long the event listener waits before reopening a
// dropped stream.
const reconnectDelay = 5 * time.Second

// SSE is the HTTP transport for network providers. Requests go out as
// POSTs to {base}/jsonrpc; a 202 means the response will arrive on the
// event stream at {base}/sse/{clientID}, any other status carries the
// response synchronously in the POST body.
type SSE struct {
	session

	baseURL  string
	apiKey   string
	clientID string

	client    *http.Client // POST requests
	streaming *http.Client // long-lived event stream

	logger *slog.Logger

	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// NewSSE creates an SSE transport against baseURL and starts the event
// listener. apiKey, when non-empty, is sent as a bearer token on every
// request.
func NewSSE(baseURL, apiKey string, logger *slog.Logger) (*SSE, error) {
	client, err := httpclient.New(httpclient.DefaultConfig())
	if err != nil {
		return nil, err
	}
	streaming, err := httpclient.NewStreaming(httpclient.DefaultConfig())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &SSE{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		clientID:  uuid.NewString(),
		client:    client,
		streaming: streaming,
		logger:    logger,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	t.session.corr = rpc.NewCorrelator()
	t.session.send = t

	go t.listen(ctx)
	return t, nil
}

func (t *SSE) sendRequest(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	body, status, err := t.post(ctx, req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusAccepted {
		return nil, nil // response arrives on the event stream
	}

	var resp rpc.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Newf(errors.CodeTransport,
			"provider returned status %d with non-JSON body", status)
	}
	return &resp, nil
}

func (t *SSE) sendNotification(ctx context.Context, n *rpc.Notification) error {
	_, status, err := t.post(ctx, n)
	if err != nil {
		return err
	}
	if status != http.StatusAccepted {
		t.logger.Warn("unexpected status for notification", slog.Int("status", status))
	}
	return nil
}

func (t *SSE) post(ctx context.Context, msg any) ([]byte, int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeInternal, "marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/jsonrpc", bytes.NewReader(data))
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeTransport, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", t.clientID)
	t.authorize(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeTransport, "send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeTransport, "read response body")
	}
	return body, resp.StatusCode, nil
}

func (t *SSE) authorize(req *http.Request) {
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
}

// listen maintains the event stream, reconnecting after a delay whenever
// it drops. It exits only when the transport is closed.
func (t *SSE) listen(ctx context.Context) {
	defer func() {
		t.corr.Close()
		close(t.done)
	}()

	for {
		if err := t.consumeStream(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warn("event stream dropped, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("delay", reconnectDelay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// consumeStream opens the event stream and dispatches data lines until
// the connection ends.
func (t *SSE) consumeStream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/sse/%s", t.baseURL, t.clientID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	t.authorize(req)

	resp, err := t.streaming.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		t.dispatch(data)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (t *SSE) dispatch(data string) {
	var resp rpc.Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		t.logger.Warn("discarding malformed event payload",
			slog.String("error", err.Error()))
		return
	}

	switch {
	case resp.IsResponse():
		if !t.corr.Resolve(&resp) {
			t.logger.Debug("stray response", slog.Int64("id", *resp.ID))
		}
	case resp.IsNotification():
		t.logger.Debug("provider notification", slog.String("method", resp.Method))
	}
}

// Close stops the event listener and fails all pending requests.
func (t *SSE) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		t.corr.Close()
	})
	return nil
}

// Done is closed when the event listener has exited.
func (t *SSE) Done() <-chan struct{} {
	return t.done
}
