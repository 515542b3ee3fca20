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

package rpc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mhalligan/toolgate/pkg/errors"
)

// Correlator maps outbound request ids to the callers awaiting their
// responses. Both transports share one correlator instance per
// connection: the sender registers a pending entry before writing the
// request, and the transport's reader resolves the entry when a message
// with a matching id arrives.
//
// Ids are allocated from an atomic counter, so they are unique for the
// lifetime of the transport and monotonically increasing; an id is never
// reused while another request is in flight.
type Correlator struct {
	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[int64]chan *Response
	closed  bool
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[int64]chan *Response)}
}

// NextID allocates the next request id.
func (c *Correlator) NextID() int64 {
	return c.nextID.Add(1)
}

// Register creates a pending entry for id and returns the channel the
// caller should wait on. The channel has capacity 1 so resolution never
// blocks the reader. Registering an id that is already pending is an
// invariant violation and returns an INTERNAL error.
func (c *Correlator) Register(id int64) (<-chan *Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.ErrTransportClosed()
	}
	if _, exists := c.pending[id]; exists {
		return nil, errors.Newf(errors.CodeInternal, "request id %d already pending", id)
	}

	ch := make(chan *Response, 1)
	c.pending[id] = ch
	return ch, nil
}

// Resolve delivers a response to the caller registered for its id.
// It reports false when no caller is waiting, which the transports log
// as a stray response.
func (c *Correlator) Resolve(resp *Response) bool {
	if resp == nil || resp.ID == nil {
		return false
	}

	c.mu.Lock()
	ch, ok := c.pending[*resp.ID]
	if ok {
		delete(c.pending, *resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	ch <- resp
	return true
}

// Evict removes the pending entry for id without resolving it. Used when
// a request times out or fails to send; the caller stops waiting on the
// channel, so a late response for the id is dropped as stray.
func (c *Correlator) Evict(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close fails every outstanding entry with a transport-closed error and
// rejects further registrations. Safe to call more than once.
func (c *Correlator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	for id, ch := range c.pending {
		idCopy := id
		ch <- &Response{JSONRPC: Version, ID: &idCopy, Error: &Error{
			Code:    -32000,
			Message: "transport closed",
		}}
		delete(c.pending, id)
	}
}

// PendingCount returns the number of requests currently awaiting a
// response.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Wait blocks until the channel yields a response, the deadline passes,
// or ctx is cancelled. On timeout or cancellation the entry is evicted so
// the id cannot resolve a future caller's wait.
func (c *Correlator) Wait(ctx context.Context, id int64, ch <-chan *Response) (*Response, error) {
	select {
	case resp := <-ch:
		if resp.Error != nil && resp.Error.Code == -32000 && resp.Error.Message == "transport closed" {
			return nil, errors.ErrTransportClosed()
		}
		return resp, nil
	case <-ctx.Done():
		c.Evict(id)
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.ErrRequestTimeout(id)
		}
		return nil, errors.Wrap(ctx.Err(), errors.CodeTransport, "request cancelled")
	}
}
