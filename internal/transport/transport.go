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

// Package transport implements the two provider transports: stdio
// (newline-delimited JSON over a child process's pipes) and SSE
// (JSON-RPC over HTTP POST with responses delivered on a server-sent
// event stream). Both share the rpc.Correlator for matching responses
// to in-flight requests.
package transport

import (
	"context"
	"encoding/json"

	"github.com/mhalligan/toolgate/internal/rpc"
	"github.com/mhalligan/toolgate/pkg/errors"
)

// Kind identifies a transport flavor.
type Kind string

const (
	// KindStdio is the pipe transport for locally spawned providers.
	KindStdio Kind = "stdio"
	// KindSSE is the HTTP/SSE transport for network providers.
	KindSSE Kind = "sse"
)

// Client identity sent during the initialize handshake.
const (
	clientName    = "toolgate"
	clientVersion = "1.0.0"
)

// Transport is a protocol session with one provider. Implementations are
// safe for concurrent use; requests may be issued from multiple
// goroutines and responses are matched by id, not by arrival order.
type Transport interface {
	// Initialize performs the capability handshake. It must succeed
	// before any other request is issued.
	Initialize(ctx context.Context) (*rpc.InitializeResult, error)

	// ListTools returns the provider's declared tool catalog.
	ListTools(ctx context.Context) ([]rpc.Tool, error)

	// CallTool invokes a named tool and returns the raw result payload.
	CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)

	// Shutdown requests an orderly stop: a shutdown request followed by
	// an exit notification. The session is unusable afterwards.
	Shutdown(ctx context.Context) error

	// Close tears the session down without protocol ceremony. All
	// pending requests fail with a transport-closed error.
	Close() error
}

// sender is the transport-specific half of a session: how a request or
// notification reaches the provider. sendRequest may return a response
// directly when the provider answered synchronously (the SSE transport's
// non-202 path); it returns nil when the response will arrive through
// the correlator.
type sender interface {
	sendRequest(ctx context.Context, req *rpc.Request) (*rpc.Response, error)
	sendNotification(ctx context.Context, n *rpc.Notification) error
}

// session implements the protocol operations on top of a sender and a
// correlator. Both transports embed it.
type session struct {
	corr *rpc.Correlator
	send sender
}

func (s *session) call(ctx context.Context, method string, params any) (*rpc.Response, error) {
	id := s.corr.NextID()
	ch, err := s.corr.Register(id)
	if err != nil {
		return nil, err
	}

	sync, err := s.send.sendRequest(ctx, rpc.NewRequest(id, method, params))
	if err != nil {
		s.corr.Evict(id)
		return nil, err
	}
	if sync != nil {
		s.corr.Evict(id)
		return sync, nil
	}
	return s.corr.Wait(ctx, id, ch)
}

func (s *session) Initialize(ctx context.Context) (*rpc.InitializeResult, error) {
	params := rpc.InitializeParams{
		ProtocolVersion: rpc.ProtocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ClientInfo:      rpc.ClientInfo{Name: clientName, Version: clientVersion},
	}

	resp, err := s.call(ctx, rpc.MethodInitialize, params)
	if err != nil {
		return nil, errors.ErrHandshake(err)
	}
	var result rpc.InitializeResult
	if err := rpc.DecodeResult(resp, &result); err != nil {
		return nil, errors.ErrHandshake(err)
	}
	return &result, nil
}

func (s *session) ListTools(ctx context.Context) ([]rpc.Tool, error) {
	resp, err := s.call(ctx, rpc.MethodListTools, struct{}{})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, errors.ErrProtocol(resp.Error.Code, resp.Error.Message)
	}
	var result rpc.ListToolsResult
	if err := rpc.DecodeResult(resp, &result); err != nil {
		return nil, errors.Wrap(err, errors.CodeProtocol, "listTools")
	}
	return result.Tools, nil
}

func (s *session) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	resp, err := s.call(ctx, rpc.MethodCallTool, rpc.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, errors.ErrProtocol(resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

func (s *session) Shutdown(ctx context.Context) error {
	if _, err := s.call(ctx, rpc.MethodShutdown, struct{}{}); err != nil {
		return err
	}
	return s.send.sendNotification(ctx, rpc.NewNotification(rpc.MethodExit, struct{}{}))
}
