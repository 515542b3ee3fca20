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

// Package rpc implements the JSON-RPC 2.0 message model used by the
// provider capability protocol, and the correlator that matches
// asynchronous responses back to the callers awaiting them.
package rpc

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC version carried by every message.
const Version = "2.0"

// Protocol methods recognized by the capability protocol.
const (
	MethodInitialize = "initialize"
	MethodListTools  = "listTools"
	MethodCallTool   = "callTool"
	MethodShutdown   = "shutdown"
	MethodExit       = "exit"
)

// ProtocolVersion is the capability protocol revision sent during the
// initialize handshake.
const ProtocolVersion = "2024-11-05"

// Request is an outbound JSON-RPC request expecting a response.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

// Notification is an outbound JSON-RPC message with no id and no reply.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an inbound JSON-RPC message. Exactly one of Result or Error
// is set on a well-formed response. Messages carrying a Method and no ID
// are notifications from the provider.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
}

// Error is a protocol-level error object carried in a response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsResponse reports whether the message correlates to a pending request.
func (r *Response) IsResponse() bool {
	return r.ID != nil
}

// IsNotification reports whether the message is a provider notification.
func (r *Response) IsNotification() bool {
	return r.ID == nil && r.Method != ""
}

// NewRequest builds a request for the given method, params, and id.
func NewRequest(id int64, method string, params any) *Request {
	return &Request{JSONRPC: Version, Method: method, Params: params, ID: id}
}

// NewNotification builds a notification for the given method and params.
func NewNotification(method string, params any) *Notification {
	return &Notification{JSONRPC: Version, Method: method, Params: params}
}

// InitializeParams are the params of the initialize request.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

// ClientInfo identifies the caller during the handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of the initialize request.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ServerInfo is the remote's self-declared identity.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// CallToolParams are the params of a callTool request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ListToolsResult is the result of a listTools request.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// Tool is a provider-declared tool descriptor.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// DecodeResult unmarshals a response result into v, surfacing protocol
// errors and malformed payloads distinctly.
func DecodeResult(resp *Response, v any) error {
	if resp.Error != nil {
		return resp.Error
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("response %v has no result", resp.ID)
	}
	if err := json.Unmarshal(resp.Result, v); err != nil {
		return fmt.Errorf("malformed result: %w", err)
	}
	return nil
}
