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
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhalligan/toolgate/internal/controller"
	"github.com/mhalligan/toolgate/internal/rpc"
	"github.com/mhalligan/toolgate/internal/transport"
	"github.com/mhalligan/toolgate/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport scripts transport behavior without pipes or sockets.
type fakeTransport struct {
	tools      []rpc.Tool
	listErr    error
	callResult json.RawMessage
	callErr    error

	calledName string
	calledArgs map[string]any
	callCount  int
}

func (f *fakeTransport) Initialize(ctx context.Context) (*rpc.InitializeResult, error) {
	return &rpc.InitializeResult{}, nil
}

func (f *fakeTransport) ListTools(ctx context.Context) ([]rpc.Tool, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

func (f *fakeTransport) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	f.callCount++
	f.calledName = name
	f.calledArgs = args
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.callResult, nil
}

func (f *fakeTransport) Shutdown(ctx context.Context) error { return nil }
func (f *fakeTransport) Close() error                       { return nil }

// fakeSource scripts the controller's provider lookup.
type fakeSource struct {
	state     controller.State
	transport transport.Transport
	startErr  error
	started   bool
}

func (f *fakeSource) State(id string) controller.State {
	return f.state
}

func (f *fakeSource) Start(ctx context.Context, id string) (*controller.Status, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = true
	f.state = controller.StateRunning
	return &controller.Status{ID: id, State: controller.StateRunning}, nil
}

func (f *fakeSource) Transport(id string) (transport.Transport, error) {
	if f.state != controller.StateRunning && f.state != controller.StateUnhealthy {
		return nil, errors.ErrNotRunning(id)
	}
	return f.transport, nil
}

func runningSource(tr transport.Transport) *fakeSource {
	return &fakeSource{state: controller.StateRunning, transport: tr}
}

func TestDiscoverTools(t *testing.T) {
	schema, _ := json.Marshal(map[string]any{"type": "object"})
	src := runningSource(&fakeTransport{tools: []rpc.Tool{
		{Name: "search", Description: "Full-text search", InputSchema: schema},
		{Name: "fetch", Description: "Fetch a URL"},
	}})
	b := New(src, DefaultConfig(), testLogger())

	descriptors, err := b.DiscoverTools(context.Background(), "mcp-11111111", false)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	assert.Equal(t, "function", descriptors[0].Type)
	assert.Equal(t, "search", descriptors[0].Function.Name)
	assert.JSONEq(t, string(schema), string(descriptors[0].Function.Parameters))
}

func TestDiscoverToolsEmptyCatalogIsFailure(t *testing.T) {
	src := runningSource(&fakeTransport{tools: nil})
	b := New(src, DefaultConfig(), testLogger())

	_, err := b.DiscoverTools(context.Background(), "mcp-11111111", false)
	require.Error(t, err)
	assert.Equal(t, errors.CodeProtocol, errors.CodeOf(err))
}

func TestDiscoverToolsNotRunning(t *testing.T) {
	src := &fakeSource{state: controller.StateStopped}
	b := New(src, DefaultConfig(), testLogger())

	_, err := b.DiscoverTools(context.Background(), "mcp-11111111", false)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotRunning, errors.CodeOf(err))
	assert.False(t, src.started, "autostart disabled must not start the provider")
}

func TestDiscoverToolsAutostart(t *testing.T) {
	src := &fakeSource{
		state:     controller.StateStopped,
		transport: &fakeTransport{tools: []rpc.Tool{{Name: "echo"}}},
	}
	b := New(src, DefaultConfig(), testLogger())

	descriptors, err := b.DiscoverTools(context.Background(), "mcp-11111111", true)
	require.NoError(t, err)
	assert.True(t, src.started)
	assert.Len(t, descriptors, 1)
}

func TestExecuteToolSuccess(t *testing.T) {
	result, _ := json.Marshal(map[string]string{"text": "hi"})
	ft := &fakeTransport{callResult: result}
	b := New(runningSource(ft), DefaultConfig(), testLogger())

	res := b.ExecuteTool(context.Background(), "mcp-11111111", "echo", map[string]any{"text": "hi"})
	require.True(t, res.Success)
	assert.Nil(t, res.Error)
	assert.JSONEq(t, string(result), string(res.Result))
	assert.Equal(t, "echo", ft.calledName)
	assert.Equal(t, map[string]any{"text": "hi"}, ft.calledArgs)
}

func TestExecuteToolNotRunningDoesNoIO(t *testing.T) {
	ft := &fakeTransport{}
	src := &fakeSource{state: controller.StateStopped, transport: ft}
	b := New(src, DefaultConfig(), testLogger())

	res := b.ExecuteTool(context.Background(), "mcp-11111111", "echo", nil)
	require.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, string(errors.CodeNotRunning), res.Error.Code)
	assert.Zero(t, ft.callCount, "no transport call may happen for a stopped provider")
}

func TestExecuteToolProtocolErrorPreserved(t *testing.T) {
	ft := &fakeTransport{callErr: errors.ErrProtocol(-32601, "unknown tool")}
	b := New(runningSource(ft), DefaultConfig(), testLogger())

	res := b.ExecuteTool(context.Background(), "mcp-11111111", "missing", nil)
	require.False(t, res.Success)
	assert.Equal(t, string(errors.CodeProtocol), res.Error.Code)
	assert.Contains(t, res.Error.Message, "unknown tool")
}

func TestExecuteToolNeverPanicsOrRaises(t *testing.T) {
	ft := &fakeTransport{callErr: errors.ErrTransportClosed()}
	b := New(runningSource(ft), DefaultConfig(), testLogger())

	res := b.ExecuteTool(context.Background(), "mcp-11111111", "echo", nil)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, string(errors.CodeTransport), res.Error.Code)
}

func TestExecuteToolRateLimited(t *testing.T) {
	ft := &fakeTransport{callResult: json.RawMessage(`{}`)}
	b := New(runningSource(ft), Config{CallsPerSecond: 1, Burst: 1}, testLogger())

	first := b.ExecuteTool(context.Background(), "mcp-11111111", "echo", nil)
	require.True(t, first.Success)

	second := b.ExecuteTool(context.Background(), "mcp-11111111", "echo", nil)
	require.False(t, second.Success)
	assert.Contains(t, second.Error.Message, "rate limit")
	assert.Equal(t, 1, ft.callCount)
}

func TestExecuteFromText(t *testing.T) {
	result, _ := json.Marshal(map[string]string{"ok": "yes"})
	ft := &fakeTransport{callResult: result}
	b := New(runningSource(ft), DefaultConfig(), testLogger())

	content := "Let me check.\n```json\n{\"action\": \"search\", \"params\": {\"query\": \"go\"}}\n```"
	res, ok := b.ExecuteFromText(context.Background(), "mcp-11111111", content)
	require.True(t, ok)
	require.True(t, res.Success)
	assert.Equal(t, "search", ft.calledName)
	assert.Equal(t, map[string]any{"query": "go"}, ft.calledArgs)
}

func TestExecuteFromTextNoCall(t *testing.T) {
	ft := &fakeTransport{}
	b := New(runningSource(ft), DefaultConfig(), testLogger())

	res, ok := b.ExecuteFromText(context.Background(), "mcp-11111111", "Just prose.")
	assert.False(t, ok)
	assert.Nil(t, res)
	assert.Zero(t, ft.callCount)
}
