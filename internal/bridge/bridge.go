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

// Package bridge sits between the calling model and the providers: it
// discovers tool catalogs, shapes them into function descriptors,
// executes calls, and recovers tool invocations from free-form model
// text.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/mhalligan/toolgate/internal/controller"
	"github.com/mhalligan/toolgate/internal/log"
	"github.com/mhalligan/toolgate/internal/transport"
	"github.com/mhalligan/toolgate/pkg/errors"
)

// ProviderSource is the slice of the controller the bridge needs:
// state lookup, optional start, and transport access. The bridge never
// spawns, stops, or signals processes itself.
type ProviderSource interface {
	State(id string) controller.State
	Start(ctx context.Context, id string) (*controller.Status, error)
	Transport(id string) (transport.Transport, error)
}

const (
	// discoveryTimeout bounds a listTools exchange.
	discoveryTimeout = 5 * time.Second
	// callTimeout bounds a single tool execution.
	callTimeout = 30 * time.Second
)

// FunctionDescriptor is the calling-model-facing shape of one tool.
type FunctionDescriptor struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef carries the tool's name, description, and parameter
// schema.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolError is the structured failure half of a ToolCallResult.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToolCallResult is the uniform outcome of a tool execution. Errors
// never propagate past the bridge; callers always receive one of these.
type ToolCallResult struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ToolError      `json:"error,omitempty"`
}

// Config tunes the bridge's call rate limiting.
type Config struct {
	// CallsPerSecond caps sustained tool executions across all providers.
	CallsPerSecond float64
	// Burst allows short spikes above the sustained rate.
	Burst int
}

// DefaultConfig returns the default rate limit.
func DefaultConfig() Config {
	return Config{CallsPerSecond: 10, Burst: 20}
}

// Bridge executes tool operations through the controller's transports.
// It never spawns or signals processes itself.
type Bridge struct {
	controller ProviderSource
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// New creates a bridge over the controller.
func New(ctrl ProviderSource, cfg Config, logger *slog.Logger) *Bridge {
	return &Bridge{
		controller: ctrl,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), cfg.Burst),
	}
}

// DiscoverTools returns the provider's catalog as function descriptors.
// When autostart is set and the provider is not running, it is started
// first. A provider declaring zero tools is a failure: an empty catalog
// almost always means a misconfigured launch, and reporting it as valid
// would hide that until the first call.
func (b *Bridge) DiscoverTools(ctx context.Context, providerID string, autostart bool) ([]FunctionDescriptor, error) {
	if b.controller.State(providerID) != controller.StateRunning {
		if !autostart {
			return nil, errors.ErrNotRunning(providerID)
		}
		if _, err := b.controller.Start(ctx, providerID); err != nil {
			return nil, err
		}
	}

	tr, err := b.controller.Transport(providerID)
	if err != nil {
		return nil, err
	}

	listCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	tools, err := tr.ListTools(listCtx)
	if err != nil {
		return nil, err
	}
	if len(tools) == 0 {
		return nil, errors.Newf(errors.CodeProtocol, "provider %s declared no tools", providerID)
	}

	descriptors := make([]FunctionDescriptor, len(tools))
	for i, tool := range tools {
		descriptors[i] = FunctionDescriptor{
			Type: "function",
			Function: FunctionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		}
	}

	b.logger.Debug("discovered tools",
		slog.String(log.ProviderKey, providerID),
		slog.Int("count", len(descriptors)))
	return descriptors, nil
}

// ExecuteTool runs one tool call and always returns a structured
// result; transport, protocol, and state errors are folded into the
// result's error half rather than raised.
func (b *Bridge) ExecuteTool(ctx context.Context, providerID, name string, args map[string]any) *ToolCallResult {
	if !b.limiter.Allow() {
		recordRateLimited(providerID)
		return failure(errors.New(errors.CodeValidation, "tool call rate limit exceeded"))
	}

	if b.controller.State(providerID) != controller.StateRunning {
		recordCall(providerID, name, "not_running")
		return failure(errors.ErrNotRunning(providerID))
	}

	tr, err := b.controller.Transport(providerID)
	if err != nil {
		recordCall(providerID, name, "not_running")
		return failure(err)
	}

	began := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	raw, err := tr.CallTool(callCtx, name, args)
	elapsed := time.Since(began)
	callDuration.WithLabelValues(providerID, name).Observe(elapsed.Seconds())

	if err != nil {
		recordCall(providerID, name, "failure")
		b.logger.Warn("tool call failed",
			slog.String(log.ProviderKey, providerID),
			slog.String(log.ToolKey, name),
			slog.String("error", err.Error()),
			slog.Duration(log.DurationKey, elapsed))
		return failure(err)
	}

	recordCall(providerID, name, "success")
	b.logger.Debug("tool call succeeded",
		slog.String(log.ProviderKey, providerID),
		slog.String(log.ToolKey, name),
		slog.Duration(log.DurationKey, elapsed))
	return &ToolCallResult{Success: true, Result: raw}
}

// ExecuteFromText extracts a tool call from free-form model text and
// executes it. The second return is false when the text carries no
// recognizable call, which is not an error: most model output is prose.
func (b *Bridge) ExecuteFromText(ctx context.Context, providerID, content string) (*ToolCallResult, bool) {
	call, ok := ExtractToolCall(content)
	if !ok {
		return nil, false
	}
	return b.ExecuteTool(ctx, providerID, call.Name, call.Arguments), true
}

func failure(err error) *ToolCallResult {
	return &ToolCallResult{
		Success: false,
		Error: &ToolError{
			Code:    string(errors.CodeOf(err)),
			Message: err.Error(),
		},
	}
}
