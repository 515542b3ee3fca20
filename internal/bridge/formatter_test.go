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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToolCallFencedActionShape(t *testing.T) {
	content := "I'll search for that.\n```json\n{\"action\": \"search\", \"params\": {\"query\": \"golang\"}}\n```\n"

	call, ok := ExtractToolCall(content)
	require.True(t, ok)
	assert.Equal(t, "search", call.Name)
	assert.Equal(t, map[string]any{"query": "golang"}, call.Arguments)
}

func TestExtractToolCallParametersAlias(t *testing.T) {
	content := "```json\n{\"action\": \"search\", \"parameters\": {\"query\": \"golang\"}}\n```"

	call, ok := ExtractToolCall(content)
	require.True(t, ok)
	assert.Equal(t, "search", call.Name)
	assert.Equal(t, map[string]any{"query": "golang"}, call.Arguments)
}

func TestExtractToolCallToolInputShape(t *testing.T) {
	content := `{"tool": "fetch", "tool_input": {"url": "https://example.com"}}`

	call, ok := ExtractToolCall(content)
	require.True(t, ok)
	assert.Equal(t, "fetch", call.Name)
	assert.Equal(t, map[string]any{"url": "https://example.com"}, call.Arguments)
}

func TestExtractToolCallNameArgumentsShape(t *testing.T) {
	content := `Use this: {"name": "echo", "arguments": {"text": "hi"}}`

	call, ok := ExtractToolCall(content)
	require.True(t, ok)
	assert.Equal(t, "echo", call.Name)
	assert.Equal(t, map[string]any{"text": "hi"}, call.Arguments)
}

func TestExtractToolCallNullParams(t *testing.T) {
	// A present key with a null value still counts as a call, with an
	// empty argument map.
	call, ok := ExtractToolCall(`{"action": "ping", "params": null}`)
	require.True(t, ok)
	assert.Equal(t, "ping", call.Name)
	assert.Equal(t, map[string]any{}, call.Arguments)

	call, ok = ExtractToolCall(`{"tool": "ping", "tool_input": null}`)
	require.True(t, ok)
	assert.Equal(t, "ping", call.Name)
	assert.Equal(t, map[string]any{}, call.Arguments)
}

func TestExtractToolCallNullParamsDefersToParameters(t *testing.T) {
	content := `{"action": "search", "params": null, "parameters": {"q": "x"}}`

	call, ok := ExtractToolCall(content)
	require.True(t, ok)
	assert.Equal(t, "search", call.Name)
	assert.Equal(t, map[string]any{"q": "x"}, call.Arguments)
}

func TestExtractToolCallFencedPreferredOverBare(t *testing.T) {
	// A bare object appears first in the text, but fenced blocks are
	// scanned before the bare fallback is even attempted.
	content := `{"name": "bare", "arguments": {}}
` + "```json\n" + `{"action": "fenced", "params": {}}` + "\n```"

	call, ok := ExtractToolCall(content)
	require.True(t, ok)
	assert.Equal(t, "fenced", call.Name)
}

func TestExtractToolCallFirstValidWins(t *testing.T) {
	content := "```json\n{\"not\": \"a tool call\"}\n```\n```json\n{\"action\": \"second\", \"params\": {}}\n```"

	call, ok := ExtractToolCall(content)
	require.True(t, ok)
	assert.Equal(t, "second", call.Name)
}

func TestExtractToolCallSkipsInvalidJSON(t *testing.T) {
	content := "```json\n{broken\n```\n" + `{"action": "valid", "params": {"a": "b"}}`

	// The fenced block exists but is unparseable; with no valid fenced
	// candidates the text as a whole yields nothing from fences, and
	// fenced matches being present means the bare fallback is skipped.
	_, ok := ExtractToolCall(content)
	assert.False(t, ok)
}

func TestExtractToolCallNone(t *testing.T) {
	for _, content := range []string{
		"",
		"Just a prose answer with no tool use.",
		`{"action": "x"}`,                       // action without params
		`{"random": "object"}`,                  // no recognizable keys
		`{"name": "x", "arguments": "not-obj"}`, // arguments not an object
	} {
		_, ok := ExtractToolCall(content)
		assert.False(t, ok, "content %q should not extract", content)
	}
}

func TestExtractToolCallNestedArguments(t *testing.T) {
	content := "```json\n{\"action\": \"write\", \"params\": {\"file\": {\"path\": \"/tmp/x\", \"mode\": 384}}}\n```"

	call, ok := ExtractToolCall(content)
	require.True(t, ok)
	file, ok := call.Arguments["file"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/tmp/x", file["path"])
}

func TestBuildToolPrompt(t *testing.T) {
	schema, _ := json.Marshal(map[string]any{"type": "object"})
	descriptors := []FunctionDescriptor{
		{Type: "function", Function: FunctionDef{Name: "search", Description: "Full-text search", Parameters: schema}},
		{Type: "function", Function: FunctionDef{Name: "fetch", Description: "Fetch a URL"}},
	}

	prompt := BuildToolPrompt("You are a helpful assistant.", descriptors)
	assert.Contains(t, prompt, "You are a helpful assistant.")
	assert.Contains(t, prompt, "- search: Full-text search")
	assert.Contains(t, prompt, "- fetch: Fetch a URL")
	assert.Contains(t, prompt, "```json")

	// The generated instructions must round-trip through the extractor.
	call, ok := ExtractToolCall(prompt)
	require.True(t, ok)
	assert.Equal(t, "tool_name", call.Name)
}

func TestBuildToolPromptNoTools(t *testing.T) {
	assert.Equal(t, "prompt", BuildToolPrompt("prompt", nil))
}
