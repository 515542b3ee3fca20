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
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedJSONRe = regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```")
	braceRe      = regexp.MustCompile(`\{[\s\S]*?\}`)
)

// ToolCall is a structured tool invocation recovered from model output.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// ExtractToolCall recovers a tool invocation from free-form model text.
// Fenced ```json blocks are preferred; bare brace-delimited objects are
// the fallback. Three shapes are recognized:
//
//	{"action": name, "params"|"parameters": {...}}
//	{"tool": name, "tool_input": {...}}
//	{"name": name, "arguments": {...}}
//
// Candidates are tried in order of appearance and the first valid one
// wins. Returns false when the text carries no recognizable call.
func ExtractToolCall(content string) (*ToolCall, bool) {
	var candidates []string
	for _, m := range fencedJSONRe.FindAllStringSubmatch(content, -1) {
		candidates = append(candidates, m[1])
	}
	if len(candidates) == 0 {
		candidates = braceRe.FindAllString(content, -1)
	}

	for _, candidate := range candidates {
		var data map[string]any
		if err := json.Unmarshal([]byte(candidate), &data); err != nil {
			continue
		}
		if call := matchShape(data); call != nil {
			return call, true
		}
	}
	return nil, false
}

func matchShape(data map[string]any) *ToolCall {
	if name, ok := data["action"].(string); ok {
		if params, found := objectField(data, "params", "parameters"); found {
			return &ToolCall{Name: name, Arguments: params}
		}
	}
	if name, ok := data["tool"].(string); ok {
		if input, found := objectField(data, "tool_input"); found {
			return &ToolCall{Name: name, Arguments: input}
		}
	}
	if name, ok := data["name"].(string); ok {
		if args, found := objectField(data, "arguments"); found {
			return &ToolCall{Name: name, Arguments: args}
		}
	}
	return nil
}

// objectField returns the first of the named keys that holds a JSON
// object. When no key holds an object but one is present with a null
// value, the call counts with an empty argument map. A present key
// holding any other non-object does not count.
func objectField(data map[string]any, keys ...string) (map[string]any, bool) {
	nullSeen := false
	for _, key := range keys {
		v, ok := data[key]
		if !ok {
			continue
		}
		if obj, ok := v.(map[string]any); ok {
			return obj, true
		}
		if v == nil {
			nullSeen = true
		}
	}
	if nullSeen {
		return map[string]any{}, true
	}
	return nil, false
}

// BuildToolPrompt appends tool descriptions and calling instructions to
// a system prompt, teaching the model the fenced-JSON call format that
// ExtractToolCall parses.
func BuildToolPrompt(systemPrompt string, descriptors []FunctionDescriptor) string {
	if len(descriptors) == 0 {
		return systemPrompt
	}

	var b strings.Builder
	b.WriteString("You have access to the following tools:\n\n")
	for _, d := range descriptors {
		fmt.Fprintf(&b, "- %s: %s\n", d.Function.Name, d.Function.Description)
	}
	b.WriteString(`
When you need to use a tool, respond with a JSON object in this format inside a code block:

` + "```json" + `
{
  "action": "tool_name",
  "params": {
    "param1": "value1",
    "param2": "value2"
  }
}
` + "```" + `

Always wrap the JSON in a code block with ` + "```json and ```" + ` markers.
Use tools directly when they're appropriate for the task.
Wait for tool results before continuing.
`)

	if systemPrompt == "" {
		return b.String()
	}
	return systemPrompt + "\n\n" + b.String()
}
