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

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhalligan/toolgate/internal/bridge"
	"github.com/mhalligan/toolgate/internal/cli"
	"github.com/mhalligan/toolgate/internal/tracing"
	"github.com/mhalligan/toolgate/pkg/errors"
)

// newToolsCommand creates the 'tools' command.
func newToolsCommand() *cobra.Command {
	var start bool

	cmd := &cobra.Command{
		Use:   "tools <id>",
		Short: "List tools offered by a provider",
		Long: `List the tools a provider's catalog declares.

By default the provider must already be running in this process; pass
--start to launch it for the duration of the command.`,
		Example: `  # Example 1: Launch the provider and list its tools
  toolgate tools mcp-1a2b3c4d --start

  # Example 2: Tool catalog as JSON
  toolgate tools mcp-1a2b3c4d --start --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTools(args[0], start)
		},
	}

	cmd.Flags().BoolVar(&start, "start", false, "Start the provider if it is not running")

	return cmd
}

func runTools(id string, start bool) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer app.close(ctx)
	if start {
		defer stopQuietly(app, id)
	}

	descriptors, err := app.bridge.DiscoverTools(ctx, id, start)
	if err != nil {
		return err
	}

	if cli.JSONOutput() {
		data, err := json.MarshalIndent(descriptors, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%-28s %s\n", "TOOL", "DESCRIPTION")
	fmt.Println(strings.Repeat("-", 72))
	for _, d := range descriptors {
		fmt.Printf("%-28s %s\n", d.Function.Name, truncate(d.Function.Description, 42))
	}
	return nil
}

// newCallCommand creates the 'call' command.
func newCallCommand() *cobra.Command {
	var (
		start    bool
		argsJSON string
		text     string
	)

	cmd := &cobra.Command{
		Use:   "call <id> [tool]",
		Short: "Execute a tool on a provider",
		Long: `Execute a tool on a provider and print the result envelope.

Arguments are passed as a JSON object via --args. Alternatively, pass
free text with --text and the tool call is extracted from it the same
way it would be from a model response; in that form the tool name
argument is omitted.`,
		Example: `  # Example 1: Call a tool directly
  toolgate call mcp-1a2b3c4d echo --args '{"text":"hello"}' --start

  # Example 2: Extract the call from free text
  toolgate call mcp-1a2b3c4d --text 'Use this: {"action":"echo","params":{"text":"hi"}}' --start`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool := ""
			if len(args) > 1 {
				tool = args[1]
			}
			return runCall(args[0], tool, argsJSON, text, start)
		},
	}

	cmd.Flags().BoolVar(&start, "start", false, "Start the provider if it is not running")
	cmd.Flags().StringVar(&argsJSON, "args", "{}", "Tool arguments as a JSON object")
	cmd.Flags().StringVar(&text, "text", "", "Free text to extract the tool call from")

	return cmd
}

func runCall(id, tool, argsJSON, text string, start bool) error {
	if tool == "" && text == "" {
		return errors.New(errors.CodeValidation, "either a tool name or --text is required")
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer app.close(ctx)
	if start {
		defer stopQuietly(app, id)
		spanCtx, span := tracing.Start(ctx, "provider.start", tracing.Provider(id))
		_, err := app.ctrl.Start(spanCtx, id)
		tracing.End(span, err)
		if err != nil {
			return err
		}
	}

	callCtx, span := tracing.Start(ctx, "tool.call", tracing.Provider(id), tracing.Tool(tool))
	var result any
	if text != "" {
		res, found := app.bridge.ExecuteFromText(callCtx, id, text)
		tracing.End(span, nil)
		if !found {
			return errors.New(errors.CodeValidation, "no tool call found in text")
		}
		result = res
	} else {
		var toolArgs map[string]any
		if err := json.Unmarshal([]byte(argsJSON), &toolArgs); err != nil {
			tracing.End(span, err)
			return errors.Wrap(err, errors.CodeValidation, "parsing --args")
		}
		result = app.bridge.ExecuteTool(callCtx, id, tool, toolArgs)
		tracing.End(span, nil)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// newPromptCommand creates the 'prompt' command.
func newPromptCommand() *cobra.Command {
	var (
		start  bool
		system string
	)

	cmd := &cobra.Command{
		Use:   "prompt <id>",
		Short: "Render the tool-instruction prompt for a provider",
		Long: `Render the system prompt block that teaches a model to call the
provider's tools: the catalog followed by the fenced-JSON call format
the extractor understands.`,
		Example: `  # Example 1: Print the tool prompt for a provider
  toolgate prompt mcp-1a2b3c4d --start

  # Example 2: Prepend an existing system prompt
  toolgate prompt mcp-1a2b3c4d --start --system "You are a helpful assistant."`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrompt(args[0], system, start)
		},
	}

	cmd.Flags().BoolVar(&start, "start", false, "Start the provider if it is not running")
	cmd.Flags().StringVar(&system, "system", "", "Base system prompt to extend")

	return cmd
}

func runPrompt(id, system string, start bool) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer app.close(ctx)
	if start {
		defer stopQuietly(app, id)
	}

	descriptors, err := app.bridge.DiscoverTools(ctx, id, start)
	if err != nil {
		return err
	}

	fmt.Println(bridge.BuildToolPrompt(system, descriptors))
	return nil
}

// stopQuietly tears down a provider this command started; the command's
// result has already been decided by the time it runs.
func stopQuietly(app *app, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.ctrl.Stop(ctx, id)
}
