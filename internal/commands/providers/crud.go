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

	"github.com/spf13/cobra"

	"github.com/mhalligan/toolgate/internal/cli"
	"github.com/mhalligan/toolgate/internal/controller"
	"github.com/mhalligan/toolgate/internal/registry"
	"github.com/mhalligan/toolgate/pkg/errors"
	"github.com/mhalligan/toolgate/pkg/secrets"
)

type addOptions struct {
	description string
	kind        string
	command     string
	args        []string
	env         map[string]string
	url         string
	apiKey      string
	keychain    bool
}

// newAddCommand creates the 'add' command.
func newAddCommand() *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new tool provider",
		Long: `Register a new tool provider in the local registry.

Process providers are launched on demand from a command; network
providers connect to an already-running endpoint by URL.

With --keychain the API key is stored in the OS keychain instead of
the registry file.`,
		Example: `  # Example 1: Register a process provider
  toolgate add files --command uvx --args mcp-server-filesystem --args /data

  # Example 2: Register a network provider with a bearer token
  toolgate add search --type network --url http://localhost:3500 --api-key $TOKEN --keychain`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.description, "description", "", "Human-readable description")
	cmd.Flags().StringVar(&opts.kind, "type", string(registry.KindProcess), "Provider type: process or network")
	cmd.Flags().StringVar(&opts.command, "command", "", "Command to launch (process providers)")
	cmd.Flags().StringArrayVar(&opts.args, "args", nil, "Command argument (repeatable)")
	cmd.Flags().StringToStringVar(&opts.env, "env", nil, "Environment variable KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&opts.url, "url", "", "Base URL (network providers, or explicit process URL)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "Bearer token for network providers")
	cmd.Flags().BoolVar(&opts.keychain, "keychain", false, "Store the API key in the OS keychain")

	return cmd
}

func runAdd(name string, opts addOptions) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close(context.Background())

	def := &registry.Definition{
		Name:        name,
		Description: opts.description,
		Kind:        registry.Kind(opts.kind),
		Command:     opts.command,
		Args:        opts.args,
		Env:         opts.env,
		URL:         opts.url,
	}
	if !opts.keychain {
		def.APIKey = opts.apiKey
	}

	created, err := app.store.Create(def)
	if err != nil {
		return err
	}

	if opts.keychain && opts.apiKey != "" {
		if err := secrets.Store(created.ID, opts.apiKey); err != nil {
			// Roll back so we don't leave a definition whose credential
			// was never saved anywhere.
			_ = app.store.Delete(created.ID)
			return fmt.Errorf("storing api key in keychain: %w", err)
		}
	}

	fmt.Printf("Added provider %s (%s)\n", created.Name, created.ID)
	return nil
}

// newRemoveCommand creates the 'remove' command.
func newRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a tool provider",
		Long: `Remove a tool provider from the registry.

Any keychain credential stored for the provider is deleted as well.`,
		Example: `  # Example 1: Remove a provider by id
  toolgate remove mcp-1a2b3c4d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(args[0])
		},
	}

	return cmd
}

func runRemove(id string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close(context.Background())

	if st := app.ctrl.State(id); st != controller.StateStopped && st != controller.StateError {
		return errors.Newf(errors.CodeValidation, "provider %s is %s; stop it before removing", id, st)
	}

	if err := app.store.Delete(id); err != nil {
		return err
	}
	_ = secrets.Delete(id)

	fmt.Printf("Removed provider %s\n", id)
	return nil
}

// newUpdateCommand creates the 'update' command.
func newUpdateCommand() *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a tool provider definition",
		Long: `Update fields of a registered provider. Only the flags you pass
change; everything else keeps its stored value. Args and env are
replaced wholesale, not merged.`,
		Example: `  # Example 1: Point a network provider at a new endpoint
  toolgate update mcp-1a2b3c4d --url http://localhost:4000

  # Example 2: Replace the launch arguments
  toolgate update mcp-1a2b3c4d --args serve --args --port --args 3501`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.description, "description", "", "Human-readable description")
	cmd.Flags().String("name", "", "Provider name")
	cmd.Flags().StringVar(&opts.kind, "type", "", "Provider type: process or network")
	cmd.Flags().StringVar(&opts.command, "command", "", "Command to launch (process providers)")
	cmd.Flags().StringArrayVar(&opts.args, "args", nil, "Command argument (repeatable, replaces all)")
	cmd.Flags().StringToStringVar(&opts.env, "env", nil, "Environment variable KEY=VALUE (replaces all)")
	cmd.Flags().StringVar(&opts.url, "url", "", "Base URL")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "Bearer token")
	cmd.Flags().BoolVar(&opts.keychain, "keychain", false, "Store the API key in the OS keychain")

	return cmd
}

func runUpdate(cmd *cobra.Command, id string, opts addOptions) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close(context.Background())

	var upd registry.Update
	if cmd.Flags().Changed("name") {
		name, _ := cmd.Flags().GetString("name")
		upd.Name = &name
	}
	if cmd.Flags().Changed("description") {
		upd.Description = &opts.description
	}
	if cmd.Flags().Changed("type") {
		kind := registry.Kind(opts.kind)
		upd.Kind = &kind
	}
	if cmd.Flags().Changed("command") {
		upd.Command = &opts.command
	}
	if cmd.Flags().Changed("args") {
		upd.Args = opts.args
	}
	if cmd.Flags().Changed("env") {
		upd.Env = opts.env
	}
	if cmd.Flags().Changed("url") {
		upd.URL = &opts.url
	}
	if cmd.Flags().Changed("api-key") {
		if opts.keychain {
			if err := secrets.Store(id, opts.apiKey); err != nil {
				return fmt.Errorf("storing api key in keychain: %w", err)
			}
			empty := ""
			upd.APIKey = &empty
		} else {
			upd.APIKey = &opts.apiKey
		}
	}

	// Launch fields are immutable while the provider is up; name,
	// description and credential may change at any time.
	launchChange := upd.Kind != nil || upd.Command != nil || upd.Args != nil || upd.Env != nil || upd.URL != nil
	if st := app.ctrl.State(id); launchChange && st != controller.StateStopped && st != controller.StateError {
		return errors.Newf(errors.CodeValidation, "provider %s is %s; stop it before changing launch fields", id, st)
	}

	updated, err := app.store.Update(id, upd)
	if err != nil {
		return err
	}

	fmt.Printf("Updated provider %s (%s)\n", updated.Name, updated.ID)
	return nil
}

// newListCommand creates the 'list' command.
func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tool providers",
		Long: `List all registered tool providers with their reconciled state.

See also: toolgate add, toolgate status`,
		Example: `  # Example 1: List providers
  toolgate list

  # Example 2: Get the list as JSON
  toolgate list --json

  # Example 3: Extract ids for scripting
  toolgate list --json | jq -r '.[].id'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList()
		},
	}

	return cmd
}

func runList() error {
	app, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer app.close(ctx)

	statuses := app.ctrl.ListStatuses(ctx)

	if cli.JSONOutput() {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(statuses) == 0 {
		fmt.Println("No providers registered.")
		fmt.Println("\nTo add one:")
		fmt.Println("  toolgate add <name> --command <cmd>")
		return nil
	}

	fmt.Printf("%-14s %-20s %-12s %-8s %s\n", "ID", "NAME", "STATE", "PID", "URL")
	fmt.Println(strings.Repeat("-", 72))
	for _, s := range statuses {
		pid := ""
		if s.PID > 0 {
			pid = fmt.Sprintf("%d", s.PID)
		}
		fmt.Printf("%-14s %-20s %-12s %-8s %s\n", s.ID, truncate(s.Name, 20), s.State, pid, s.URL)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
