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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhalligan/toolgate/internal/cli"
	"github.com/mhalligan/toolgate/internal/controller"
	"github.com/mhalligan/toolgate/internal/tracing"
)

// newStartCommand creates the 'start' command.
func newStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start a tool provider and supervise it",
		Long: `Start a tool provider and keep it supervised in the foreground.

The provider is launched (process type) or connected to (network type),
the capability handshake is performed, and the health endpoint is
probed until ready. The command then stays attached, monitoring health,
until interrupted; on interrupt the provider is shut down cleanly.`,
		Example: `  # Example 1: Run a provider until Ctrl-C
  toolgate start mcp-1a2b3c4d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(args[0])
		},
	}

	return cmd
}

func runStart(id string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close(context.Background())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	spanCtx, span := tracing.Start(ctx, "provider.start", tracing.Provider(id))
	status, err := app.ctrl.Start(spanCtx, id)
	tracing.End(span, err)
	if err != nil {
		return err
	}

	printStatusLine(status.State, status.PID, status.URL)
	fmt.Println("Press Ctrl-C to stop.")

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := app.ctrl.Stop(stopCtx, id); err != nil {
		return err
	}
	fmt.Printf("Stopped provider %s\n", id)
	return nil
}

// newStopCommand creates the 'stop' command.
func newStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a running tool provider",
		Long: `Stop a running tool provider.

Stopping a provider that is not running is a no-op.`,
		Example: `  # Example 1: Stop a provider
  toolgate stop mcp-1a2b3c4d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(args[0])
		},
	}

	return cmd
}

func runStop(id string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer app.close(ctx)

	if err := app.ctrl.Stop(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Stopped provider %s\n", id)
	return nil
}

// newRestartCommand creates the 'restart' command.
func newRestartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart <id>",
		Short: "Restart a tool provider",
		Long: `Stop a tool provider if it is running, start it again, and stay
attached supervising it until interrupted.`,
		Example: `  # Example 1: Restart a provider
  toolgate restart mcp-1a2b3c4d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestart(args[0])
		},
	}

	return cmd
}

func runRestart(id string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close(context.Background())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	status, err := app.ctrl.Restart(ctx, id)
	if err != nil {
		return err
	}

	printStatusLine(status.State, status.PID, status.URL)
	fmt.Println("Press Ctrl-C to stop.")

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := app.ctrl.Stop(stopCtx, id); err != nil {
		return err
	}
	fmt.Printf("Stopped provider %s\n", id)
	return nil
}

// newStatusCommand creates the 'status' command.
func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show the reconciled status of a tool provider",
		Long: `Show the status of a tool provider after reconciling it against
the live process: a provider whose process has exited reports stopped,
never a stale running.`,
		Example: `  # Example 1: Check a provider
  toolgate status mcp-1a2b3c4d

  # Example 2: Status as JSON
  toolgate status mcp-1a2b3c4d --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(args[0])
		},
	}

	return cmd
}

func runStatus(id string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer app.close(ctx)

	status, err := app.ctrl.Status(ctx, id)
	if err != nil {
		return err
	}

	if cli.JSONOutput() {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Provider: %s (%s)\n", status.Name, status.ID)
	fmt.Printf("State:    %s\n", status.State)
	if status.PID > 0 {
		fmt.Printf("PID:      %d\n", status.PID)
	}
	if status.URL != "" {
		fmt.Printf("URL:      %s\n", status.URL)
	}
	if status.Uptime > 0 {
		fmt.Printf("Uptime:   %s\n", status.Uptime.Round(time.Second))
	}
	return nil
}

// newLogsCommand creates the 'logs' command.
func newLogsCommand() *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Show captured output from a running tool provider",
		Long: `Show the stderr output captured from a running tool provider.

The controller keeps the most recent lines in a ring buffer; the
provider must be running in this process (see 'toolgate start').`,
		Example: `  # Example 1: Show the last 50 lines
  toolgate logs mcp-1a2b3c4d --tail 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(args[0], tail)
		},
	}

	cmd.Flags().IntVar(&tail, "tail", 0, "Number of lines to show (0 = all buffered)")

	return cmd
}

func runLogs(id string, tail int) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close(context.Background())

	entries, err := app.ctrl.Logs(id, tail)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s [%s] %s\n", e.Timestamp.Format(time.RFC3339), e.Stream, e.Text)
	}
	return nil
}

func printStatusLine(state controller.State, pid int, url string) {
	fmt.Printf("Provider running (state=%s", state)
	if pid > 0 {
		fmt.Printf(", pid=%d", pid)
	}
	if url != "" {
		fmt.Printf(", url=%s", url)
	}
	fmt.Println(")")
}
