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

// Package providers implements the toolgate provider subcommands:
// registry CRUD, lifecycle control, and tool execution.
package providers

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mhalligan/toolgate/internal/bridge"
	"github.com/mhalligan/toolgate/internal/cli"
	"github.com/mhalligan/toolgate/internal/config"
	"github.com/mhalligan/toolgate/internal/controller"
	"github.com/mhalligan/toolgate/internal/log"
	"github.com/mhalligan/toolgate/internal/registry"
	"github.com/mhalligan/toolgate/internal/tracing"
)

// AddCommands registers every provider subcommand on the root command.
func AddCommands(root *cobra.Command) {
	root.AddCommand(newAddCommand())
	root.AddCommand(newRemoveCommand())
	root.AddCommand(newUpdateCommand())
	root.AddCommand(newListCommand())
	root.AddCommand(newStartCommand())
	root.AddCommand(newStopCommand())
	root.AddCommand(newRestartCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newLogsCommand())
	root.AddCommand(newToolsCommand())
	root.AddCommand(newCallCommand())
	root.AddCommand(newPromptCommand())
}

// app wires the pieces a command needs: config, logger, registry store,
// controller, and bridge. Commands build one, do their work, and close it.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *registry.Store
	watcher *registry.Watcher
	ctrl    *controller.Controller
	bridge  *bridge.Bridge

	traceShutdown func(context.Context) error
}

func newApp() (*app, error) {
	var cfg *config.Config
	var err error
	if path := cli.ConfigPath(); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	// CLI flags override the config file.
	level := cfg.Log.Level
	if cli.LogLevel() != "" {
		level = cli.LogLevel()
	}
	format := cfg.Log.Format
	if cli.LogFormat() != "" {
		format = cli.LogFormat()
	}
	logger := log.New(&log.Config{Level: level, Format: log.Format(format)})

	regPath, err := cfg.RegistryPath()
	if err != nil {
		return nil, err
	}
	store, err := registry.NewStore(regPath, logger)
	if err != nil {
		return nil, err
	}

	var watcher *registry.Watcher
	if cfg.Registry.Watch {
		watcher, err = registry.NewWatcher(store, logger)
		if err != nil {
			// Watching is a convenience; a missing inotify backend should
			// not take the CLI down.
			logger.Warn("registry watcher unavailable", "error", err)
			watcher = nil
		}
	}

	ctrl, err := controller.New(store, logger)
	if err != nil {
		return nil, err
	}

	br := bridge.New(ctrl, bridge.Config{
		CallsPerSecond: cfg.Bridge.CallsPerSecond,
		Burst:          cfg.Bridge.Burst,
	}, logger)

	ver, _, _ := cli.GetVersion()
	traceShutdown, err := tracing.Setup("toolgate", ver, cfg.Tracing.Enabled)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:           cfg,
		logger:        logger,
		store:         store,
		watcher:       watcher,
		ctrl:          ctrl,
		bridge:        br,
		traceShutdown: traceShutdown,
	}, nil
}

// close releases watcher and tracing resources. Providers started by this
// process are left running only long enough for the command to finish;
// the CLI is single-shot, so each command stops what it started unless
// its job is to leave the provider up.
func (a *app) close(ctx context.Context) {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.traceShutdown != nil {
		_ = a.traceShutdown(ctx)
	}
}
