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

// Package cli builds the root toolgate command and holds the global
// flags shared by every subcommand.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	jsonOutput bool
)

// Version information (injected via ldflags at build time).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion sets the version information (called from main).
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// GetVersion returns version information.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// ConfigPath returns the --config flag value, empty when unset.
func ConfigPath() string { return configPath }

// LogLevel returns the --log-level flag value, empty when unset.
func LogLevel() string { return logLevel }

// LogFormat returns the --log-format flag value, empty when unset.
func LogFormat() string { return logFormat }

// JSONOutput reports whether --json was passed.
func JSONOutput() bool { return jsonOutput }

// NewRootCommand creates the root Cobra command for toolgate.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolgate",
		Short: "Toolgate - tool provider gateway",
		Long: `Toolgate manages tool providers: it registers provider definitions,
launches and supervises their processes, speaks the capability protocol
over stdio or an HTTP event stream, and turns free-text tool call
requests into executed tools.

Run 'toolgate add' to register a provider, 'toolgate start' to launch
it, and 'toolgate tools' to see what it offers.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/toolgate/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
