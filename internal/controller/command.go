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

package controller

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// defaultPort is assumed when a process provider's arguments carry no
// --port flag and no explicit URL is configured.
const defaultPort = 3500

// lookPath is swapped in tests to control command availability.
var lookPath = exec.LookPath

// resolveCommand maps a configured launch command to what actually runs.
// Python-ecosystem launchers (uv, uvx) fall back to npx when absent,
// with the argument list rewritten to keep its meaning; the substitution
// is logged so an operator can tell which runtime served the provider.
func resolveCommand(command string, args []string, logger *slog.Logger) (string, []string) {
	switch command {
	case "uv":
		if _, err := lookPath(command); err != nil {
			logger.Info("uv not found, falling back to npx")
			if len(args) > 0 && args[0] == "run" {
				args = append([]string{"-y"}, args[1:]...)
			}
			return "npx", args
		}
	case "uvx":
		if _, err := lookPath(command); err != nil {
			logger.Info("uvx not found, falling back to npx")
			if len(args) > 0 {
				args = append([]string{"-y"}, args...)
			}
			return "npx", args
		}
	}
	return command, args
}

// mergeEnv layers overrides on top of the inherited environment.
func mergeEnv(overrides map[string]string) []string {
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// deriveBaseURL returns the provider's health/RPC base URL: the explicit
// url when configured, otherwise localhost on the port found in the
// launch arguments.
func deriveBaseURL(url string, args []string) string {
	if url != "" {
		return strings.TrimRight(url, "/")
	}
	return fmt.Sprintf("http://localhost:%d", extractPort(args))
}

// extractPort scans args for a --port flag with a numeric value.
func extractPort(args []string) int {
	for i, arg := range args {
		if arg == "--port" && i+1 < len(args) {
			if port, err := strconv.Atoi(args[i+1]); err == nil {
				return port
			}
		}
	}
	return defaultPort
}
