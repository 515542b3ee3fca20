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

//go:build windows

package controller

import (
	"os/exec"
	"syscall"
)

// configureProcAttr detaches the child into its own process group.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// terminateGroup has no graceful group signal on Windows; kill the
// process directly.
func terminateGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

// killGroup force-kills the child process.
func killGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
