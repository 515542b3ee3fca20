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
	"bufio"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/mhalligan/toolgate/internal/registry"
	"github.com/mhalligan/toolgate/internal/transport"
)

// State is a provider's lifecycle state.
type State string

const (
	StateStopped   State = "stopped"
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateUnhealthy State = "unhealthy"
	StateError     State = "error"
)

// Instance is the runtime side of one started provider: its process (if
// any), transport, log buffer, and lifecycle state. The controller owns
// instances exclusively; other components reach them only through the
// controller's lookups.
type Instance struct {
	def       *registry.Definition
	transport transport.Transport
	baseURL   string
	startedAt time.Time
	logs      *RingBuffer

	cmd    *exec.Cmd // nil for network providers
	exited chan struct{}

	cancelMonitor context.CancelFunc

	mu    sync.RWMutex
	state State
}

// State returns the current lifecycle state.
func (in *Instance) State() State {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.state
}

func (in *Instance) setState(s State) {
	in.mu.Lock()
	in.state = s
	in.mu.Unlock()
}

// PID returns the provider's process id, or 0 for network providers.
func (in *Instance) PID() int {
	if in.cmd == nil || in.cmd.Process == nil {
		return 0
	}
	return in.cmd.Process.Pid
}

// Uptime is the time since the instance started.
func (in *Instance) Uptime() time.Duration {
	return time.Since(in.startedAt)
}

// alive reports whether the backing process is still running. Network
// providers have no process and always count as alive; their liveness
// comes from the health probe instead.
func (in *Instance) alive() bool {
	if in.cmd == nil {
		return true
	}
	select {
	case <-in.exited:
		return false
	default:
		return true
	}
}

// exitChan returns the channel closed when the process exits; nil (and
// therefore never ready) for network providers.
func (in *Instance) exitChan() <-chan struct{} {
	return in.exited
}

// captureOutput drains one of the process's streams into the log
// buffer. One goroutine per stream, running until the pipe closes.
func (in *Instance) captureOutput(r io.Reader, stream string, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		in.logs.Append(LogEntry{
			Timestamp: time.Now(),
			Stream:    stream,
			Text:      line,
		})
		logger.Debug("provider output",
			slog.String("stream", stream),
			slog.String("line", line))
	}
}

// Status is a point-in-time report for one provider.
type Status struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	State  State         `json:"state"`
	PID    int           `json:"pid,omitempty"`
	URL    string        `json:"url,omitempty"`
	Uptime time.Duration `json:"uptime,omitempty"`
}

func (in *Instance) status() Status {
	return Status{
		ID:     in.def.ID,
		Name:   in.def.Name,
		State:  in.State(),
		PID:    in.PID(),
		URL:    in.baseURL,
		Uptime: in.Uptime(),
	}
}
