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

// Package controller owns provider lifecycles: it spawns process
// providers (or validates network ones), drives the protocol handshake,
// health-probes instances, and tears them down with a graceful-then-
// forced shutdown.
package controller

import (
	"context"
	goerrors "errors"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mhalligan/toolgate/internal/log"
	"github.com/mhalligan/toolgate/internal/registry"
	"github.com/mhalligan/toolgate/internal/transport"
	"github.com/mhalligan/toolgate/pkg/errors"
	"github.com/mhalligan/toolgate/pkg/secrets"
)

const (
	// handshakeTimeout bounds the initialize exchange during startup.
	handshakeTimeout = 10 * time.Second
	// shutdownTimeout bounds the graceful protocol shutdown during stop.
	shutdownTimeout = 2 * time.Second
	// killGrace is how long a signalled process gets before SIGKILL.
	killGrace = 3 * time.Second
)

// Controller manages all running provider instances. There is at most
// one Instance per provider id; when concurrent Start calls race, one
// wins and the others discard their spawn and report the winner's state.
type Controller struct {
	store  *registry.Store
	logger *slog.Logger
	prober *prober

	mu        sync.Mutex
	instances map[string]*Instance
}

// New creates a controller over the given registry.
func New(store *registry.Store, logger *slog.Logger) (*Controller, error) {
	p, err := newProber()
	if err != nil {
		return nil, err
	}
	return &Controller{
		store:     store,
		logger:    logger,
		prober:    p,
		instances: make(map[string]*Instance),
	}, nil
}

// Start brings the provider up. If an instance already exists and is
// alive, Start is a no-op reporting the existing state. The definition
// is re-read from the registry on every call so edits made while the
// provider was stopped take effect.
func (c *Controller) Start(ctx context.Context, id string) (*Status, error) {
	c.mu.Lock()
	existing, ok := c.instances[id]
	if ok && existing.alive() {
		st := existing.status()
		c.mu.Unlock()
		c.logger.Info("provider already running",
			slog.String(log.ProviderKey, id),
			slog.Int(log.PIDKey, st.PID))
		return &st, nil
	}
	c.mu.Unlock()
	if ok {
		// Instance exists but its process died; clear it and start fresh.
		if c.removeInstance(id, existing) {
			c.teardown(existing, "process exited")
		}
	}

	def, err := c.store.Get(id)
	if err != nil {
		return nil, err
	}

	logger := c.logger.With(slog.String(log.ProviderKey, id))
	began := time.Now()

	var inst *Instance
	switch def.Kind {
	case registry.KindProcess:
		inst, err = c.startProcess(ctx, def, logger)
	case registry.KindNetwork:
		inst, err = c.startNetwork(ctx, def, logger)
	default:
		err = errors.Newf(errors.CodeConfig, "provider %s has unknown type %q", id, def.Kind)
	}
	if err != nil {
		recordStart(id, "failure")
		return nil, err
	}

	// The monitor wiring happens inside the same critical section as the
	// map insert: once another goroutine can see the instance, its
	// cancelMonitor is already set, and a Stop landing right after the
	// insert cancels a monitor context rather than racing the field.
	c.mu.Lock()
	if winner, raced := c.instances[id]; raced {
		// A concurrent Start won; discard ours and report theirs.
		st := winner.status()
		c.mu.Unlock()
		c.teardown(inst, "lost start race")
		return &st, nil
	}
	inst.setState(StateRunning)
	monCtx, cancel := context.WithCancel(context.Background())
	inst.cancelMonitor = cancel
	c.instances[id] = inst
	providersRunning.Inc()
	st := inst.status()
	c.mu.Unlock()

	go c.monitor(monCtx, id, inst, logger)

	recordStart(id, "success")
	startDuration.WithLabelValues(id).Observe(time.Since(began).Seconds())

	logger.Info("provider running",
		slog.Int(log.PIDKey, st.PID),
		slog.String("url", inst.baseURL),
		slog.Duration(log.DurationKey, time.Since(began)))
	return &st, nil
}

func (c *Controller) startProcess(ctx context.Context, def *registry.Definition, logger *slog.Logger) (*Instance, error) {
	command, args := resolveCommand(def.Command, def.Args, logger)
	baseURL := deriveBaseURL(def.URL, args)

	cmd := exec.Command(command, args...)
	cmd.Env = mergeEnv(def.Env)
	configureProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeLaunch, "open stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeLaunch, "open stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeLaunch, "open stderr pipe")
	}

	logger.Info("launching provider",
		slog.String("command", command),
		slog.Any("args", args))

	if err := cmd.Start(); err != nil {
		if goerrors.Is(err, exec.ErrNotFound) {
			return nil, errors.ErrCommandNotFound(command)
		}
		return nil, errors.ErrLaunch(command, err)
	}

	inst := &Instance{
		def:       def,
		baseURL:   baseURL,
		startedAt: time.Now(),
		logs:      NewRingBuffer(logBufferSize),
		cmd:       cmd,
		exited:    make(chan struct{}),
		state:     StateStarting,
	}
	go inst.captureOutput(stderr, "stderr", logger)
	go func() {
		cmd.Wait()
		close(inst.exited)
	}()

	inst.transport = transport.NewStdio(stdin, stdout, logger)

	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	if _, err := inst.transport.Initialize(hsCtx); err != nil {
		inst.setState(StateError)
		c.teardown(inst, "handshake failed")
		return nil, err
	}

	if err := c.prober.waitReady(ctx, baseURL, inst.alive); err != nil {
		inst.setState(StateError)
		c.teardown(inst, "startup probe failed")
		return nil, err
	}
	return inst, nil
}

func (c *Controller) startNetwork(ctx context.Context, def *registry.Definition, logger *slog.Logger) (*Instance, error) {
	baseURL := deriveBaseURL(def.URL, nil)

	apiKey := def.APIKey
	if apiKey == "" {
		// Credentials added with --keychain live in the OS keychain, not
		// the registry file. A provider without one in either place is
		// simply unauthenticated.
		if cred, err := secrets.Lookup(def.ID); err == nil {
			apiKey = cred
		}
	}

	tr, err := transport.NewSSE(baseURL, apiKey, logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeLaunch, "create transport")
	}

	inst := &Instance{
		def:       def,
		transport: tr,
		baseURL:   baseURL,
		startedAt: time.Now(),
		logs:      NewRingBuffer(logBufferSize),
		state:     StateStarting,
	}

	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	if _, err := tr.Initialize(hsCtx); err != nil {
		inst.setState(StateError)
		c.teardown(inst, "handshake failed")
		return nil, err
	}

	if err := c.prober.waitReady(ctx, baseURL, nil); err != nil {
		inst.setState(StateError)
		c.teardown(inst, "startup probe failed")
		return nil, err
	}
	return inst, nil
}

// Stop shuts the provider down: a graceful protocol shutdown when the
// transport is up, then a termination signal to the process group, then
// a forced kill after the grace period. Stopping a provider that is not
// running succeeds without doing anything.
func (c *Controller) Stop(ctx context.Context, id string) error {
	c.mu.Lock()
	inst, ok := c.instances[id]
	c.mu.Unlock()
	if !ok || !c.removeInstance(id, inst) {
		return nil
	}

	logger := c.logger.With(slog.String(log.ProviderKey, id))

	if inst.cancelMonitor != nil {
		inst.cancelMonitor()
	}

	if inst.transport != nil {
		shCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		if err := inst.transport.Shutdown(shCtx); err != nil {
			logger.Debug("graceful shutdown failed", slog.String("error", err.Error()))
		}
		cancel()
		inst.transport.Close()
	}

	mode := "graceful"
	if inst.cmd != nil && inst.alive() {
		if err := terminateGroup(inst.cmd); err != nil {
			logger.Debug("terminate signal failed", slog.String("error", err.Error()))
		}

		select {
		case <-inst.exited:
		case <-time.After(killGrace):
			mode = "forced"
			logger.Warn("provider did not exit within grace period, killing")
			if err := killGroup(inst.cmd); err != nil {
				logger.Debug("kill signal failed", slog.String("error", err.Error()))
			}
			<-inst.exited
		}
	}

	inst.setState(StateStopped)
	recordStop(id, mode)
	logger.Info("provider stopped", slog.String("mode", mode))
	return nil
}

// removeInstance deletes id from the instance table when it still maps
// to inst, reporting whether the caller took ownership of its teardown.
// The running gauge moves here, the single point where an instance
// leaves the table, so it changes exactly once per start/stop cycle no
// matter which of Stop, Status, or the monitor observes the exit first.
func (c *Controller) removeInstance(id string, inst *Instance) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.instances[id] != inst {
		return false
	}
	delete(c.instances, id)
	providersRunning.Dec()
	return true
}

// Restart stops then starts the provider, re-reading its definition.
func (c *Controller) Restart(ctx context.Context, id string) (*Status, error) {
	if err := c.Stop(ctx, id); err != nil {
		return nil, err
	}
	return c.Start(ctx, id)
}

// Status reconciles believed state with reality before reporting: a dead
// process demotes the instance to Stopped, a failed probe to Unhealthy.
// A stale Running is never returned.
func (c *Controller) Status(ctx context.Context, id string) (*Status, error) {
	if _, err := c.store.Get(id); err != nil {
		return nil, err
	}

	c.mu.Lock()
	inst, ok := c.instances[id]
	c.mu.Unlock()
	if !ok {
		return &Status{ID: id, State: StateStopped}, nil
	}

	if !inst.alive() {
		if c.removeInstance(id, inst) {
			c.teardown(inst, "process exited")
		}
		return &Status{ID: id, Name: inst.def.Name, State: StateStopped}, nil
	}

	if c.prober.healthy(ctx, inst.baseURL) {
		inst.setState(StateRunning)
	} else {
		inst.setState(StateUnhealthy)
	}

	st := inst.status()
	return &st, nil
}

// ListStatuses reports every registered provider, running or not.
func (c *Controller) ListStatuses(ctx context.Context) []Status {
	defs := c.store.List()

	out := make([]Status, 0, len(defs))
	for _, def := range defs {
		st, err := c.Status(ctx, def.ID)
		if err != nil {
			continue
		}
		st.Name = def.Name
		out = append(out, *st)
	}
	return out
}

// Logs returns the most recent captured output lines for a running
// provider.
func (c *Controller) Logs(id string, n int) ([]LogEntry, error) {
	c.mu.Lock()
	inst, ok := c.instances[id]
	c.mu.Unlock()
	if !ok {
		return nil, errors.ErrNotRunning(id)
	}
	return inst.logs.Last(n), nil
}

// Transport returns the live transport for a Running provider. The
// bridge goes through here so it never touches process internals.
func (c *Controller) Transport(id string) (transport.Transport, error) {
	c.mu.Lock()
	inst, ok := c.instances[id]
	c.mu.Unlock()
	if !ok {
		return nil, errors.ErrNotRunning(id)
	}
	if st := inst.State(); st != StateRunning && st != StateUnhealthy {
		return nil, errors.ErrNotRunning(id)
	}
	return inst.transport, nil
}

// State returns the lifecycle state for id, StateStopped when no
// instance exists.
func (c *Controller) State(id string) State {
	c.mu.Lock()
	inst, ok := c.instances[id]
	c.mu.Unlock()
	if !ok {
		return StateStopped
	}
	return inst.State()
}

// StopAll stops every running provider concurrently. Used on daemon
// shutdown.
func (c *Controller) StopAll(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]string, 0, len(c.instances))
	for id := range c.instances {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			return c.Stop(ctx, id)
		})
	}
	return g.Wait()
}

// monitor is the per-instance health loop: it detects unexpected process
// exit and flips the instance between Running and Unhealthy based on the
// probe. It exits when the instance is stopped.
func (c *Controller) monitor(ctx context.Context, id string, inst *Instance, logger *slog.Logger) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-inst.exitChan():
			if !c.removeInstance(id, inst) {
				// Someone else already owns the teardown.
				return
			}
			c.teardown(inst, "process exited unexpectedly")
			recordHealthTransition(id, StateStopped)
			logger.Warn("provider process exited unexpectedly")
			return
		case <-ticker.C:
			healthy := c.prober.healthy(ctx, inst.baseURL)
			switch {
			case healthy && inst.State() == StateUnhealthy:
				inst.setState(StateRunning)
				recordHealthTransition(id, StateRunning)
				logger.Info("provider recovered")
			case !healthy && inst.State() == StateRunning:
				inst.setState(StateUnhealthy)
				recordHealthTransition(id, StateUnhealthy)
				logger.Warn("provider health probe failing")
			}
		}
	}
}

// teardown releases whatever a partially or fully started instance
// holds. Safe on instances that never completed startup.
func (c *Controller) teardown(inst *Instance, reason string) {
	if inst.cancelMonitor != nil {
		inst.cancelMonitor()
	}
	if inst.transport != nil {
		inst.transport.Close()
	}
	if inst.cmd != nil && inst.alive() {
		terminateGroup(inst.cmd)
		select {
		case <-inst.exited:
		case <-time.After(killGrace):
			killGroup(inst.cmd)
		}
	}
	inst.setState(StateStopped)
	c.logger.Debug("instance torn down",
		slog.String(log.ProviderKey, inst.def.ID),
		slog.String("reason", reason))
}
