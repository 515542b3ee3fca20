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

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/mhalligan/toolgate/internal/rpc"
	"github.com/mhalligan/toolgate/pkg/errors"
)

// Tool results can embed large payloads; allow lines well beyond the
// bufio default.
const maxLineSize = 10 * 1024 * 1024

// Stdio is the pipe transport. Each JSON-RPC message is one line of JSON
// on the child's stdin; each line the child writes to stdout is one
// message back. stderr is not ours: the process controller captures it
// for the provider's log buffer.
type Stdio struct {
	session

	stdin  io.WriteCloser
	writeM sync.Mutex

	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewStdio creates a stdio transport over an already-started process's
// pipes and begins reading responses. The caller owns the process
// lifecycle; Close only releases the pipes.
func NewStdio(stdin io.WriteCloser, stdout io.Reader, logger *slog.Logger) *Stdio {
	t := &Stdio{
		stdin:  stdin,
		logger: logger,
		done:   make(chan struct{}),
	}
	t.session.corr = rpc.NewCorrelator()
	t.session.send = t

	go t.readLoop(stdout)
	return t
}

func (t *Stdio) sendRequest(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	return nil, t.writeLine(req)
}

func (t *Stdio) sendNotification(ctx context.Context, n *rpc.Notification) error {
	return t.writeLine(n)
}

// writeLine marshals msg and writes it followed by a newline. The mutex
// keeps concurrent writers from interleaving partial lines.
func (t *Stdio) writeLine(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "marshal message")
	}
	data = append(data, '\n')

	t.writeM.Lock()
	defer t.writeM.Unlock()
	if _, err := t.stdin.Write(data); err != nil {
		return errors.Wrap(err, errors.CodeTransport, "write to provider stdin")
	}
	return nil
}

// readLoop consumes stdout lines until EOF or a read error, resolving
// each response through the correlator. When the stream ends, every
// in-flight request fails with a transport-closed error.
func (t *Stdio) readLoop(stdout io.Reader) {
	defer func() {
		t.corr.Close()
		close(t.done)
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp rpc.Response
		if err := json.Unmarshal(line, &resp); err != nil {
			t.logger.Warn("discarding non-JSON line from provider stdout",
				slog.String("error", err.Error()))
			continue
		}

		switch {
		case resp.IsResponse():
			if !t.corr.Resolve(&resp) {
				t.logger.Debug("stray response", slog.Int64("id", *resp.ID))
			}
		case resp.IsNotification():
			t.logger.Debug("provider notification", slog.String("method", resp.Method))
		default:
			t.logger.Warn("message with neither id nor method from provider")
		}
	}

	if err := scanner.Err(); err != nil {
		t.logger.Debug("provider stdout closed", slog.String("error", err.Error()))
	}
}

// Close shuts the write side and fails all pending requests. It does not
// signal the process; the controller handles termination.
func (t *Stdio) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.stdin.Close()
		t.corr.Close()
	})
	return err
}

// Done is closed when the read loop has exited, which happens once the
// provider's stdout reaches EOF.
func (t *Stdio) Done() <-chan struct{} {
	return t.done
}
