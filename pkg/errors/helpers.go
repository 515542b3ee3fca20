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

package errors

import (
	stderrors "errors"
	"time"
)

// CodeOf returns the code carried by err, or CodeInternal when err is not
// a coded error.
func CodeOf(err error) Code {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// ErrProviderNotFound creates a NOT_FOUND error for an unknown provider id.
func ErrProviderNotFound(id string) *Error {
	return Newf(CodeNotFound, "provider %q not found", id)
}

// ErrProviderExists creates an ALREADY_EXISTS error for a duplicate id.
func ErrProviderExists(id string) *Error {
	return Newf(CodeAlreadyExists, "provider %q already exists", id)
}

// ErrNotRunning creates a NOT_RUNNING error for the given provider id.
func ErrNotRunning(id string) *Error {
	return Newf(CodeNotRunning, "provider %q is not running", id)
}

// ErrLaunch creates a LAUNCH error for a spawn failure.
func ErrLaunch(command string, cause error) *Error {
	return Newf(CodeLaunch, "failed to launch %q", command).WithCause(cause)
}

// ErrCommandNotFound creates a LAUNCH error for a missing executable.
func ErrCommandNotFound(command string) *Error {
	return Newf(CodeLaunch, "command %q not found in PATH", command)
}

// ErrHandshake creates a HANDSHAKE error.
func ErrHandshake(cause error) *Error {
	return New(CodeHandshake, "protocol handshake failed").WithCause(cause)
}

// ErrProbeTimeout creates a PROBE_TIMEOUT error for the given window.
func ErrProbeTimeout(window time.Duration) *Error {
	return Newf(CodeProbeTimeout, "provider did not become healthy within %s", window)
}

// ErrRequestTimeout creates a REQUEST_TIMEOUT error for a request id.
func ErrRequestTimeout(id int64) *Error {
	return Newf(CodeRequestTimeout, "request %d timed out", id)
}

// ErrTransportClosed creates a TRANSPORT error for a torn-down transport.
// All pending requests fail with this when a transport closes.
func ErrTransportClosed() *Error {
	return New(CodeTransport, "transport closed")
}

// ErrProtocol creates a PROTOCOL error preserving the remote code and message.
func ErrProtocol(remoteCode int, message string) *Error {
	return Newf(CodeProtocol, "provider returned error %d", remoteCode).WithDetail(message)
}
