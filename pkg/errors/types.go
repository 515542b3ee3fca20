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

// Package errors defines the coded error taxonomy shared by the provider
// controller, the transports, and the tool bridge. Every failure that
// crosses a component boundary is wrapped in an *Error carrying one of the
// codes below, so callers can branch on the category without string
// matching.
package errors

import (
	"fmt"
)

// Code classifies a provider error.
type Code string

const (
	// CodeConfig indicates a malformed provider definition or configuration file.
	CodeConfig Code = "CONFIG"
	// CodeNotFound indicates an unknown provider id.
	CodeNotFound Code = "NOT_FOUND"
	// CodeAlreadyExists indicates a duplicate provider id on create.
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	// CodeValidation indicates invalid user input.
	CodeValidation Code = "VALIDATION"
	// CodeLaunch indicates the provider process could not be spawned.
	CodeLaunch Code = "LAUNCH"
	// CodeHandshake indicates a malformed or error-carrying initialize response.
	CodeHandshake Code = "HANDSHAKE"
	// CodeProbeTimeout indicates the health probe window elapsed without success.
	CodeProbeTimeout Code = "PROBE_TIMEOUT"
	// CodeRequestTimeout indicates no matching response arrived within the deadline.
	CodeRequestTimeout Code = "REQUEST_TIMEOUT"
	// CodeTransport indicates a connection, stream, or framing failure.
	CodeTransport Code = "TRANSPORT"
	// CodeProtocol indicates a well-formed error object in a response.
	CodeProtocol Code = "PROTOCOL"
	// CodeNotRunning indicates an operation requiring a Running provider.
	CodeNotRunning Code = "NOT_RUNNING"
	// CodeInternal indicates an invariant violation. These should fail loud
	// in testing; they are never expected in normal operation.
	CodeInternal Code = "INTERNAL"
)

// Error is the coded error type used across the provider subsystem.
type Error struct {
	// Code is the error category.
	Code Code

	// Message is the primary, user-facing description.
	Message string

	// Detail provides additional context, usually the remote or OS error text.
	Detail string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches detail text and returns the error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithCause attaches the underlying error and returns the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	if e.Detail == "" && cause != nil {
		e.Detail = cause.Error()
	}
	return e
}

// Wrap converts err into an *Error with the given code unless it already
// is one, in which case the original is returned unchanged so the first
// classification wins.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	if coded, ok := err.(*Error); ok {
		return coded
	}
	return New(code, message).WithCause(err)
}
