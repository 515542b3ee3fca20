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
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  New(CodeNotRunning, "provider \"fs\" is not running"),
			want: "provider \"fs\" is not running",
		},
		{
			name: "message with detail",
			err:  New(CodeTransport, "send failed").WithDetail("connection refused"),
			want: "send failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := New(CodeTransport, "read failed").WithCause(cause)

	require.True(t, stderrors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, cause.Error(), err.Detail)
}

func TestWrap_PreservesExistingCode(t *testing.T) {
	inner := New(CodeProtocol, "provider returned error -32601")
	wrapped := Wrap(fmt.Errorf("call failed: %w", inner), CodeTransport, "call failed")

	// Wrap only short-circuits when err itself is *Error; a fmt-wrapped
	// coded error is reclassified.
	assert.Equal(t, CodeTransport, wrapped.Code)

	direct := Wrap(inner, CodeTransport, "call failed")
	assert.Equal(t, CodeProtocol, direct.Code)
	assert.Same(t, inner, direct)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(ErrProviderNotFound("x")))
	assert.Equal(t, CodeNotFound, CodeOf(fmt.Errorf("lookup: %w", ErrProviderNotFound("x"))))
	assert.Equal(t, CodeInternal, CodeOf(io.EOF))
}

func TestHasCode(t *testing.T) {
	err := ErrNotRunning("github")
	assert.True(t, HasCode(err, CodeNotRunning))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(nil, CodeNotRunning))
}

func TestHelperConstructors(t *testing.T) {
	assert.Equal(t, CodeAlreadyExists, ErrProviderExists("a").Code)
	assert.Equal(t, CodeLaunch, ErrCommandNotFound("uvx").Code)
	assert.Equal(t, CodeHandshake, ErrHandshake(io.EOF).Code)
	assert.Equal(t, CodeRequestTimeout, ErrRequestTimeout(7).Code)
	assert.Equal(t, CodeTransport, ErrTransportClosed().Code)

	perr := ErrProtocol(-32601, "method not found")
	assert.Equal(t, CodeProtocol, perr.Code)
	assert.Contains(t, perr.Error(), "method not found")
}
