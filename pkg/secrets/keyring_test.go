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

package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestStoreLookupDelete(t *testing.T) {
	keyring.MockInit()

	require.NoError(t, Store("mcp-11111111", "tok-abc"))

	got, err := Lookup("mcp-11111111")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", got)

	require.NoError(t, Delete("mcp-11111111"))
	_, err = Lookup("mcp-11111111")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupMissing(t *testing.T) {
	keyring.MockInit()

	_, err := Lookup("mcp-00000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMissingIsNoop(t *testing.T) {
	keyring.MockInit()

	assert.NoError(t, Delete("mcp-00000000"))
}
