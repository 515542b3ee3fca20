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

package registry

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhalligan/toolgate/pkg/errors"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.json")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewStore(path, logger)
	require.NoError(t, err)
	return s
}

func processDef(name string) *Definition {
	return &Definition{
		Name:    name,
		Kind:    KindProcess,
		Command: "uvx",
		Args:    []string{"some-provider"},
		Env:     map[string]string{"TOKEN": "abc"},
	}
}

func TestCreateGeneratesID(t *testing.T) {
	s := testStore(t)

	created, err := s.Create(processDef("files"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.ID, "mcp-"), "id = %q", created.ID)
	assert.Len(t, created.ID, len("mcp-")+8)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	s := testStore(t)

	_, err := s.Create(processDef("files"))
	require.NoError(t, err)

	_, err = s.Create(processDef("files"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeAlreadyExists, errors.CodeOf(err))
}

func TestCreateValidation(t *testing.T) {
	s := testStore(t)

	tests := []struct {
		name string
		def  *Definition
	}{
		{"empty name", &Definition{Kind: KindProcess, Command: "npx"}},
		{"name starts with digit", &Definition{Name: "1abc", Kind: KindProcess, Command: "npx"}},
		{"name with space", &Definition{Name: "my server", Kind: KindProcess, Command: "npx"}},
		{"name too long", &Definition{Name: strings.Repeat("a", 65), Kind: KindProcess, Command: "npx"}},
		{"process without command", &Definition{Name: "ok", Kind: KindProcess}},
		{"network without url", &Definition{Name: "ok", Kind: KindNetwork}},
		{"unknown kind", &Definition{Name: "ok", Kind: "cloud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(tt.def)
			require.Error(t, err)
			assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))
		})
	}
}

func TestGetNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get("mcp-deadbeef")
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))
}

func TestListSortedByName(t *testing.T) {
	s := testStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := s.Create(processDef(name))
		require.NoError(t, err)
	}

	defs := s.List()
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "mid", defs[1].Name)
	assert.Equal(t, "zeta", defs[2].Name)
}

func TestUpdateMergesFields(t *testing.T) {
	s := testStore(t)
	created, err := s.Create(processDef("files"))
	require.NoError(t, err)

	desc := "serves local files"
	cmd := "npx"
	updated, err := s.Update(created.ID, Update{
		Description: &desc,
		Command:     &cmd,
		Args:        []string{"-y", "files-provider"},
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "files", updated.Name, "unset fields keep stored values")
	assert.Equal(t, "serves local files", updated.Description)
	assert.Equal(t, "npx", updated.Command)
	assert.Equal(t, []string{"-y", "files-provider"}, updated.Args)
	assert.Equal(t, map[string]string{"TOKEN": "abc"}, updated.Env)
}

func TestUpdateRejectsInvalidResult(t *testing.T) {
	s := testStore(t)
	created, err := s.Create(processDef("files"))
	require.NoError(t, err)

	bad := ""
	_, err = s.Update(created.ID, Update{Name: &bad})
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))

	// Failed update must not dirty the store.
	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "files", got.Name)
}

func TestDelete(t *testing.T) {
	s := testStore(t)
	created, err := s.Create(processDef("files"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(created.ID))
	_, err = s.Get(created.ID)
	assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))

	err = s.Delete(created.ID)
	assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.json")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s1, err := NewStore(path, logger)
	require.NoError(t, err)
	created, err := s1.Create(&Definition{
		Name: "remote", Kind: KindNetwork,
		URL: "https://tools.example.com", APIKey: "k",
	})
	require.NoError(t, err)

	s2, err := NewStore(path, logger)
	require.NoError(t, err)
	got, err := s2.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "remote", got.Name)
	assert.Equal(t, KindNetwork, got.Kind)
	assert.Equal(t, "https://tools.example.com", got.URL)
}

func TestFileIsFlatObjectKeyedByID(t *testing.T) {
	s := testStore(t)
	created, err := s.Create(processDef("files"))
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, created.ID)
	assert.Equal(t, "files", raw[created.ID]["name"])
	assert.Equal(t, "process", raw[created.ID]["type"])
}

func TestReloadPicksUpExternalEdit(t *testing.T) {
	s := testStore(t)

	ext := map[string]*Definition{
		"mcp-12345678": {Name: "edited", Kind: KindNetwork, URL: "http://localhost:3500"},
	}
	data, err := json.Marshal(ext)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), data, 0o600))

	require.NoError(t, s.Reload())
	got, err := s.Get("mcp-12345678")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Name)
	assert.Equal(t, "mcp-12345678", got.ID, "map key is authoritative for the id")
}

func TestMissingFileIsEmptyRegistry(t *testing.T) {
	s := testStore(t)
	assert.Empty(t, s.List())
}

func TestReturnedDefinitionsAreCopies(t *testing.T) {
	s := testStore(t)
	created, err := s.Create(processDef("files"))
	require.NoError(t, err)

	created.Env["TOKEN"] = "mutated"
	created.Args[0] = "mutated"

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Env["TOKEN"])
	assert.Equal(t, "some-provider", got.Args[0])
}

func TestWatcherReloadsOnExternalChange(t *testing.T) {
	s := testStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w, err := NewWatcher(s, logger)
	require.NoError(t, err)
	defer w.Close()

	ext := map[string]*Definition{
		"mcp-aabbccdd": {Name: "external", Kind: KindNetwork, URL: "http://localhost:3500"},
	}
	data, err := json.Marshal(ext)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), data, 0o600))

	assert.Eventually(t, func() bool {
		_, err := s.Get("mcp-aabbccdd")
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
}
