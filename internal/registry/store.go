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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mhalligan/toolgate/pkg/errors"
)

// Store is the provider registry backed by one JSON file: an object
// mapping provider id to definition. Writes go through a temp file and
// rename so a crash never leaves a truncated registry.
type Store struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewStore opens the registry at path, creating parent directories as
// needed. A missing file is an empty registry, not an error.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfig, "create registry directory")
	}

	s := &Store{
		path:   path,
		logger: logger,
		defs:   make(map[string]*Definition),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file's location.
func (s *Store) Path() string {
	return s.path
}

// Reload replaces the in-memory view with the file's current contents.
// Used at startup and by the file watcher on external edits.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.defs = make(map[string]*Definition)
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.CodeConfig, "read registry file")
	}

	var defs map[string]*Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return errors.Wrap(err, errors.CodeConfig, "parse registry file")
	}

	// Keys are authoritative for ids: a hand-edited file may omit the
	// embedded id field.
	for id, def := range defs {
		def.ID = id
	}

	s.mu.Lock()
	s.defs = defs
	s.mu.Unlock()
	return nil
}

// Create validates and stores a new definition, generating its id.
// Reusing the name of an existing provider is rejected.
func (s *Store) Create(def *Definition) (*Definition, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.defs {
		if existing.Name == def.Name {
			return nil, errors.ErrProviderExists(def.Name)
		}
	}

	stored := def.clone()
	if stored.ID == "" {
		stored.ID = newID()
	}
	if _, exists := s.defs[stored.ID]; exists {
		return nil, errors.ErrProviderExists(stored.ID)
	}

	s.defs[stored.ID] = stored
	if err := s.saveLocked(); err != nil {
		delete(s.defs, stored.ID)
		return nil, err
	}

	s.logger.Info("provider registered",
		slog.String("provider", stored.ID),
		slog.String("name", stored.Name))
	return stored.clone(), nil
}

// Get returns the definition for id.
func (s *Store) Get(id string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.defs[id]
	if !ok {
		return nil, errors.ErrProviderNotFound(id)
	}
	return def.clone(), nil
}

// List returns all definitions sorted by name.
func (s *Store) List() []*Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Definition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Update is a partial definition change. Nil fields keep their stored
// values; slices and maps replace wholesale when non-nil.
type Update struct {
	Name        *string
	Description *string
	Kind        *Kind
	Command     *string
	Args        []string
	Env         map[string]string
	URL         *string
	APIKey      *string
}

// Update merges upd into the stored definition for id. The id itself is
// immutable.
func (s *Store) Update(id string, upd Update) (*Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.defs[id]
	if !ok {
		return nil, errors.ErrProviderNotFound(id)
	}

	merged := def.clone()
	if upd.Name != nil {
		merged.Name = *upd.Name
	}
	if upd.Description != nil {
		merged.Description = *upd.Description
	}
	if upd.Kind != nil {
		merged.Kind = *upd.Kind
	}
	if upd.Command != nil {
		merged.Command = *upd.Command
	}
	if upd.Args != nil {
		merged.Args = append([]string(nil), upd.Args...)
	}
	if upd.Env != nil {
		merged.Env = make(map[string]string, len(upd.Env))
		for k, v := range upd.Env {
			merged.Env[k] = v
		}
	}
	if upd.URL != nil {
		merged.URL = *upd.URL
	}
	if upd.APIKey != nil {
		merged.APIKey = *upd.APIKey
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}

	s.defs[id] = merged
	if err := s.saveLocked(); err != nil {
		s.defs[id] = def
		return nil, err
	}
	return merged.clone(), nil
}

// Delete removes the definition for id. The caller is responsible for
// stopping a running instance first.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.defs[id]
	if !ok {
		return errors.ErrProviderNotFound(id)
	}

	delete(s.defs, id)
	if err := s.saveLocked(); err != nil {
		s.defs[id] = def
		return err
	}

	s.logger.Info("provider removed", slog.String("provider", id))
	return nil
}

// saveLocked writes the registry atomically. Callers hold s.mu.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.defs, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "marshal registry")
	}
	data = append(data, '\n')

	tmp := fmt.Sprintf("%s.tmp", s.path)
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, errors.CodeConfig, "write registry file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, errors.CodeConfig, "replace registry file")
	}
	return nil
}
