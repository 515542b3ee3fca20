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

// Package registry persists provider definitions in a flat JSON file
// keyed by provider id, and keeps an in-memory view that callers read
// through a mutex.
package registry

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/mhalligan/toolgate/pkg/errors"
)

// Kind distinguishes providers the controller spawns from providers it
// only connects to.
type Kind string

const (
	// KindProcess providers are launched as child processes and spoken
	// to over stdio or a probed local HTTP port.
	KindProcess Kind = "process"
	// KindNetwork providers already exist at a URL; only the SSE
	// transport applies.
	KindNetwork Kind = "network"
)

// Definition is one provider's stored configuration.
type Definition struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Kind        Kind              `json:"type"`
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	URL         string            `json:"url,omitempty"`
	APIKey      string            `json:"apiKey,omitempty"`
}

var nameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// Validate checks the definition for internal consistency. The stored
// file is trusted on load; validation runs on create and update.
func (d *Definition) Validate() error {
	if !nameRe.MatchString(d.Name) {
		return errors.Newf(errors.CodeValidation,
			"invalid provider name %q: must start with a letter and contain only letters, digits, '_' or '-' (max 64 chars)", d.Name)
	}

	switch d.Kind {
	case KindProcess:
		if d.Command == "" {
			return errors.New(errors.CodeValidation, "process provider requires a command")
		}
	case KindNetwork:
		if d.URL == "" {
			return errors.New(errors.CodeValidation, "network provider requires a url")
		}
	default:
		return errors.Newf(errors.CodeValidation, "unknown provider type %q", d.Kind)
	}
	return nil
}

// newID generates a provider id: a short uuid fragment with a fixed
// prefix, enough to be unique within one registry file.
func newID() string {
	return fmt.Sprintf("mcp-%s", uuid.NewString()[:8])
}

// clone returns a deep copy so callers cannot mutate the store's view.
func (d *Definition) clone() *Definition {
	out := *d
	if d.Args != nil {
		out.Args = append([]string(nil), d.Args...)
	}
	if d.Env != nil {
		out.Env = make(map[string]string, len(d.Env))
		for k, v := range d.Env {
			out.Env[k] = v
		}
	}
	return &out
}
