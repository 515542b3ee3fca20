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

// Package secrets stores provider bearer credentials in the system
// keychain (macOS Keychain, Linux Secret Service, Windows Credential
// Manager) so they stay out of the registry file.
package secrets

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const service = "toolgate"

// ErrNotFound is returned when no credential is stored for a provider.
var ErrNotFound = errors.New("credential not found")

// Store saves a provider's bearer credential.
func Store(providerID, credential string) error {
	if err := keyring.Set(service, providerID, credential); err != nil {
		return fmt.Errorf("store credential for %s: %w", providerID, err)
	}
	return nil
}

// Lookup returns the stored credential for a provider.
func Lookup(providerID string) (string, error) {
	value, err := keyring.Get(service, providerID)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read credential for %s: %w", providerID, err)
	}
	return value, nil
}

// Delete removes a provider's stored credential. Deleting a credential
// that does not exist is not an error.
func Delete(providerID string) error {
	err := keyring.Delete(service, providerID)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete credential for %s: %w", providerID, err)
	}
	return nil
}
