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

// Package config loads the application configuration from the XDG
// config directory. All fields have working defaults; a missing config
// file is not an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Registry RegistryConfig `yaml:"registry"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// RegistryConfig controls where provider definitions are stored.
type RegistryConfig struct {
	// Path overrides the default registry location.
	Path string `yaml:"path"`
	// Watch reloads the registry when the file changes on disk.
	Watch bool `yaml:"watch"`
}

// BridgeConfig controls tool call rate limiting.
type BridgeConfig struct {
	CallsPerSecond float64 `yaml:"calls_per_second"`
	Burst          int     `yaml:"burst"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Registry: RegistryConfig{Watch: true},
		Bridge:   BridgeConfig{CallsPerSecond: 10, Burst: 20},
	}
}

// Load reads the config file at path, layering it over the defaults. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault reads the config from the XDG config path.
func LoadDefault() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

func (c *Config) validate() error {
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Bridge.CallsPerSecond <= 0 {
		return fmt.Errorf("bridge.calls_per_second must be > 0")
	}
	if c.Bridge.Burst <= 0 {
		return fmt.Errorf("bridge.burst must be > 0")
	}
	return nil
}

// RegistryPath resolves the registry location, falling back to the XDG
// data directory.
func (c *Config) RegistryPath() (string, error) {
	if c.Registry.Path != "" {
		return c.Registry.Path, nil
	}
	return DefaultRegistryPath()
}
