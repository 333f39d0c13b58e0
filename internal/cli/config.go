// Copyright 2025 Mamba Contributors
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

package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML environment description consumed by solve.
type Config struct {
	// Platforms are the subdirs ingested per channel, e.g. linux-64 and
	// noarch. Defaults to [linux-64, noarch].
	Platforms []string `yaml:"platforms"`
	// ChannelAlias is the base URL short channel names resolve against.
	ChannelAlias string `yaml:"channel_alias"`
	// Channels are consulted in order.
	Channels []Channel `yaml:"channels"`
	// VirtualPackages describe host capabilities, e.g. __glibc 2.35.
	VirtualPackages []VirtualPackage `yaml:"virtual_packages"`
}

// Channel is one package source: a local mirror directory laid out as
// <path>/<platform>/repodata.json, plus the URL packages resolve against.
type Channel struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Path string `yaml:"path"`
}

// VirtualPackage is a synthetic record injected before solving.
type VirtualPackage struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Build   string `yaml:"build"`
}

// LoadConfig reads and validates an environment file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("config %q: no channels", path)
	}
	for i, ch := range cfg.Channels {
		if ch.Name == "" {
			return nil, fmt.Errorf("config %q: channel %d has no name", path, i)
		}
		if ch.Path == "" {
			return nil, fmt.Errorf("config %q: channel %q has no path", path, ch.Name)
		}
	}
	if len(cfg.Platforms) == 0 {
		cfg.Platforms = []string{"linux-64", "noarch"}
	}
	return &cfg, nil
}
