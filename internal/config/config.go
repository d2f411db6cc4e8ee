// Copyright 2026 The SNI Proxy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the proxy's static YAML configuration once at
// startup; there is no reload.
package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/quietwire/sniproxy/internal/policy"
)

// Config is the root configuration object, loaded once from a YAML file.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Logging LoggingConfig `yaml:"logging"`
	Policy  []PolicyEntry `yaml:"policy"`
	DoH     DoHConfig     `yaml:"doh"`
}

type ServerConfig struct {
	Host    string `yaml:"host,omitempty"`
	Port    uint16 `yaml:"port,omitempty"`
	Backlog int    `yaml:"backlog,omitempty"`
}

type ClientConfig struct {
	ConnTimeoutMs int `yaml:"cnnTimeout,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

type PolicyEntry struct {
	Match  string `yaml:"match"`
	IP     string `yaml:"ip,omitempty"`
	Port   uint16 `yaml:"port,omitempty"`
	IPType string `yaml:"ipType,omitempty"`
}

type DoHConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Defaults match §6 of the specification exactly.
const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 9933
	DefaultBacklog       = 128
	DefaultConnTimeoutMs = 3000
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultDoHEndpoint   = "https://cloudflare-dns.com/dns-query"
)

// Load reads and parses the YAML file at path, filling in unset fields
// with the defaults named above.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills any unset field with the default named above. Load
// calls this automatically; callers that build a Config without a file
// (e.g. an entry point running with no -config flag) must call it
// themselves.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Backlog == 0 {
		c.Server.Backlog = DefaultBacklog
	}
	if c.Client.ConnTimeoutMs == 0 {
		c.Client.ConnTimeoutMs = DefaultConnTimeoutMs
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.DoH.Endpoint == "" {
		c.DoH.Endpoint = DefaultDoHEndpoint
	}
}

// ConnTimeout returns the upstream connect timeout as a time.Duration.
func (c *Config) ConnTimeout() time.Duration {
	return time.Duration(c.Client.ConnTimeoutMs) * time.Millisecond
}

// ListenAddr returns the "host:port" pair the accept loop should bind to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(int(c.Server.Port)))
}

// PolicyProvider builds a policy.Provider from the configured policy
// table.
func (c *Config) PolicyProvider() policy.Provider {
	entries := make([]policy.Entry, len(c.Policy))
	for i, e := range c.Policy {
		entries[i] = policy.Entry{Match: e.Match, IP: e.IP, Port: e.Port, IPType: e.IPType}
	}
	return policy.NewTrie(entries)
}
