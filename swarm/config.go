package swarm

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	defaultHandshakeTimeout = 30
	defaultRequestTimeout   = 30
	defaultRegistryTTL      = 3600
)

// AgentConfig holds the identity an agent advertises during handshakes.
type AgentConfig struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role,omitempty"`
	Version string `json:"version,omitempty"`
}

// Merge applies non-zero values from source into c.
func (c *AgentConfig) Merge(source *AgentConfig) {
	if source.ID != "" {
		c.ID = source.ID
	}
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.Role != "" {
		c.Role = source.Role
	}
	if source.Version != "" {
		c.Version = source.Version
	}
}

// RegistryConfig selects the capability registry backend. Backend is either
// "memory" or "redis"; Addr and TTL apply to the redis backend only.
type RegistryConfig struct {
	Backend string `json:"backend,omitempty"`
	Addr    string `json:"addr,omitempty"`
	TTL     int    `json:"ttl,omitempty"` // seconds
}

// Merge applies non-zero values from source into c.
func (c *RegistryConfig) Merge(source *RegistryConfig) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.Addr != "" {
		c.Addr = source.Addr
	}
	if source.TTL > 0 {
		c.TTL = source.TTL
	}
}

// Config holds initialization parameters for an agent and its subsystems.
// Timeouts are in seconds.
type Config struct {
	Agent            AgentConfig    `json:"agent"`
	HandshakeTimeout int            `json:"handshake_timeout,omitempty"`
	RequestTimeout   int            `json:"request_timeout,omitempty"`
	Registry         RegistryConfig `json:"registry"`
	Observer         string         `json:"observer,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Agent:            AgentConfig{Role: "worker", Version: "1.0.0"},
		HandshakeTimeout: defaultHandshakeTimeout,
		RequestTimeout:   defaultRequestTimeout,
		Registry:         RegistryConfig{Backend: "memory", TTL: defaultRegistryTTL},
		Observer:         "slog",
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Agent.Merge(&source.Agent)
	c.Registry.Merge(&source.Registry)

	if source.HandshakeTimeout > 0 {
		c.HandshakeTimeout = source.HandshakeTimeout
	}
	if source.RequestTimeout > 0 {
		c.RequestTimeout = source.RequestTimeout
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
