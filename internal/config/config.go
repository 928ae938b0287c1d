// Package config loads the cluster description shared by every binary: the
// registry database location, the master address, and the ordered storage
// node list.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"distfs/internal/identity"
)

// DefaultPath is where the binaries look when no -config flag is given.
const DefaultPath = "machines.json"

type Config struct {
	Database     string   `json:"database"`
	Master       Endpoint `json:"master"`
	StorageNodes []string `json:"storage_nodes"`
}

type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Load reads and validates the cluster file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("config %s: missing database path", path)
	}
	if len(cfg.StorageNodes) == 0 {
		return nil, fmt.Errorf("config %s: no storage nodes", path)
	}
	for i, addr := range cfg.StorageNodes {
		if _, err := identity.ParseAddr(addr); err != nil {
			return nil, fmt.Errorf("config %s: storage node %d: %w", path, i, err)
		}
	}
	return &cfg, nil
}

// Node resolves the i-th storage node's identity.
func (c *Config) Node(i int) (identity.NodeID, error) {
	if i < 0 || i >= len(c.StorageNodes) {
		return identity.NodeID{}, fmt.Errorf("storage node index %d out of range (have %d)", i, len(c.StorageNodes))
	}
	return identity.ParseAddr(c.StorageNodes[i])
}

// Nodes resolves every storage node's identity.
func (c *Config) Nodes() ([]identity.NodeID, error) {
	out := make([]identity.NodeID, 0, len(c.StorageNodes))
	for i := range c.StorageNodes {
		id, err := c.Node(i)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
