// Package identity derives per-node filesystem and registry names from a
// storage node's host:port identity. The derivations are the contract shared
// with the registry layer: a registry table name must round-trip losslessly
// back to the node address it was built from.
package identity

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ErrInvalidIdentifier reports a host:port or table name that does not match
// the expected shape.
var ErrInvalidIdentifier = errors.New("invalid node identifier")

// NodeID is one storage node's network identity.
type NodeID struct {
	Host string
	Port int
}

func (id NodeID) String() string {
	return net.JoinHostPort(id.Host, strconv.Itoa(id.Port))
}

// StorageDir returns the directory this node stores its files under,
// e.g. storage_0.0.0.0_5000.
func (id NodeID) StorageDir() string {
	return fmt.Sprintf("storage_%s_%d", id.Host, id.Port)
}

// RegistryTable returns the node's registry table name,
// e.g. 0.0.0.0:5000 -> sn__0_0_0_0__5000. Dots map to single underscores;
// the double underscore separates the prefix, host and port fields.
func (id NodeID) RegistryTable() string {
	host := strings.ReplaceAll(id.Host, ".", "_")
	return fmt.Sprintf("sn__%s__%d", host, id.Port)
}

// ParseRegistryTable inverts RegistryTable:
// sn__0_0_0_0__5000 -> {0.0.0.0, 5000}.
func ParseRegistryTable(name string) (NodeID, error) {
	parts := strings.Split(name, "__")
	if len(parts) != 3 || parts[0] != "sn" || parts[1] == "" {
		return NodeID{}, fmt.Errorf("%w: table %q", ErrInvalidIdentifier, name)
	}
	port, err := strconv.Atoi(parts[2])
	if err != nil || port < 0 {
		return NodeID{}, fmt.Errorf("%w: table %q: bad port", ErrInvalidIdentifier, name)
	}
	return NodeID{
		Host: strings.ReplaceAll(parts[1], "_", "."),
		Port: port,
	}, nil
}

// ParseAddr splits a host:port string into a NodeID.
func ParseAddr(addr string) (NodeID, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return NodeID{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 {
		return NodeID{}, fmt.Errorf("%w: %q: bad port", ErrInvalidIdentifier, addr)
	}
	return NodeID{Host: host, Port: port}, nil
}
