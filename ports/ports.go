// Package ports resolves symbolic Cassandra port names to numeric
// ports, applying framework-level overrides on top of defaults (C1).
package ports

import "errors"

// ErrUnknownPort is returned when a requested port name is neither
// overridden nor defaulted. Per §7 this is a programming error and
// callers are expected to fail fast rather than recover from it.
var ErrUnknownPort = errors.New("ports: unknown port name")

// Default symbolic port names and their Cassandra-standard numeric
// defaults (§4.1).
const (
	StoragePort         = "storage_port"
	SSLStoragePort      = "ssl_storage_port"
	JMXPort             = "jmx_port"
	NativeTransportPort = "native_transport_port"
	RPCPort             = "rpc_port"
)

var defaults = map[string]int{
	StoragePort:         7000,
	SSLStoragePort:      7001,
	JMXPort:             7199,
	NativeTransportPort: 9042,
	RPCPort:             9160,
}

// Names returns the names of every port with a default, in a stable
// order (used by AllPorts).
func Names() []string {
	return []string{StoragePort, SSLStoragePort, JMXPort, NativeTransportPort, RPCPort}
}

// Registry resolves symbolic port names against a set of sparse
// overrides (typically FrameworkConfiguration.PortMappings).
type Registry struct {
	Overrides map[string]int
}

// New builds a Registry over the given overrides. A nil map is
// treated as "no overrides".
func New(overrides map[string]int) Registry {
	return Registry{Overrides: overrides}
}

// PortFor resolves name to a numeric port: the override if present,
// otherwise the default. Returns ErrUnknownPort if neither exists.
func (r Registry) PortFor(name string) (int, error) {
	if v, ok := r.Overrides[name]; ok {
		return v, nil
	}
	if v, ok := defaults[name]; ok {
		return v, nil
	}
	return 0, ErrUnknownPort
}

// AllPorts returns the numeric port for every default name, with
// overrides applied (§4.1).
func (r Registry) AllPorts() (map[string]int, error) {
	out := make(map[string]int, len(defaults))
	for _, name := range Names() {
		p, err := r.PortFor(name)
		if err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}
