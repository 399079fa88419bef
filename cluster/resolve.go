package cluster

import (
	"net"
	"strings"
)

// Resolver resolves a hostname to an IP and, for loopback hosts,
// allocates a free JMX port. It is injected so tests never touch DNS
// or real sockets (§5: "Suspension points: only... the DNS/free-port
// lookups during node registration").
type Resolver interface {
	// ResolveIP resolves hostname to a single IP address.
	ResolveIP(hostname string) (string, error)
	// IsLoopback reports whether ip is a loopback address.
	IsLoopback(ip string) bool
	// FreeLoopbackPort opens and immediately closes a listening socket
	// on port 0 to discover an OS-assigned free port. The socket is
	// released before this returns (§5); there is a well-known TOCTOU
	// race against whatever later binds the port (§9), accepted here.
	FreeLoopbackPort() (int, error)
}

// SystemResolver is the production Resolver, backed by net.LookupHost
// and a transient net.Listen("tcp", "127.0.0.1:0").
type SystemResolver struct{}

// ResolveIP implements Resolver.
func (SystemResolver) ResolveIP(hostname string) (string, error) {
	addrs, err := net.LookupHost(hostname)
	if err != nil {
		return "", ErrHostUnresolvable
	}
	if len(addrs) == 0 {
		return "", ErrHostUnresolvable
	}
	return addrs[0], nil
}

// IsLoopback implements Resolver.
func (SystemResolver) IsLoopback(ip string) bool {
	if ip == "localhost" || strings.HasPrefix(ip, "127.") {
		return true
	}
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}

// FreeLoopbackPort implements Resolver.
func (SystemResolver) FreeLoopbackPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
