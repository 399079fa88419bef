// Package store implements the persisted, typed containers the
// scheduler core depends on (C3/§4.3): a small Backend interface over
// a key-value blob store, and typed accessors layered on top of it
// for each of the five persisted records named in §6.
package store

import "errors"

// ErrStateCorrupt is returned when a persisted blob cannot be decoded.
// Per §7 this is fatal to the scheduler and must surface upward.
var ErrStateCorrupt = errors.New("store: persisted state is corrupt")

// Backend is the external key-value contract (§6): durable,
// read-your-writes storage of opaque blobs by stable key.
type Backend interface {
	// Get reads the current blob for key. ok is false if no blob has
	// ever been written for key.
	Get(key string) (data []byte, ok bool, err error)
	// Set writes the already-encoded data for key, overwriting any previous
	// value. It returns only after the backend has acknowledged the
	// write.
	Set(key string, data []byte) error
}

// Keys used by the core (§6).
const (
	KeyClusterState       = "CassandraClusterState"
	KeyHealthCheckHistory = "CassandraClusterHealthCheckHistory"
	KeyFrameworkConfig    = "CassandraFrameworkConfiguration"
	KeyClusterJobs        = "CassandraClusterJobs"
	KeyExecutorCounter    = "ExecutorCounter"
	KeyLastServerLaunch   = "LastServerLaunchTimestamp"
)
