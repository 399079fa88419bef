// Package cluster implements the per-host node bring-up state machine
// (C5/§4.5) and the cluster-level admission gate (C6/§4.6).
package cluster

import "errors"

// ErrHostUnresolvable is returned when a hostname fails DNS
// resolution during node registration (§7).
var ErrHostUnresolvable = errors.New("cluster: host is unresolvable")

// ErrInvalidConfiguration is returned when a configuration mutation
// would violate numberOfSeeds <= numberOfNodes, or would lower
// numberOfNodes below the current registered node count (§7). The
// caller is expected to log and retain the previous value.
var ErrInvalidConfiguration = errors.New("cluster: invalid configuration")

// ErrNodeCapReached is returned by Register when the cluster is
// already at numberOfNodes and the offer's host is unknown (§4.5).
var ErrNodeCapReached = errors.New("cluster: node count cap reached")
