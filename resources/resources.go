// Package resources implements the resource matcher (C4/§4.4): given
// an offer and a set of requirements, it reports every shortfall as a
// human-readable string, or an empty list if the offer is sufficient.
package resources

import (
	"fmt"

	"github.com/gufranmmu/cassandra-mesos-deprecated/model"
)

// Need is a resource requirement plus the named ports that must be
// present in the offer.
type Need struct {
	CPU    float64
	MemMb  float64
	DiskMb float64
	Ports  map[string]int
}

// HasResources returns one shortfall message per failing constraint,
// in the order: cpu, mem, disk, then one line per missing named port.
// An empty result means the offer satisfies every requirement.
//
// Per §4.4/§9(c) the comparisons are strictly-greater-than, not
// greater-or-equal: this is intentionally conservative and preserved
// as-is for behavioral fidelity with the source this was distilled
// from.
func HasResources(offer model.Offer, need Need) []string {
	var shortfalls []string

	if !(offer.CPUs > need.CPU) {
		shortfalls = append(shortfalls, fmt.Sprintf(
			"insufficient cpus: offer has %.2f, need strictly more than %.2f", offer.CPUs, need.CPU))
	}
	if !(offer.MemMb > need.MemMb) {
		shortfalls = append(shortfalls, fmt.Sprintf(
			"insufficient mem: offer has %.2f mb, need strictly more than %.2f mb", offer.MemMb, need.MemMb))
	}
	if !(offer.DiskMb > need.DiskMb) {
		shortfalls = append(shortfalls, fmt.Sprintf(
			"insufficient disk: offer has %.2f mb, need strictly more than %.2f mb", offer.DiskMb, need.DiskMb))
	}

	for _, name := range sortedKeys(need.Ports) {
		port := need.Ports[name]
		if !offerHasPort(offer, port) {
			shortfalls = append(shortfalls, fmt.Sprintf(
				"missing port %s=%d in offer", name, port))
		}
	}

	return shortfalls
}

func offerHasPort(offer model.Offer, port int) bool {
	for _, r := range offer.Ports {
		if r.Contains(port) {
			return true
		}
	}
	return false
}

// sortedKeys gives stable shortfall ordering across otherwise
// unordered map iteration, matching the spec's requirement of "one
// line per missing port" in a deterministic, testable order.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
