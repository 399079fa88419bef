package cluster

import (
	"fmt"

	log "github.com/golang/glog"

	"github.com/gufranmmu/cassandra-mesos-deprecated/clock"
	"github.com/gufranmmu/cassandra-mesos-deprecated/model"
)

// AdmissionResult is the outcome of the cluster-level admission gate
// (C6/§4.6). A result with Allowed=false and a non-empty Reason is
// a "park" decision: the caller must not throw, only log and decline
// to launch.
type AdmissionResult struct {
	Allowed bool
	Reason  string
}

func parked(format string, args ...interface{}) AdmissionResult {
	return AdmissionResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// CanLaunchServer evaluates the three admission conditions of §4.6
// for node, given the full node list and current configuration. It
// does not mutate LastServerLaunchTimestamp; the caller stamps it
// only after actually selecting the task for launch.
func (m *Manager) CanLaunchServer(node model.Node, cfg model.FrameworkConfiguration, nodes []model.Node) (AdmissionResult, error) {
	meta, err := m.State.ExecutorMetadata()
	if err != nil {
		return AdmissionResult{}, err
	}

	// 1. Seed-first.
	if len(meta) < cfg.NumberOfSeeds && !node.Seed {
		return parked("seed-first: only %d of %d required seeds are known; parking non-seed %s",
			len(meta), cfg.NumberOfSeeds, node.Hostname), nil
	}

	// 2. Launch throttle.
	lastLaunchMs, err := m.LastLaunch.Get()
	if err != nil {
		return AdmissionResult{}, err
	}
	throttleSeconds := cfg.BootstrapGraceTimeSeconds
	if cfg.HealthCheckIntervalSeconds > throttleSeconds {
		throttleSeconds = cfg.HealthCheckIntervalSeconds
	}
	nowMs := clock.NowMs(m.Clock)
	if !(nowMs > lastLaunchMs+int64(throttleSeconds)*1000) {
		return parked("launch throttle: %dms have not elapsed since last server launch at %d",
			int64(throttleSeconds)*1000, lastLaunchMs), nil
	}

	// 3. Topology quiescence, only for non-seed launches.
	if !node.Seed {
		result, err := m.checkTopologyQuiescence(nodes)
		if err != nil {
			return AdmissionResult{}, err
		}
		if !result.Allowed {
			return result, nil
		}
	}

	return AdmissionResult{Allowed: true}, nil
}

func (m *Manager) checkTopologyQuiescence(nodes []model.Node) (AdmissionResult, error) {
	lastPerExecutor, err := m.Health.LastEntryPerExecutor()
	if err != nil {
		return AdmissionResult{}, err
	}

	healthySeedNormal := false
	for _, n := range nodes {
		if n.ServerTask == nil || n.Executor == nil {
			continue
		}
		entry, ok := lastPerExecutor[n.Executor.ExecutorID]
		if !ok {
			continue
		}
		d := entry.Details
		if d.Healthy && (!d.Joined || d.OperationMode != "NORMAL") {
			return parked("topology not quiescent: node %s is healthy but transitional (joined=%v mode=%s)",
				n.Hostname, d.Joined, d.OperationMode), nil
		}
		if n.Seed && d.Healthy && d.Joined && d.OperationMode == "NORMAL" {
			healthySeedNormal = true
		}
	}
	if !healthySeedNormal {
		return parked("topology not quiescent: no seed node is healthy, joined, and NORMAL yet"), nil
	}
	return AdmissionResult{Allowed: true}, nil
}

// logParked logs a single admission park decision for hostname. Nothing
// calls it: decision.Engine.Decide logs its park decisions itself, in
// the same form.
func logParked(hostname string, result AdmissionResult) {
	log.Infof("cluster: parking server launch for %s: %s", hostname, result.Reason)
}
