package cluster

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/golang/glog"

	"github.com/gufranmmu/cassandra-mesos-deprecated/clock"
	"github.com/gufranmmu/cassandra-mesos-deprecated/model"
	"github.com/gufranmmu/cassandra-mesos-deprecated/ports"
)

// serverConfigPortNames are the four cassandra.yaml-level ports
// carried in a server launch's configuration block; jmx_port is
// deliberately excluded since JMX is addressed separately via
// Node.JMXConnect (§4.5).
var serverConfigPortNames = []string{
	ports.StoragePort,
	ports.SSLStoragePort,
	ports.NativeTransportPort,
	ports.RPCPort,
}

// LaunchServerTask builds the CASSANDRA_SERVER_RUN launch task for
// node (§4.5: "launch server task") and stamps
// LastServerLaunchTimestamp. Callers must have already confirmed
// admission via CanLaunchServer and resource sufficiency.
func (m *Manager) LaunchServerTask(node model.Node, cfg model.FrameworkConfiguration, nodes []model.Node) (model.Node, model.LaunchTask, error) {
	if node.Executor == nil {
		return node, model.LaunchTask{}, fmt.Errorf("cluster: cannot launch server task before executor is assigned")
	}
	reg := ports.New(cfg.PortMappings)
	allPorts, err := reg.AllPorts()
	if err != nil {
		return node, model.LaunchTask{}, err
	}

	serverPorts := make(map[string]int, len(serverConfigPortNames))
	for _, name := range serverConfigPortNames {
		serverPorts[name] = allPorts[name]
	}

	seeds := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Seed {
			seeds = append(seeds, n.IP)
		}
	}

	heapNewSize := int(cfg.CPUCores * 100)
	env := map[string]string{
		"JMX_PORT":      strconv.Itoa(node.JMXConnect.Port),
		"MAX_HEAP_SIZE": fmt.Sprintf("%dm", cfg.MemMb),
		"HEAP_NEWSIZE":  fmt.Sprintf("%dm", heapNewSize),
	}

	taskID := node.Executor.ExecutorID + ".server"
	node.ServerTask = &model.TaskDescriptor{TaskID: taskID}
	if err := m.updateNode(node); err != nil {
		return node, model.LaunchTask{}, err
	}

	task := model.LaunchTask{
		TaskID:     taskID,
		ExecutorID: node.Executor.ExecutorID,
		Hostname:   node.Hostname,
		Resources: model.ResourceAmounts{
			CPU:    cfg.CPUCores,
			MemMb:  cfg.MemMb,
			DiskMb: cfg.DiskMb,
		},
		Ports:   allPorts,
		Payload: model.PayloadCassandraServer,
		ServerConfig: &model.ServerConfig{
			ClusterName:      cfg.FrameworkName,
			BroadcastAddress: node.IP,
			RPCAddress:       node.IP,
			ListenAddress:    node.IP,
			Seeds:            seeds,
			Ports:            serverPorts,
			Env:              env,
		},
	}

	nowMs := clock.NowMs(m.Clock)
	if err := m.LastLaunch.Set(nowMs); err != nil {
		return node, model.LaunchTask{}, err
	}
	log.Infof("cluster: launching server task %s for host %s (seeds=%s)", taskID, node.Hostname, strings.Join(seeds, ","))
	return node, task, nil
}

// ShouldSubmitHealthCheck reports whether a health check is due for
// executorID per §4.5: periodic checks are disabled when
// healthCheckIntervalSeconds <= 0, and otherwise due when there is no
// prior entry or the last entry is older than the interval.
func (m *Manager) ShouldSubmitHealthCheck(executorID string, cfg model.FrameworkConfiguration) (bool, error) {
	if cfg.HealthCheckIntervalSeconds <= 0 {
		return false, nil
	}
	last, ok, err := m.Health.LastEntry(executorID)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	nowMs := clock.NowMs(m.Clock)
	return nowMs-last.TimestampMs > int64(cfg.HealthCheckIntervalSeconds)*1000, nil
}

// RecordHealthCheck appends a health-check result to the history,
// stamping it with the current instant so ShouldSubmitHealthCheck's
// interval gate has a real baseline to measure against. Per §7/§9(a),
// unhealthy results are recorded only: they never trigger removal in
// this version.
func (m *Manager) RecordHealthCheck(entry model.HealthCheckHistoryEntry) error {
	entry.TimestampMs = clock.NowMs(m.Clock)
	return m.Health.Append(entry)
}
