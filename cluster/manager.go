package cluster

import (
	"fmt"

	log "github.com/golang/glog"

	"github.com/gufranmmu/cassandra-mesos-deprecated/clock"
	"github.com/gufranmmu/cassandra-mesos-deprecated/model"
	"github.com/gufranmmu/cassandra-mesos-deprecated/ports"
	"github.com/gufranmmu/cassandra-mesos-deprecated/store"
)

// Manager owns the per-host node lifecycle (C5) and the admission
// gate (C6). All mutations flow through the injected stores so the
// scheduler is crash-safe (§4.3); Manager itself holds no long-lived
// mutable state beyond what it reads fresh from the stores on each
// call (§5).
type Manager struct {
	State      *store.ClusterStateStore
	Config     *store.FrameworkConfigStore
	Health     *store.HealthHistoryStore
	Counter    *store.ExecutorCounterStore
	LastLaunch *store.LastServerLaunchStore
	Clock      clock.Clock
	Resolver   Resolver
}

// NewManager wires a Manager over the given stores and dependencies.
func NewManager(
	state *store.ClusterStateStore,
	config *store.FrameworkConfigStore,
	health *store.HealthHistoryStore,
	counter *store.ExecutorCounterStore,
	lastLaunch *store.LastServerLaunchStore,
	clk clock.Clock,
	resolver Resolver,
) *Manager {
	return &Manager{
		State:      state,
		Config:     config,
		Health:     health,
		Counter:    counter,
		LastLaunch: lastLaunch,
		Clock:      clk,
		Resolver:   resolver,
	}
}

// FindNode returns the node registered under hostname, if any.
func (m *Manager) FindNode(hostname string) (model.Node, bool, error) {
	nodes, err := m.State.Nodes()
	if err != nil {
		return model.Node{}, false, err
	}
	for _, n := range nodes {
		if n.Hostname == hostname {
			return n, true, nil
		}
	}
	return model.Node{}, false, nil
}

// findNodeByExecutor returns the first node bound to executorID.
func findNodeByExecutor(nodes []model.Node, executorID string) (int, bool) {
	for i, n := range nodes {
		if n.Executor != nil && n.Executor.ExecutorID == executorID {
			return i, true
		}
	}
	return 0, false
}

// Register implements the register transition (§4.5): at most one
// node per unknown hostname, gated by numberOfNodes, with seed
// assignment and IP/JMX resolution.
func (m *Manager) Register(hostname string) (model.Node, error) {
	cfg, err := m.Config.Get()
	if err != nil {
		return model.Node{}, err
	}
	nodes, err := m.State.Nodes()
	if err != nil {
		return model.Node{}, err
	}
	if len(nodes) >= cfg.NumberOfNodes {
		return model.Node{}, ErrNodeCapReached
	}

	ip, err := m.Resolver.ResolveIP(hostname)
	if err != nil {
		return model.Node{}, ErrHostUnresolvable
	}

	seedCount := 0
	for _, n := range nodes {
		if n.Seed {
			seedCount++
		}
	}
	seed := seedCount < cfg.NumberOfSeeds

	jmx, err := m.resolveJMX(cfg, ip)
	if err != nil {
		return model.Node{}, err
	}

	node := model.Node{
		Hostname:   hostname,
		IP:         ip,
		Seed:       seed,
		JMXConnect: jmx,
	}
	nodes = append(nodes, node)
	if err := m.State.SetNodes(nodes); err != nil {
		return model.Node{}, err
	}
	log.Infof("cluster: registered node %s (ip=%s seed=%v)", hostname, ip, seed)
	return node, nil
}

func (m *Manager) resolveJMX(cfg model.FrameworkConfiguration, ip string) (model.JMXConnect, error) {
	reg := ports.New(cfg.PortMappings)
	if m.Resolver.IsLoopback(ip) {
		port, err := m.Resolver.FreeLoopbackPort()
		if err != nil {
			return model.JMXConnect{}, err
		}
		return model.JMXConnect{IP: ip, Port: port}, nil
	}
	port, err := reg.PortFor(ports.JMXPort)
	if err != nil {
		return model.JMXConnect{}, err
	}
	return model.JMXConnect{IP: ip, Port: port}, nil
}

// AssignExecutor implements the assign-executor transition (§4.5):
// reuse another node's executor on the same hostname, or mint a fresh
// one from the ExecutorCounter.
func (m *Manager) AssignExecutor(hostname string) (model.Node, error) {
	cfg, err := m.Config.Get()
	if err != nil {
		return model.Node{}, err
	}
	nodes, err := m.State.Nodes()
	if err != nil {
		return model.Node{}, err
	}
	idx := -1
	for i, n := range nodes {
		if n.Hostname == hostname {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Node{}, fmt.Errorf("cluster: assign executor: unknown host %s", hostname)
	}
	if nodes[idx].Executor != nil {
		return nodes[idx], nil
	}

	executorID := ""
	for _, n := range nodes {
		if n.Hostname == hostname && n.Executor != nil {
			executorID = n.Executor.ExecutorID
			break
		}
	}
	if executorID == "" {
		n, err := m.Counter.Next()
		if err != nil {
			return model.Node{}, err
		}
		executorID = fmt.Sprintf("%s.node.%d.executor", cfg.FrameworkName, n)
	}

	nodes[idx].Executor = &model.ExecutorDescriptor{ExecutorID: executorID}
	if err := m.State.SetNodes(nodes); err != nil {
		return model.Node{}, err
	}
	log.Infof("cluster: bound executor %s to host %s", executorID, hostname)
	return nodes[idx], nil
}

// metadataTaskResources is the small, fixed reservation for a
// metadata probe task (§4.5).
var metadataTaskResources = model.ResourceAmounts{CPU: 0.1, MemMb: 16, DiskMb: 16}

// LaunchMetadataTask builds the metadata-probe launch task for node
// and persists the assignment (§4.5: "launch metadata task").
func (m *Manager) LaunchMetadataTask(node model.Node) (model.Node, model.LaunchTask, error) {
	if node.Executor == nil {
		return node, model.LaunchTask{}, fmt.Errorf("cluster: cannot launch metadata task before executor is assigned")
	}
	taskID := node.Executor.ExecutorID
	node.MetadataTask = &model.TaskDescriptor{TaskID: taskID}
	if err := m.updateNode(node); err != nil {
		return node, model.LaunchTask{}, err
	}
	task := model.LaunchTask{
		TaskID:     taskID,
		ExecutorID: node.Executor.ExecutorID,
		Hostname:   node.Hostname,
		Resources:  metadataTaskResources,
		Payload:    model.PayloadExecutorMetadata,
	}
	log.Infof("cluster: launching metadata task %s for host %s", taskID, node.Hostname)
	return node, task, nil
}

// MetadataReported reports whether the metadata task for node's
// executor has completed, i.e. whether ExecutorMetadata has an entry.
func (m *Manager) MetadataReported(executorID string) (bool, error) {
	meta, err := m.State.ExecutorMetadata()
	if err != nil {
		return false, err
	}
	_, ok := meta[executorID]
	return ok, nil
}

// RecordExecutorMetadata persists the IP an executor reported back
// after its metadata probe completed.
func (m *Manager) RecordExecutorMetadata(executorID, ip string) error {
	meta, err := m.State.ExecutorMetadata()
	if err != nil {
		return err
	}
	meta[executorID] = model.ExecutorMetadata{ExecutorID: executorID, IP: ip}
	return m.State.SetExecutorMetadata(meta)
}

// updateNode persists a single updated node in place, matched by
// hostname.
func (m *Manager) updateNode(node model.Node) error {
	nodes, err := m.State.Nodes()
	if err != nil {
		return err
	}
	for i := range nodes {
		if nodes[i].Hostname == node.Hostname {
			nodes[i] = node
			return m.State.SetNodes(nodes)
		}
	}
	return fmt.Errorf("cluster: cannot update unknown host %s", node.Hostname)
}

// AllNodes returns every registered node.
func (m *Manager) AllNodes() ([]model.Node, error) {
	return m.State.Nodes()
}

// SeedCount returns the number of registered seed nodes.
func SeedCount(nodes []model.Node) int {
	n := 0
	for _, node := range nodes {
		if node.Seed {
			n++
		}
	}
	return n
}
