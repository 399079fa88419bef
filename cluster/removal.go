package cluster

import "github.com/gufranmmu/cassandra-mesos-deprecated/model"

// RemovalResult describes what a removal call actually changed, so
// that callers driving cross-cutting effects (like failing a running
// cluster-job step) know whether to act.
type RemovalResult struct {
	Changed        bool
	Hostname       string
	ExecutorID     string
	ServerCleared  bool
}

// RemoveServerTask clears node.ServerTask for whichever node has a
// server task with the given taskID (§4.5 removal).
func (m *Manager) RemoveServerTask(taskID string) (RemovalResult, error) {
	nodes, err := m.State.Nodes()
	if err != nil {
		return RemovalResult{}, err
	}
	for i := range nodes {
		if nodes[i].ServerTask != nil && nodes[i].ServerTask.TaskID == taskID {
			executorID := ""
			if nodes[i].Executor != nil {
				executorID = nodes[i].Executor.ExecutorID
			}
			hostname := nodes[i].Hostname
			nodes[i].ServerTask = nil
			if err := m.State.SetNodes(nodes); err != nil {
				return RemovalResult{}, err
			}
			return RemovalResult{Changed: true, Hostname: hostname, ExecutorID: executorID, ServerCleared: true}, nil
		}
	}
	return RemovalResult{}, nil
}

// RemoveMetadataTask clears node.MetadataTask and node.ServerTask for
// whichever node has a metadata task with the given taskID, and drops
// the ExecutorMetadata entry. Per §4.5/§9(b), metadata-task removal
// also clears the server task: metadata loss invalidates the server.
func (m *Manager) RemoveMetadataTask(taskID string) (RemovalResult, error) {
	nodes, err := m.State.Nodes()
	if err != nil {
		return RemovalResult{}, err
	}
	for i := range nodes {
		if nodes[i].MetadataTask != nil && nodes[i].MetadataTask.TaskID == taskID {
			executorID := ""
			if nodes[i].Executor != nil {
				executorID = nodes[i].Executor.ExecutorID
			}
			hostname := nodes[i].Hostname
			serverCleared := nodes[i].ServerTask != nil
			nodes[i].MetadataTask = nil
			nodes[i].ServerTask = nil
			if err := m.State.SetNodes(nodes); err != nil {
				return RemovalResult{}, err
			}
			if executorID != "" {
				if err := m.Health.DropExecutor(executorID); err != nil {
					return RemovalResult{}, err
				}
				meta, err := m.State.ExecutorMetadata()
				if err != nil {
					return RemovalResult{}, err
				}
				delete(meta, executorID)
				if err := m.State.SetExecutorMetadata(meta); err != nil {
					return RemovalResult{}, err
				}
			}
			return RemovalResult{Changed: true, Hostname: hostname, ExecutorID: executorID, ServerCleared: serverCleared}, nil
		}
	}
	return RemovalResult{}, nil
}

// RemoveExecutor clears both task fields across every node sharing
// executorID and drops its ExecutorMetadata entry (§4.5: "Removal of
// an entire executor").
func (m *Manager) RemoveExecutor(executorID string) (RemovalResult, error) {
	nodes, err := m.State.Nodes()
	if err != nil {
		return RemovalResult{}, err
	}
	changed := false
	hostname := ""
	serverCleared := false
	for i := range nodes {
		if nodes[i].Executor != nil && nodes[i].Executor.ExecutorID == executorID {
			if nodes[i].ServerTask != nil {
				serverCleared = true
			}
			nodes[i].MetadataTask = nil
			nodes[i].ServerTask = nil
			hostname = nodes[i].Hostname
			changed = true
		}
	}
	if !changed {
		return RemovalResult{}, nil
	}
	if err := m.State.SetNodes(nodes); err != nil {
		return RemovalResult{}, err
	}
	if err := m.Health.DropExecutor(executorID); err != nil {
		return RemovalResult{}, err
	}
	meta, err := m.State.ExecutorMetadata()
	if err != nil {
		return RemovalResult{}, err
	}
	delete(meta, executorID)
	if err := m.State.SetExecutorMetadata(meta); err != nil {
		return RemovalResult{}, err
	}
	return RemovalResult{Changed: true, Hostname: hostname, ExecutorID: executorID, ServerCleared: serverCleared}, nil
}

// ValidateConfiguration enforces numberOfSeeds <= numberOfNodes and
// that numberOfNodes is never dropped below the current registered
// node count (§3 invariant, §7 InvalidConfiguration).
func (m *Manager) ValidateConfiguration(next model.FrameworkConfiguration) error {
	if next.NumberOfSeeds > next.NumberOfNodes {
		return ErrInvalidConfiguration
	}
	nodes, err := m.State.Nodes()
	if err != nil {
		return err
	}
	if next.NumberOfNodes < len(nodes) {
		return ErrInvalidConfiguration
	}
	return nil
}

// SetConfiguration validates and persists next, or returns
// ErrInvalidConfiguration while leaving the previous value in place
// (§7: "swallowed with a log, previous value retained" — logging is
// the caller's responsibility since it has more context).
func (m *Manager) SetConfiguration(next model.FrameworkConfiguration) error {
	if err := m.ValidateConfiguration(next); err != nil {
		return err
	}
	return m.Config.Set(next)
}
