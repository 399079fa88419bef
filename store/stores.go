package store

import "github.com/gufranmmu/cassandra-mesos-deprecated/model"

// clusterStateEnvelope is the single blob persisted under
// KeyClusterState: the node registry plus the executor-metadata
// reported so far. They share one key because a node registration
// and its eventual metadata report must never be observed
// inconsistently by a concurrent reader (§4.3).
type clusterStateEnvelope struct {
	Nodes            []model.Node
	ExecutorMetadata map[string]model.ExecutorMetadata
}

// ClusterStateStore persists the insertion-ordered list of Nodes plus
// the ExecutorMetadata reported for each executor so far.
type ClusterStateStore struct {
	env Typed[clusterStateEnvelope]
}

// NewClusterStateStore builds a ClusterStateStore over backend.
func NewClusterStateStore(backend Backend) *ClusterStateStore {
	return &ClusterStateStore{env: NewTyped(backend, KeyClusterState, clusterStateEnvelope{
		ExecutorMetadata: map[string]model.ExecutorMetadata{},
	})}
}

// Nodes returns the current node list.
func (c *ClusterStateStore) Nodes() ([]model.Node, error) {
	env, err := c.env.Get()
	if err != nil {
		return nil, err
	}
	return env.Nodes, nil
}

// SetNodes overwrites the node list.
func (c *ClusterStateStore) SetNodes(nodes []model.Node) error {
	env, err := c.env.Get()
	if err != nil {
		return err
	}
	env.Nodes = nodes
	return c.env.Set(env)
}

// ExecutorMetadata returns the metadata reported so far, keyed by
// executorId.
func (c *ClusterStateStore) ExecutorMetadata() (map[string]model.ExecutorMetadata, error) {
	env, err := c.env.Get()
	if err != nil {
		return nil, err
	}
	if env.ExecutorMetadata == nil {
		env.ExecutorMetadata = map[string]model.ExecutorMetadata{}
	}
	return env.ExecutorMetadata, nil
}

// SetExecutorMetadata overwrites the executor metadata map.
func (c *ClusterStateStore) SetExecutorMetadata(m map[string]model.ExecutorMetadata) error {
	env, err := c.env.Get()
	if err != nil {
		return err
	}
	env.ExecutorMetadata = m
	return c.env.Set(env)
}

// FrameworkConfigStore persists the singleton FrameworkConfiguration.
type FrameworkConfigStore struct {
	t Typed[model.FrameworkConfiguration]
}

// NewFrameworkConfigStore builds a FrameworkConfigStore over backend.
func NewFrameworkConfigStore(backend Backend) *FrameworkConfigStore {
	return &FrameworkConfigStore{t: NewTyped(backend, KeyFrameworkConfig, model.FrameworkConfiguration{})}
}

// Get returns the current configuration.
func (s *FrameworkConfigStore) Get() (model.FrameworkConfiguration, error) {
	return s.t.Get()
}

// Set persists a new configuration verbatim. Invariant enforcement
// (numberOfSeeds <= numberOfNodes) is the caller's responsibility
// (cluster.ValidateConfiguration) — this store is a dumb container.
func (s *FrameworkConfigStore) Set(cfg model.FrameworkConfiguration) error {
	return s.t.Set(cfg)
}

// HealthHistoryStore is the append-only, per-executor health-check
// history (§3).
type HealthHistoryStore struct {
	t Typed[map[string][]model.HealthCheckHistoryEntry]
}

// NewHealthHistoryStore builds a HealthHistoryStore over backend.
func NewHealthHistoryStore(backend Backend) *HealthHistoryStore {
	return &HealthHistoryStore{t: NewTyped(backend, KeyHealthCheckHistory, map[string][]model.HealthCheckHistoryEntry{})}
}

// Append adds entry to the executor's history.
func (s *HealthHistoryStore) Append(entry model.HealthCheckHistoryEntry) error {
	all, err := s.t.Get()
	if err != nil {
		return err
	}
	if all == nil {
		all = map[string][]model.HealthCheckHistoryEntry{}
	}
	all[entry.ExecutorID] = append(all[entry.ExecutorID], entry)
	return s.t.Set(all)
}

// LastEntry returns the most recent entry recorded for executorID, if
// any.
func (s *HealthHistoryStore) LastEntry(executorID string) (model.HealthCheckHistoryEntry, bool, error) {
	all, err := s.t.Get()
	if err != nil {
		return model.HealthCheckHistoryEntry{}, false, err
	}
	entries := all[executorID]
	if len(entries) == 0 {
		return model.HealthCheckHistoryEntry{}, false, nil
	}
	return entries[len(entries)-1], true, nil
}

// LastEntryPerExecutor returns the most recent entry for every
// executor that has at least one entry.
func (s *HealthHistoryStore) LastEntryPerExecutor() (map[string]model.HealthCheckHistoryEntry, error) {
	all, err := s.t.Get()
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.HealthCheckHistoryEntry, len(all))
	for executorID, entries := range all {
		if len(entries) > 0 {
			out[executorID] = entries[len(entries)-1]
		}
	}
	return out, nil
}

// DropExecutor removes all history for executorID (executor removal,
// §4.5).
func (s *HealthHistoryStore) DropExecutor(executorID string) error {
	all, err := s.t.Get()
	if err != nil {
		return err
	}
	if all == nil {
		return nil
	}
	delete(all, executorID)
	return s.t.Set(all)
}

// ClusterJobsStore persists the singleton CassandraClusterJobs.
type ClusterJobsStore struct {
	t Typed[model.CassandraClusterJobs]
}

// NewClusterJobsStore builds a ClusterJobsStore over backend.
func NewClusterJobsStore(backend Backend) *ClusterJobsStore {
	return &ClusterJobsStore{t: NewTyped(backend, KeyClusterJobs, model.CassandraClusterJobs{
		LastClusterJobs: map[string]model.ClusterJobStatus{},
	})}
}

// Get returns the current jobs record.
func (s *ClusterJobsStore) Get() (model.CassandraClusterJobs, error) {
	jobs, err := s.t.Get()
	if err != nil {
		return jobs, err
	}
	if jobs.LastClusterJobs == nil {
		jobs.LastClusterJobs = map[string]model.ClusterJobStatus{}
	}
	return jobs, nil
}

// Set persists jobs verbatim.
func (s *ClusterJobsStore) Set(jobs model.CassandraClusterJobs) error {
	return s.t.Set(jobs)
}

// ExecutorCounterStore persists the monotonic executor-id counter.
type ExecutorCounterStore struct {
	t Typed[int64]
}

// NewExecutorCounterStore builds an ExecutorCounterStore over backend.
func NewExecutorCounterStore(backend Backend) *ExecutorCounterStore {
	return &ExecutorCounterStore{t: NewTyped[int64](backend, KeyExecutorCounter, 0)}
}

// Next returns the next monotonically increasing counter value and
// persists it.
func (s *ExecutorCounterStore) Next() (int64, error) {
	cur, err := s.t.Get()
	if err != nil {
		return 0, err
	}
	next := cur + 1
	if err := s.t.Set(next); err != nil {
		return 0, err
	}
	return next, nil
}

// LastServerLaunchStore persists the millisecond instant of the most
// recent successful server-task launch.
type LastServerLaunchStore struct {
	t Typed[int64]
}

// NewLastServerLaunchStore builds a LastServerLaunchStore over backend.
func NewLastServerLaunchStore(backend Backend) *LastServerLaunchStore {
	return &LastServerLaunchStore{t: NewTyped[int64](backend, KeyLastServerLaunch, 0)}
}

// Get returns the last launch instant in milliseconds, or 0 if no
// server has ever been launched.
func (s *LastServerLaunchStore) Get() (int64, error) {
	return s.t.Get()
}

// Set persists the new last-launch instant.
func (s *LastServerLaunchStore) Set(ms int64) error {
	return s.t.Set(ms)
}
