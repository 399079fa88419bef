// Package model holds the persisted data model (§3) and the
// transport-neutral offer/task-status/task-launch shapes the
// scheduler core operates over (§6). Nothing in this package imports
// Mesos, BoltDB, or ZooKeeper — it is pure data.
package model

// FrameworkConfiguration is the persistent, singleton administrative
// configuration of the cluster (§3).
type FrameworkConfiguration struct {
	FrameworkName              string
	DatabaseVersion            string
	NumberOfNodes              int
	NumberOfSeeds              int
	CPUCores                   float64
	MemMb                      int
	DiskMb                     int
	HealthCheckIntervalSeconds int
	BootstrapGraceTimeSeconds  int
	PortMappings               map[string]int
}

// JMXConnect is a node's management endpoint.
type JMXConnect struct {
	IP   string
	Port int
}

// ExecutorDescriptor identifies the long-lived executor process bound
// to a node.
type ExecutorDescriptor struct {
	ExecutorID string
}

// TaskDescriptor identifies a single launched task.
type TaskDescriptor struct {
	TaskID string
}

// Node is the persistent, per-hostname bring-up record (§3).
type Node struct {
	Hostname     string
	IP           string
	Seed         bool
	JMXConnect   JMXConnect
	Executor     *ExecutorDescriptor
	MetadataTask *TaskDescriptor
	ServerTask   *TaskDescriptor
}

// ExecutorMetadata is the IP an executor reported back after its
// metadata probe completed.
type ExecutorMetadata struct {
	ExecutorID string
	IP         string
}

// HealthDetails is the body of a single health-check result.
type HealthDetails struct {
	Healthy       bool
	Msg           string
	Joined        bool
	OperationMode string
}

// HealthCheckHistoryEntry is one append-only health-check result for
// an executor.
type HealthCheckHistoryEntry struct {
	ExecutorID   string
	TimestampMs  int64
	Details      HealthDetails
}

// NodeJobStatus is the per-node status of a running or completed
// cluster job step.
type NodeJobStatus struct {
	ExecutorID        string
	TaskID            string
	JobType           string
	StartedTimestampMs int64
	Running           bool
	Failed            bool
	FailureMessage    string
}

// ClusterJobStatus is the (at most one) active or most recently
// finished cluster-wide maintenance job.
type ClusterJobStatus struct {
	JobType             string
	StartedTimestampMs  int64
	FinishedTimestampMs int64
	HasFinished         bool
	Aborted             bool
	RemainingNodes      []string
	CurrentNode         *NodeJobStatus
	CompletedNodes      []NodeJobStatus
}

// CassandraClusterJobs is the persistent singleton tracking the
// current cluster job (if any) and the most recent job of each type.
type CassandraClusterJobs struct {
	CurrentClusterJob *ClusterJobStatus
	LastClusterJobs   map[string]ClusterJobStatus
}

// Offer is the transport-neutral shape of a single resource offer
// (§6). mesosdriver is responsible for producing one of these from a
// mesosproto.Offer.
type Offer struct {
	ID       string
	Hostname string
	CPUs     float64
	MemMb    float64
	DiskMb   float64
	Ports    []PortRange
}

// PortRange is a closed range of offered ports.
type PortRange struct {
	Begin uint64
	End   uint64
}

// Contains reports whether port p falls within the range, inclusive.
func (r PortRange) Contains(p int) bool {
	return uint64(p) >= r.Begin && uint64(p) <= r.End
}

// TaskStatus is the transport-neutral shape of a task status update
// (§6).
type TaskStatus struct {
	TaskID  string
	State   string
	Reason  string
	Source  string
	Healthy bool
	Message string
}

// Task states recognized by the removal logic (§4.5) and the cluster
// job status handler (§4.7). These mirror the handful of terminal/
// running Mesos task states the core cares about, without depending
// on mesosproto.
const (
	TaskStateRunning = "TASK_RUNNING"
	TaskStateLost    = "TASK_LOST"
	TaskStateFinished = "TASK_FINISHED"
	TaskStateKilled  = "TASK_KILLED"
	TaskStateError   = "TASK_ERROR"
	TaskStateFailed  = "TASK_FAILED"
)

// IsTerminal reports whether state is one that should drive removal
// logic (§4.5).
func IsTerminal(state string) bool {
	switch state {
	case TaskStateLost, TaskStateFinished, TaskStateKilled, TaskStateError, TaskStateFailed:
		return true
	}
	return false
}

// TaskPayloadKind tags the polymorphic launch/submit payloads (§9).
type TaskPayloadKind string

const (
	PayloadExecutorMetadata TaskPayloadKind = "EXECUTOR_METADATA"
	PayloadCassandraServer  TaskPayloadKind = "CASSANDRA_SERVER_RUN"
	PayloadHealthCheck      TaskPayloadKind = "HEALTH_CHECK"
	PayloadNodeJob          TaskPayloadKind = "NODE_JOB"
	PayloadNodeJobStatus    TaskPayloadKind = "NODE_JOB_STATUS"
)

// ResourceAmounts is a cpu/mem/disk reservation.
type ResourceAmounts struct {
	CPU    float64
	MemMb  int
	DiskMb int
}

// LaunchTask is a fresh task launch (§6): it consumes part of an
// offer and starts a new task on the offer's slave.
type LaunchTask struct {
	TaskID     string
	ExecutorID string
	Hostname   string
	Resources  ResourceAmounts
	Ports      map[string]int
	Payload    TaskPayloadKind

	// ServerConfig is populated only when Payload == PayloadCassandraServer.
	ServerConfig *ServerConfig
	// JobType is populated only when Payload == PayloadNodeJob.
	JobType string
}

// ServerConfig is the configuration block carried by a
// CASSANDRA_SERVER_RUN launch (§4.5).
type ServerConfig struct {
	ClusterName      string
	BroadcastAddress string
	RPCAddress       string
	ListenAddress    string
	Seeds            []string
	Ports            map[string]int
	Env              map[string]string
}

// SubmitTask is a payload delivered to an already-running executor
// (§6): it does not consume offer resources.
type SubmitTask struct {
	ExecutorID string
	Payload    TaskPayloadKind
	// JobType is populated only when Payload == PayloadNodeJobStatus.
	JobType string
	// CorrelationID ties this submission to its eventual response in
	// the logs; it carries no domain meaning of its own.
	CorrelationID string
}

// TasksForOffer is the result of a single decide() call (§4.8).
type TasksForOffer struct {
	LaunchTasks []LaunchTask
	SubmitTasks []SubmitTask
}

// Empty reports whether there is nothing to launch or submit.
func (t *TasksForOffer) Empty() bool {
	return t == nil || (len(t.LaunchTasks) == 0 && len(t.SubmitTasks) == 0)
}
