// Package clusterjob implements the cluster-wide maintenance job
// orchestrator (C7/§4.7): it drives a chosen job type across every
// registered node, one at a time, with durable status.
package clusterjob

import (
	"errors"
	"fmt"

	log "github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/gufranmmu/cassandra-mesos-deprecated/clock"
	"github.com/gufranmmu/cassandra-mesos-deprecated/model"
	"github.com/gufranmmu/cassandra-mesos-deprecated/store"
)

// ErrJobAlreadyRunning is returned (informally, via the bool result)
// by StartClusterJob when a job is already current; kept as a named
// error only for callers that want to log a specific reason.
var ErrJobAlreadyRunning = errors.New("clusterjob: a cluster job is already running")

// nodeJobResources is the small, fixed reservation for a node-job step
// (§4.7), identical to the metadata-probe reservation.
var nodeJobResources = model.ResourceAmounts{CPU: 0.1, MemMb: 16, DiskMb: 16}

// Orchestrator drives CassandraClusterJobs end to end. All mutations
// flow through Jobs (§4.3); Orchestrator holds no state beyond what it
// reads fresh from the store on each call.
type Orchestrator struct {
	Jobs  *store.ClusterJobsStore
	Clock clock.Clock
}

// New wires an Orchestrator over jobs and clk.
func New(jobs *store.ClusterJobsStore, clk clock.Clock) *Orchestrator {
	return &Orchestrator{Jobs: jobs, Clock: clk}
}

// StartClusterJob begins jobType across every executorID in
// executorOrder (registration order), or returns false without
// mutating anything if a job is already current (§4.7).
func (o *Orchestrator) StartClusterJob(jobType string, executorOrder []string) (bool, error) {
	jobs, err := o.Jobs.Get()
	if err != nil {
		return false, err
	}
	if jobs.CurrentClusterJob != nil {
		return false, nil
	}
	remaining := make([]string, len(executorOrder))
	copy(remaining, executorOrder)
	jobs.CurrentClusterJob = &model.ClusterJobStatus{
		JobType:            jobType,
		StartedTimestampMs: clock.NowMs(o.Clock),
		RemainingNodes:     remaining,
	}
	if err := o.Jobs.Set(jobs); err != nil {
		return false, err
	}
	log.Infof("clusterjob: started %s across %d nodes", jobType, len(remaining))
	return true, nil
}

// AbortClusterJob marks the current job of jobType as aborted.
// Returns false if there is no current job of that type, or it is
// already aborted (§4.7). Abort is soft: the in-flight node completes
// and the step driver winds down on subsequent offers.
func (o *Orchestrator) AbortClusterJob(jobType string) (bool, error) {
	jobs, err := o.Jobs.Get()
	if err != nil {
		return false, err
	}
	if jobs.CurrentClusterJob == nil || jobs.CurrentClusterJob.JobType != jobType {
		return false, nil
	}
	if jobs.CurrentClusterJob.Aborted {
		return false, nil
	}
	jobs.CurrentClusterJob.Aborted = true
	if err := o.Jobs.Set(jobs); err != nil {
		return false, err
	}
	log.Warningf("clusterjob: abort requested for %s", jobType)
	return true, nil
}

// Current returns the current cluster job, if any.
func (o *Orchestrator) Current() (*model.ClusterJobStatus, error) {
	jobs, err := o.Jobs.Get()
	if err != nil {
		return nil, err
	}
	return jobs.CurrentClusterJob, nil
}

// OnNodeJobStatus applies an externally-delivered node job status
// update (§4.7). Statuses for a job type other than the current one,
// or for an executor other than currentNode, are logged and ignored.
func (o *Orchestrator) OnNodeJobStatus(status model.NodeJobStatus) error {
	jobs, err := o.Jobs.Get()
	if err != nil {
		return err
	}
	job := jobs.CurrentClusterJob
	if job == nil || job.JobType != status.JobType {
		log.Infof("clusterjob: ignoring status for %s: no matching current job", status.JobType)
		return nil
	}
	if job.CurrentNode == nil || job.CurrentNode.ExecutorID != status.ExecutorID {
		log.Infof("clusterjob: ignoring status for executor %s: not the current node", status.ExecutorID)
		return nil
	}

	if status.Running {
		job.CurrentNode = &status
		jobs.CurrentClusterJob = job
		return o.Jobs.Set(jobs)
	}

	job.CompletedNodes = append(job.CompletedNodes, status)
	job.CurrentNode = nil
	jobs.CurrentClusterJob = job
	if len(job.RemainingNodes) == 0 {
		return o.finishJob(jobs, job)
	}
	return o.Jobs.Set(jobs)
}

func (o *Orchestrator) finishJob(jobs model.CassandraClusterJobs, job *model.ClusterJobStatus) error {
	job.FinishedTimestampMs = clock.NowMs(o.Clock)
	job.HasFinished = true
	if jobs.LastClusterJobs == nil {
		jobs.LastClusterJobs = map[string]model.ClusterJobStatus{}
	}
	jobs.LastClusterJobs[job.JobType] = *job
	jobs.CurrentClusterJob = nil
	log.Infof("clusterjob: %s finished, %d nodes completed", job.JobType, len(job.CompletedNodes))
	return o.Jobs.Set(jobs)
}

// StepResult is what the per-offer step driver decided to do for a
// single offer's executor.
type StepResult struct {
	Launch *model.LaunchTask
	Submit *model.SubmitTask
}

// Step implements the per-offer step driver (§4.7): given the offer's
// executorID and a lookup of still-registered executors, it advances
// the current cluster job by at most one action.
func (o *Orchestrator) Step(executorID string, nodeExists func(executorID string) bool) (StepResult, error) {
	jobs, err := o.Jobs.Get()
	if err != nil {
		return StepResult{}, err
	}
	job := jobs.CurrentClusterJob
	if job == nil {
		return StepResult{}, nil
	}

	if job.CurrentNode != nil {
		if job.CurrentNode.ExecutorID == executorID {
			return StepResult{Submit: &model.SubmitTask{
				ExecutorID:    executorID,
				Payload:       model.PayloadNodeJobStatus,
				JobType:       job.JobType,
				CorrelationID: uuid.NewString(),
			}}, nil
		}
		// Only one node at a time.
		return StepResult{}, nil
	}

	if job.Aborted {
		jobs.CurrentClusterJob = nil
		log.Infof("clusterjob: %s aborted with no node in flight, clearing", job.JobType)
		return StepResult{}, o.Jobs.Set(jobs)
	}

	if len(job.RemainingNodes) == 0 {
		return StepResult{}, o.finishJob(jobs, job)
	}

	idx := indexOf(job.RemainingNodes, executorID)
	if idx < 0 {
		// This node has already been visited.
		return StepResult{}, nil
	}
	job.RemainingNodes = append(job.RemainingNodes[:idx], job.RemainingNodes[idx+1:]...)

	if !nodeExists(executorID) {
		jobs.CurrentClusterJob = job
		log.Warningf("clusterjob: skipping %s for %s, node no longer registered", job.JobType, executorID)
		return StepResult{}, o.Jobs.Set(jobs)
	}

	taskID := fmt.Sprintf("%s.%s", executorID, job.JobType)
	job.CurrentNode = &model.NodeJobStatus{
		ExecutorID:         executorID,
		TaskID:             taskID,
		JobType:            job.JobType,
		StartedTimestampMs: clock.NowMs(o.Clock),
		Running:            true,
	}
	jobs.CurrentClusterJob = job
	if err := o.Jobs.Set(jobs); err != nil {
		return StepResult{}, err
	}
	log.Infof("clusterjob: launching %s step for %s", job.JobType, executorID)
	return StepResult{Launch: &model.LaunchTask{
		TaskID:     taskID,
		ExecutorID: executorID,
		Resources:  nodeJobResources,
		Payload:    model.PayloadNodeJob,
		JobType:    job.JobType,
	}}, nil
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// OnTaskRemoved handles loss of a task on executorID while a job step
// may be in flight there (driven by external task-status removal,
// §4.5/§4.7): mesosdriver calls it for a lost node-job task and, after
// cluster.RemoveServerTask has cleared a server task, for a lost
// server task. If the current node matches executorID, it is marked
// failed with the given details and moved to completedNodes.
func (o *Orchestrator) OnTaskRemoved(executorID, state, reason, source, message string) error {
	jobs, err := o.Jobs.Get()
	if err != nil {
		return err
	}
	job := jobs.CurrentClusterJob
	if job == nil || job.CurrentNode == nil || job.CurrentNode.ExecutorID != executorID {
		return nil
	}
	failed := *job.CurrentNode
	failed.Running = false
	failed.Failed = true
	failed.FailureMessage = fmt.Sprintf("state=%s reason=%s source=%s message=%s", state, reason, source, message)
	job.CompletedNodes = append(job.CompletedNodes, failed)
	job.CurrentNode = nil
	jobs.CurrentClusterJob = job
	if len(job.RemainingNodes) == 0 {
		return o.finishJob(jobs, job)
	}
	return o.Jobs.Set(jobs)
}
