package clusterjob

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cclock "github.com/gufranmmu/cassandra-mesos-deprecated/clock"
	"github.com/gufranmmu/cassandra-mesos-deprecated/model"
	"github.com/gufranmmu/cassandra-mesos-deprecated/store"
)

func testOrchestrator(t *testing.T) (*Orchestrator, *cclock.Fake) {
	t.Helper()
	backend := store.NewMemory()
	fc := cclock.NewFake(time.Unix(1000, 0))
	return New(store.NewClusterJobsStore(backend), fc), fc
}

func allExist(existing ...string) func(string) bool {
	set := map[string]bool{}
	for _, e := range existing {
		set[e] = true
	}
	return func(id string) bool { return set[id] }
}

func TestStartClusterJobRejectsWhileRunning(t *testing.T) {
	o, _ := testOrchestrator(t)
	ok, err := o.StartClusterJob("REPAIR", []string{"e1", "e2", "e3"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = o.StartClusterJob("REPAIR", []string{"e1"})
	require.NoError(t, err)
	assert.False(t, ok, "re-invoking while a job is current must not mutate state")

	job, err := o.Current()
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, []string{"e1", "e2", "e3"}, job.RemainingNodes)
}

func TestClusterJobWalksNodesOneAtATime(t *testing.T) {
	o, _ := testOrchestrator(t)
	exists := allExist("e1", "e2", "e3")
	_, err := o.StartClusterJob("REPAIR", []string{"e1", "e2", "e3"})
	require.NoError(t, err)

	// Offer for e1: launches NODE_JOB, currentNode=e1.
	res, err := o.Step("e1", exists)
	require.NoError(t, err)
	require.NotNil(t, res.Launch)
	assert.Equal(t, "e1.REPAIR", res.Launch.TaskID)

	// A second offer for e1 while current should submit a status probe.
	res, err = o.Step("e1", exists)
	require.NoError(t, err)
	require.NotNil(t, res.Submit)
	assert.Equal(t, model.PayloadNodeJobStatus, res.Submit.Payload)

	// Offer for e3 while e1 is current: nothing happens (one at a time).
	res, err = o.Step("e3", exists)
	require.NoError(t, err)
	assert.Nil(t, res.Launch)
	assert.Nil(t, res.Submit)

	require.NoError(t, o.OnNodeJobStatus(model.NodeJobStatus{ExecutorID: "e1", JobType: "REPAIR", Running: true}))
	require.NoError(t, o.OnNodeJobStatus(model.NodeJobStatus{ExecutorID: "e1", JobType: "REPAIR", Running: false}))

	job, err := o.Current()
	require.NoError(t, err)
	require.Nil(t, job.CurrentNode)
	require.Len(t, job.CompletedNodes, 1)
	assert.Equal(t, "e1", job.CompletedNodes[0].ExecutorID)

	// Offer for e3 (before e2): removes e3 from remaining, launches it.
	res, err = o.Step("e3", exists)
	require.NoError(t, err)
	require.NotNil(t, res.Launch)
	assert.Equal(t, "e3.REPAIR", res.Launch.TaskID)

	require.NoError(t, o.OnNodeJobStatus(model.NodeJobStatus{ExecutorID: "e3", JobType: "REPAIR", Running: false}))

	// Offer for e2: launches NODE_JOB.
	res, err = o.Step("e2", exists)
	require.NoError(t, err)
	require.NotNil(t, res.Launch)
	require.NoError(t, o.OnNodeJobStatus(model.NodeJobStatus{ExecutorID: "e2", JobType: "REPAIR", Running: false}))

	job, err = o.Current()
	require.NoError(t, err)
	assert.Nil(t, job, "job should have moved to lastClusterJobs")
}

func TestAbortMidJobStopsFurtherNodes(t *testing.T) {
	o, _ := testOrchestrator(t)
	exists := allExist("e1", "e2", "e3")
	_, err := o.StartClusterJob("REPAIR", []string{"e1", "e2", "e3"})
	require.NoError(t, err)

	_, err = o.Step("e1", exists)
	require.NoError(t, err)

	ok, err := o.AbortClusterJob("REPAIR")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, o.OnNodeJobStatus(model.NodeJobStatus{ExecutorID: "e1", JobType: "REPAIR", Running: false}))

	// Next offer touching e2 or e3 should see the job cleared rather
	// than starting a new node.
	res, err := o.Step("e2", exists)
	require.NoError(t, err)
	assert.Nil(t, res.Launch)
	assert.Nil(t, res.Submit)

	job, err := o.Current()
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestStepSkipsVisitedExecutorID(t *testing.T) {
	o, _ := testOrchestrator(t)
	exists := allExist("e1", "e2")
	_, err := o.StartClusterJob("CLEANUP", []string{"e1", "e2"})
	require.NoError(t, err)

	_, err = o.Step("e1", exists)
	require.NoError(t, err)
	require.NoError(t, o.OnNodeJobStatus(model.NodeJobStatus{ExecutorID: "e1", JobType: "CLEANUP", Running: false}))

	// e1 was already visited and completed while e2 is still remaining,
	// so the job is still current; a repeat offer for e1 is a no-op.
	res, err := o.Step("e1", exists)
	require.NoError(t, err)
	assert.Nil(t, res.Launch)
	assert.Nil(t, res.Submit)
}

func TestStepSkipsRemovedNode(t *testing.T) {
	o, _ := testOrchestrator(t)
	exists := allExist() // e1 no longer resolves to a node
	_, err := o.StartClusterJob("REPAIR", []string{"e1", "e2"})
	require.NoError(t, err)

	res, err := o.Step("e1", exists)
	require.NoError(t, err)
	assert.Nil(t, res.Launch)
	assert.Nil(t, res.Submit)

	job, err := o.Current()
	require.NoError(t, err)
	assert.Equal(t, []string{"e2"}, job.RemainingNodes)
}

func TestOnTaskRemovedFailsCurrentNode(t *testing.T) {
	o, _ := testOrchestrator(t)
	exists := allExist("e1")
	_, err := o.StartClusterJob("REPAIR", []string{"e1"})
	require.NoError(t, err)
	_, err = o.Step("e1", exists)
	require.NoError(t, err)

	require.NoError(t, o.OnTaskRemoved("e1", "TASK_LOST", "REASON_EXECUTOR_TERMINATED", "SOURCE_EXECUTOR", "lost"))

	job, err := o.Current()
	require.NoError(t, err)
	assert.Nil(t, job, "single-node job finishes once its only node is marked failed")
}
