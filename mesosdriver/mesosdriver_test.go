package mesosdriver

import (
	"testing"
	"time"

	"github.com/gogo/protobuf/proto"
	mesos "github.com/mesos/mesos-go/mesosproto"
	util "github.com/mesos/mesos-go/mesosutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cclock "github.com/gufranmmu/cassandra-mesos-deprecated/clock"
	"github.com/gufranmmu/cassandra-mesos-deprecated/clusterjob"
	"github.com/gufranmmu/cassandra-mesos-deprecated/model"
	"github.com/gufranmmu/cassandra-mesos-deprecated/store"
)

func TestTranslateOffer(t *testing.T) {
	offer := &mesos.Offer{
		Id:       &mesos.OfferID{Value: proto.String("offer-1")},
		Hostname: proto.String("h1"),
		Resources: []*mesos.Resource{
			util.NewScalarResource("cpus", 4),
			util.NewScalarResource("mem", 4096),
			util.NewScalarResource("disk", 40960),
			util.NewRangesResource("ports", []*mesos.Value_Range{
				util.NewValueRange(31000, 32000),
			}),
		},
	}

	got := translateOffer(offer)
	assert.Equal(t, "offer-1", got.ID)
	assert.Equal(t, "h1", got.Hostname)
	assert.Equal(t, 4.0, got.CPUs)
	assert.Equal(t, 4096.0, got.MemMb)
	assert.Equal(t, 40960.0, got.DiskMb)
	require.Len(t, got.Ports, 1)
	assert.True(t, got.Ports[0].Contains(31500))
}

func TestToTaskInfoCarriesExecutorAndResources(t *testing.T) {
	offer := &mesos.Offer{
		Id:      &mesos.OfferID{Value: proto.String("offer-1")},
		SlaveId: &mesos.SlaveID{Value: proto.String("slave-1")},
	}
	lt := model.LaunchTask{
		TaskID:     "cassandra.node.1.executor",
		ExecutorID: "cassandra.node.1.executor",
		Resources:  model.ResourceAmounts{CPU: 0.1, MemMb: 16, DiskMb: 16},
		Payload:    model.PayloadExecutorMetadata,
	}

	info := toTaskInfo(lt, offer)
	assert.Equal(t, "cassandra.node.1.executor", info.TaskId.GetValue())
	assert.Equal(t, "slave-1", info.SlaveId.GetValue())
	require.Len(t, info.Resources, 3)
}

// TestCurrentJobStepExecutorDistinguishesFromMetadataTaskID guards
// against misclassifying a metadata task's loss as a node-job-step
// loss: an executorId like "cassandra.node.1.executor" contains dots,
// so the shape of the taskId alone cannot tell the two apart.
func TestCurrentJobStepExecutorDistinguishesFromMetadataTaskID(t *testing.T) {
	backend := store.NewMemory()
	fc := cclock.NewFake(time.Unix(1000, 0))
	jobs := clusterjob.New(store.NewClusterJobsStore(backend), fc)
	sched := &Scheduler{Jobs: jobs}

	const executorID = "cassandra.node.1.executor"

	// No cluster job running: the bare executorId (a metadata task's
	// own taskId) must not be mistaken for a job step.
	_, ok := sched.currentJobStepExecutor(executorID)
	assert.False(t, ok)

	started, err := jobs.StartClusterJob("REPAIR", []string{executorID})
	require.NoError(t, err)
	require.True(t, started)

	res, err := jobs.Step(executorID, func(string) bool { return true })
	require.NoError(t, err)
	require.NotNil(t, res.Launch)
	jobTaskID := res.Launch.TaskID
	assert.Equal(t, executorID+".REPAIR", jobTaskID)

	// The in-flight job step's own taskId classifies as a job step...
	gotExecutor, ok := sched.currentJobStepExecutor(jobTaskID)
	assert.True(t, ok)
	assert.Equal(t, executorID, gotExecutor)

	// ...but the bare executorId (metadata task) still does not, even
	// while a job step is in flight for the same node.
	_, ok = sched.currentJobStepExecutor(executorID)
	assert.False(t, ok)
}
