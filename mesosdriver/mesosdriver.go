// Package mesosdriver is the outer Mesos scheduler.Scheduler
// implementation: it translates Mesos callbacks to and from the
// transport-neutral model package and drives decision.Engine. Nothing
// under clock/ports/store/resources/cluster/clusterjob/decision
// imports mesos-go; this package and cmd/ are the only two that do
// (§1, §13).
package mesosdriver

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gogo/protobuf/proto"
	log "github.com/golang/glog"
	mesos "github.com/mesos/mesos-go/mesosproto"
	util "github.com/mesos/mesos-go/mesosutil"
	"github.com/mesos/mesos-go/scheduler"

	"github.com/gufranmmu/cassandra-mesos-deprecated/cluster"
	"github.com/gufranmmu/cassandra-mesos-deprecated/clusterjob"
	"github.com/gufranmmu/cassandra-mesos-deprecated/decision"
	"github.com/gufranmmu/cassandra-mesos-deprecated/model"
	"github.com/gufranmmu/cassandra-mesos-deprecated/store"
)

// keyFrameworkID is the znode/blob key the framework ID is persisted
// under; it is not one of the five core keys (§6) since it belongs to
// the transport, not the decision core.
const keyFrameworkID = "CassandraFrameworkID"

// State mirrors the teacher's Mutable/Immutable split (EtcdScheduler):
// the scheduler only calls into the decision core while Mutable.
type State int32

const (
	Immutable State = iota
	Mutable
)

// Scheduler implements scheduler.Scheduler (mesos-go), wiring offer
// and status-update callbacks to decision.Engine.
type Scheduler struct {
	Engine     *decision.Engine
	Cluster    *cluster.Manager
	Jobs       *clusterjob.Orchestrator
	IDBackend  store.Backend
	ClusterName string
	Shutdown   func()

	mut         sync.RWMutex
	state       State
	frameworkID *mesos.FrameworkID
	masterInfo  *mesos.MasterInfo
}

// New wires a Scheduler. shutdown defaults to os.Exit(1) when nil,
// matching the teacher's own EtcdScheduler default.
func New(engine *decision.Engine, mgr *cluster.Manager, jobs *clusterjob.Orchestrator, idBackend store.Backend, clusterName string, shutdown func()) *Scheduler {
	if shutdown == nil {
		shutdown = func() { os.Exit(1) }
	}
	return &Scheduler{
		Engine:      engine,
		Cluster:     mgr,
		Jobs:        jobs,
		IDBackend:   idBackend,
		ClusterName: clusterName,
		Shutdown:    shutdown,
		state:       Immutable,
	}
}

// ----------------------- mesos callbacks ------------------------- //

func (s *Scheduler) Registered(driver scheduler.SchedulerDriver, frameworkID *mesos.FrameworkID, masterInfo *mesos.MasterInfo) {
	log.Infoln("framework registered with master", masterInfo)
	s.mut.Lock()
	s.frameworkID = frameworkID
	s.mut.Unlock()

	if s.IDBackend != nil {
		if err := s.IDBackend.Set(keyFrameworkID, []byte(frameworkID.GetValue())); err != nil {
			log.Errorf("failed to persist framework id: %v", err)
			s.Shutdown()
			return
		}
	}
	s.initialize(driver, masterInfo)
}

func (s *Scheduler) Reregistered(driver scheduler.SchedulerDriver, masterInfo *mesos.MasterInfo) {
	log.Infoln("framework reregistered with master", masterInfo)
	s.initialize(driver, masterInfo)
}

func (s *Scheduler) Disconnected(scheduler.SchedulerDriver) {
	log.Error("mesos master disconnected")
	s.mut.Lock()
	s.state = Immutable
	s.mut.Unlock()
}

func (s *Scheduler) initialize(driver scheduler.SchedulerDriver, masterInfo *mesos.MasterInfo) {
	s.mut.Lock()
	s.masterInfo = masterInfo
	s.mut.Unlock()
	go s.attemptReconciliation(driver)
}

// attemptReconciliation mirrors the teacher's attemptMasterSync: it
// requests reconciliation of live tasks and, once Mesos has had time
// to deliver the reconciled statuses, transitions the scheduler
// Mutable. decide() is only ever invoked while Mutable, which is what
// keeps it from being reentered concurrently with a stale task view
// (§5's single-threaded contract lives above this call, not in it).
func (s *Scheduler) attemptReconciliation(driver scheduler.SchedulerDriver) {
	backoff := 1
	for retries := 0; retries < 5; retries++ {
		if _, err := driver.ReconcileTasks([]*mesos.TaskStatus{}); err != nil {
			log.Errorf("error while calling ReconcileTasks: %v", err)
		} else {
			time.Sleep(5 * time.Second)
			s.mut.Lock()
			s.state = Mutable
			s.mut.Unlock()
			log.Info("scheduler transitioning to Mutable state")
			return
		}
		time.Sleep(time.Duration(backoff) * time.Second)
		backoff = int(math.Min(float64(backoff<<1), 8))
	}
	log.Error("failed to synchronize with master after retries, dying")
	s.Shutdown()
}

func (s *Scheduler) ResourceOffers(driver scheduler.SchedulerDriver, offers []*mesos.Offer) {
	for _, offer := range offers {
		s.mut.RLock()
		immutable := s.state == Immutable
		s.mut.RUnlock()
		if immutable {
			log.V(2).Info("scheduler is Immutable, declining offer")
			s.decline(driver, offer)
			continue
		}

		modelOffer := translateOffer(offer)
		tasks, err := s.Engine.Decide(modelOffer)
		if err != nil {
			log.Errorf("decide failed for offer %s: %v", offer.Id.GetValue(), err)
			s.decline(driver, offer)
			continue
		}
		if tasks.Empty() {
			s.decline(driver, offer)
			continue
		}

		taskInfos := make([]*mesos.TaskInfo, 0, len(tasks.LaunchTasks))
		for _, lt := range tasks.LaunchTasks {
			taskInfos = append(taskInfos, toTaskInfo(lt, offer))
		}
		if len(taskInfos) > 0 {
			driver.LaunchTasks([]*mesos.OfferID{offer.Id}, taskInfos, &mesos.Filters{RefuseSeconds: proto.Float64(1)})
		} else {
			s.decline(driver, offer)
		}

		for _, st := range tasks.SubmitTasks {
			s.sendSubmitTask(driver, offer, st)
		}
	}
}

func (s *Scheduler) sendSubmitTask(driver scheduler.SchedulerDriver, offer *mesos.Offer, st model.SubmitTask) {
	payload, err := json.Marshal(st)
	if err != nil {
		log.Errorf("failed to marshal submit task for %s: %v", st.ExecutorID, err)
		return
	}
	executorID := util.NewExecutorID(st.ExecutorID)
	if _, err := driver.SendFrameworkMessage(executorID, offer.SlaveId, string(payload)); err != nil {
		log.Errorf("failed to send framework message to %s (correlation %s): %v", st.ExecutorID, st.CorrelationID, err)
	}
}

// StatusUpdate is the removal driver of §4.5/§4.7. An executorId
// (cluster.Manager's own minting, "<frameworkName>.node.<n>.executor")
// always contains dots, so taskId shape alone can't tell a metadata
// task from a node-job step apart — both classify by exact taskId
// match against the one in-flight record each could possibly be:
// "<executorId>.server" for a server task, the current cluster job's
// own CurrentNode.TaskID for a node-job step, and everything else
// (including the bare executorId) for a metadata task.
func (s *Scheduler) StatusUpdate(driver scheduler.SchedulerDriver, status *mesos.TaskStatus) {
	taskID := status.TaskId.GetValue()
	log.Infoln("status update: task", taskID, "is in state", status.State.Enum().String())

	ts := model.TaskStatus{
		TaskID:  taskID,
		State:   status.GetState().String(),
		Reason:  status.GetReason().String(),
		Source:  status.GetSource().String(),
		Healthy: status.GetHealthy(),
		Message: status.GetMessage(),
	}
	if !model.IsTerminal(mesosStateToModel(status.GetState())) {
		return
	}

	if strings.HasSuffix(taskID, ".server") {
		result, err := s.Cluster.RemoveServerTask(taskID)
		if err != nil {
			log.Errorf("failed to remove server task %s: %v", taskID, err)
			return
		}
		if result.ServerCleared && result.ExecutorID != "" {
			if err := s.Jobs.OnTaskRemoved(result.ExecutorID, ts.State, ts.Reason, ts.Source, ts.Message); err != nil {
				log.Errorf("failed to notify cluster job of removed task %s: %v", taskID, err)
			}
		}
		return
	}

	if executorID, ok := s.currentJobStepExecutor(taskID); ok {
		if err := s.Jobs.OnTaskRemoved(executorID, ts.State, ts.Reason, ts.Source, ts.Message); err != nil {
			log.Errorf("failed to notify cluster job of removed task %s: %v", taskID, err)
		}
		return
	}

	if _, err := s.Cluster.RemoveMetadataTask(taskID); err != nil {
		log.Errorf("failed to remove metadata task %s: %v", taskID, err)
	}
}

// currentJobStepExecutor reports the executorID of the in-flight
// cluster job step if taskID is that step's own task ID — the only
// node-job taskId that can be outstanding at any moment (§4.7: one
// node at a time).
func (s *Scheduler) currentJobStepExecutor(taskID string) (string, bool) {
	job, err := s.Jobs.Current()
	if err != nil {
		log.Errorf("failed to read current cluster job while classifying task %s: %v", taskID, err)
		return "", false
	}
	if job == nil || job.CurrentNode == nil || job.CurrentNode.TaskID != taskID {
		return "", false
	}
	return job.CurrentNode.ExecutorID, true
}

func (s *Scheduler) OfferRescinded(driver scheduler.SchedulerDriver, offerID *mesos.OfferID) {
	log.Infof("received OfferRescinded for %s", offerID.GetValue())
}

func (s *Scheduler) FrameworkMessage(driver scheduler.SchedulerDriver, exec *mesos.ExecutorID, slave *mesos.SlaveID, msg string) {
	log.Infof("received framework message from %s: %s", exec.GetValue(), msg)
	var details model.HealthDetails
	if err := json.Unmarshal([]byte(msg), &details); err != nil {
		log.Warningf("framework message from %s is not a health check payload: %v", exec.GetValue(), err)
		return
	}
	if err := s.Cluster.RecordHealthCheck(model.HealthCheckHistoryEntry{
		ExecutorID: exec.GetValue(),
		Details:    details,
	}); err != nil {
		log.Errorf("failed to record health check from %s: %v", exec.GetValue(), err)
	}
}

func (s *Scheduler) SlaveLost(driver scheduler.SchedulerDriver, slaveID *mesos.SlaveID) {
	log.Infof("received SlaveLost for %s", slaveID.GetValue())
}

func (s *Scheduler) ExecutorLost(driver scheduler.SchedulerDriver, executorID *mesos.ExecutorID, slaveID *mesos.SlaveID, status int) {
	log.Infof("received ExecutorLost for %s", executorID.GetValue())
	if _, err := s.Cluster.RemoveExecutor(executorID.GetValue()); err != nil {
		log.Errorf("failed to remove lost executor %s: %v", executorID.GetValue(), err)
	}
}

func (s *Scheduler) Error(driver scheduler.SchedulerDriver, err string) {
	log.Infoln("scheduler received error:", err)
	if err == "Completed framework attempted to re-register" {
		if s.IDBackend != nil {
			if clearErr := s.IDBackend.Set(keyFrameworkID, nil); clearErr != nil {
				log.Errorf("failed to clear persisted framework id: %v", clearErr)
			}
		}
		log.Error("removing reference to completed framework and dying")
		s.Shutdown()
	}
}

// ----------------------- translation helpers ------------------------- //

func (s *Scheduler) decline(driver scheduler.SchedulerDriver, offer *mesos.Offer) {
	log.V(2).Infof("declining offer %s", offer.Id.GetValue())
	driver.DeclineOffer(offer.Id, &mesos.Filters{RefuseSeconds: proto.Float64(5)})
}

func translateOffer(offer *mesos.Offer) model.Offer {
	getResources := func(name string) []*mesos.Resource {
		return util.FilterResources(offer.Resources, func(r *mesos.Resource) bool {
			return r.GetName() == name
		})
	}
	sum := func(name string) float64 {
		total := 0.0
		for _, r := range getResources(name) {
			total += r.GetScalar().GetValue()
		}
		return total
	}

	var ranges []model.PortRange
	for _, r := range getResources("ports") {
		for _, pr := range r.GetRanges().GetRange() {
			ranges = append(ranges, model.PortRange{Begin: pr.GetBegin(), End: pr.GetEnd()})
		}
	}

	return model.Offer{
		ID:       offer.Id.GetValue(),
		Hostname: offer.GetHostname(),
		CPUs:     sum("cpus"),
		MemMb:    sum("mem"),
		DiskMb:   sum("disk"),
		Ports:    ranges,
	}
}

func toTaskInfo(lt model.LaunchTask, offer *mesos.Offer) *mesos.TaskInfo {
	resources := []*mesos.Resource{
		util.NewScalarResource("cpus", lt.Resources.CPU),
		util.NewScalarResource("mem", float64(lt.Resources.MemMb)),
		util.NewScalarResource("disk", float64(lt.Resources.DiskMb)),
	}
	if len(lt.Ports) > 0 {
		ranges := make([]*mesos.Value_Range, 0, len(lt.Ports))
		for _, p := range lt.Ports {
			ranges = append(ranges, util.NewValueRange(uint64(p), uint64(p)))
		}
		resources = append(resources, util.NewRangesResource("ports", ranges))
	}

	data, err := json.Marshal(lt)
	if err != nil {
		log.Errorf("failed to marshal launch task payload for %s: %v", lt.TaskID, err)
	}

	return &mesos.TaskInfo{
		Name:      proto.String(fmt.Sprintf("cassandra-%s", lt.Payload)),
		TaskId:    &mesos.TaskID{Value: proto.String(lt.TaskID)},
		SlaveId:   offer.SlaveId,
		Data:      data,
		Executor:  newExecutorInfo(lt.ExecutorID),
		Resources: resources,
	}
}

// executorArtifactURIs and executorCommand are set once by cmd/ at
// start-up; mesosdriver only needs the executorId to build an
// ExecutorInfo that reuses an already-registered executor when one
// exists on the slave.
var (
	executorCommand      = "./cassandra-mesos-executor -logtostderr"
	executorArtifactURIs []*mesos.CommandInfo_URI
)

// Configure sets the executor launch command and artifact URIs; called
// once from cmd/ before the driver starts.
func Configure(command string, uris []*mesos.CommandInfo_URI) {
	executorCommand = command
	executorArtifactURIs = uris
}

func newExecutorInfo(executorID string) *mesos.ExecutorInfo {
	return &mesos.ExecutorInfo{
		ExecutorId: util.NewExecutorID(executorID),
		Name:       proto.String("cassandra"),
		Source:     proto.String("cassandra-mesos"),
		Command: &mesos.CommandInfo{
			Value: proto.String(executorCommand),
			Uris:  executorArtifactURIs,
		},
		Resources: []*mesos.Resource{
			util.NewScalarResource("cpus", 0.1),
			util.NewScalarResource("mem", 32),
		},
	}
}

func mesosStateToModel(state mesos.TaskState) string {
	return state.String()
}
