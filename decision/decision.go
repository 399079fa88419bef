// Package decision implements the offer decision entry point (C8/§4.8):
// it wires the node state machine (C5), the admission gate (C6), the
// resource matcher (C4) and the cluster job orchestrator (C7) into a
// single decide() call per offer.
package decision

import (
	log "github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/gufranmmu/cassandra-mesos-deprecated/cluster"
	"github.com/gufranmmu/cassandra-mesos-deprecated/clusterjob"
	"github.com/gufranmmu/cassandra-mesos-deprecated/model"
	"github.com/gufranmmu/cassandra-mesos-deprecated/ports"
	"github.com/gufranmmu/cassandra-mesos-deprecated/resources"
)

// Engine wires the components a single decide() call needs. It holds
// no state of its own beyond the two sub-components it delegates to.
type Engine struct {
	Cluster *cluster.Manager
	Jobs    *clusterjob.Orchestrator
}

// New wires an Engine over mgr and jobs.
func New(mgr *cluster.Manager, jobs *clusterjob.Orchestrator) *Engine {
	return &Engine{Cluster: mgr, Jobs: jobs}
}

// Decide implements decide(offer) of §4.8. A nil result means the
// offer yields nothing to do.
func (e *Engine) Decide(offer model.Offer) (*model.TasksForOffer, error) {
	cfg, err := e.Cluster.Config.Get()
	if err != nil {
		return nil, err
	}

	// 1. Locate or register the node.
	node, ok, err := e.Cluster.FindNode(offer.Hostname)
	if err != nil {
		return nil, err
	}
	if !ok {
		node, err = e.Cluster.Register(offer.Hostname)
		if err != nil {
			if err == cluster.ErrNodeCapReached {
				log.V(2).Infof("decision: declining offer %s, node cap reached and host %s is unknown", offer.ID, offer.Hostname)
				return nil, nil
			}
			log.Warningf("decision: failed to register host %s: %v", offer.Hostname, err)
			return nil, nil
		}
	}

	// 2. Bind executor if missing.
	if node.Executor == nil {
		node, err = e.Cluster.AssignExecutor(node.Hostname)
		if err != nil {
			return nil, err
		}
	}

	result := &model.TasksForOffer{}

	// 3. No metadata task yet: launch it.
	if node.MetadataTask == nil {
		need := resources.Need{CPU: 0.1, MemMb: 16, DiskMb: 16}
		if shortfalls := resources.HasResources(offer, need); len(shortfalls) > 0 {
			log.V(2).Infof("decision: offer %s insufficient for metadata task on %s: %v", offer.ID, node.Hostname, shortfalls)
			return nil, nil
		}
		_, launch, err := e.Cluster.LaunchMetadataTask(node)
		if err != nil {
			return nil, err
		}
		result.LaunchTasks = append(result.LaunchTasks, launch)
		return result, nil
	}

	// 4. Metadata not yet reported: nothing more to do this offer.
	reported, err := e.Cluster.MetadataReported(node.Executor.ExecutorID)
	if err != nil {
		return nil, err
	}
	if !reported {
		return nil, nil
	}

	// 5. No server task yet: apply admission, launch on pass.
	if node.ServerTask == nil {
		nodes, err := e.Cluster.AllNodes()
		if err != nil {
			return nil, err
		}
		admission, err := e.Cluster.CanLaunchServer(node, cfg, nodes)
		if err != nil {
			return nil, err
		}
		if !admission.Allowed {
			log.Infof("decision: parking server launch for %s: %s", node.Hostname, admission.Reason)
			return nil, nil
		}
		need := resources.Need{CPU: cfg.CPUCores, MemMb: float64(cfg.MemMb), DiskMb: float64(cfg.DiskMb)}
		allPorts, err := ports.New(cfg.PortMappings).AllPorts()
		if err != nil {
			return nil, err
		}
		need.Ports = allPorts
		if shortfalls := resources.HasResources(offer, need); len(shortfalls) > 0 {
			log.Infof("decision: parking server launch for %s, resource shortfall: %v", node.Hostname, shortfalls)
			return nil, nil
		}
		_, launch, err := e.Cluster.LaunchServerTask(node, cfg, nodes)
		if err != nil {
			return nil, err
		}
		result.LaunchTasks = append(result.LaunchTasks, launch)
		return result, nil
	}

	// 6. Server is up: submit a health check if due, then step the
	// cluster job orchestrator.
	due, err := e.Cluster.ShouldSubmitHealthCheck(node.Executor.ExecutorID, cfg)
	if err != nil {
		return nil, err
	}
	if due {
		result.SubmitTasks = append(result.SubmitTasks, model.SubmitTask{
			ExecutorID:    node.Executor.ExecutorID,
			Payload:       model.PayloadHealthCheck,
			CorrelationID: uuid.NewString(),
		})
	}

	nodeExists := func(executorID string) bool {
		nodes, err := e.Cluster.AllNodes()
		if err != nil {
			return false
		}
		for _, n := range nodes {
			if n.Executor != nil && n.Executor.ExecutorID == executorID {
				return true
			}
		}
		return false
	}
	step, err := e.Jobs.Step(node.Executor.ExecutorID, nodeExists)
	if err != nil {
		return nil, err
	}
	if step.Launch != nil {
		result.LaunchTasks = append(result.LaunchTasks, *step.Launch)
	}
	if step.Submit != nil {
		result.SubmitTasks = append(result.SubmitTasks, *step.Submit)
	}

	// 7. Nothing to do.
	if result.Empty() {
		return nil, nil
	}
	return result, nil
}
