// Package httpapi is the minimal admin HTTP surface named in §12: a
// read-only view of nodes and cluster jobs, plus a start/abort pair
// that calls directly into the cluster job orchestrator (C7),
// mirroring the teacher's AdminHTTP (/stats, /members, /reseed).
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/golang/glog"

	"github.com/gufranmmu/cassandra-mesos-deprecated/cluster"
	"github.com/gufranmmu/cassandra-mesos-deprecated/clusterjob"
)

// Server wires the admin HTTP mux over a cluster Manager and a
// clusterjob Orchestrator. It holds no state of its own.
type Server struct {
	Cluster *cluster.Manager
	Jobs    *clusterjob.Orchestrator
}

// New builds a Server.
func New(mgr *cluster.Manager, jobs *clusterjob.Orchestrator) *Server {
	return &Server{Cluster: mgr, Jobs: jobs}
}

// Mux builds the admin HTTP handler.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/nodes", s.handleNodes)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/start", s.handleJobsStart)
	mux.HandleFunc("/jobs/abort", s.handleJobsAbort)
	return mux
}

// ListenAndServe starts the admin HTTP server on port and blocks,
// matching the teacher's AdminHTTP.
func (s *Server) ListenAndServe(port int) error {
	log.Infof("httpapi: admin HTTP interface listening on port %d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.Mux())
}

type statsResponse struct {
	RegisteredNodes int `json:"registered_nodes"`
	SeedNodes       int `json:"seed_nodes"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	log.Infof("httpapi: %s %s", r.Method, r.URL.Path)
	nodes, err := s.Cluster.AllNodes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, statsResponse{
		RegisteredNodes: len(nodes),
		SeedNodes:       cluster.SeedCount(nodes),
	})
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	log.Infof("httpapi: %s %s", r.Method, r.URL.Path)
	nodes, err := s.Cluster.AllNodes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, nodes)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	log.Infof("httpapi: %s %s", r.Method, r.URL.Path)
	job, err := s.Jobs.Current()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, job)
}

func (s *Server) handleJobsStart(w http.ResponseWriter, r *http.Request) {
	log.Infof("httpapi: %s %s", r.Method, r.URL.Path)
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	jobType := r.URL.Query().Get("jobType")
	if jobType == "" {
		http.Error(w, "jobType is required", http.StatusBadRequest)
		return
	}
	nodes, err := s.Cluster.AllNodes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	executorIDs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Executor != nil {
			executorIDs = append(executorIDs, n.Executor.ExecutorID)
		}
	}
	started, err := s.Jobs.StartClusterJob(jobType, executorIDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"started": started})
}

func (s *Server) handleJobsAbort(w http.ResponseWriter, r *http.Request) {
	log.Infof("httpapi: %s %s", r.Method, r.URL.Path)
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	jobType := r.URL.Query().Get("jobType")
	if jobType == "" {
		http.Error(w, "jobType is required", http.StatusBadRequest)
		return
	}
	aborted, err := s.Jobs.AbortClusterJob(jobType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"aborted": aborted})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("httpapi: failed to encode response: %v", err)
	}
}
