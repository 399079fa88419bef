package store

import (
	"testing"

	"github.com/gufranmmu/cassandra-mesos-deprecated/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedRoundTrip(t *testing.T) {
	backend := NewMemory()
	typed := NewTyped(backend, "some-key", 42)

	v, err := typed.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v, "zero value before first write")

	require.NoError(t, typed.Set(7))
	v, err = typed.Get()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestTypedCorruptData(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Set("k", []byte("not json")))
	typed := NewTyped(backend, "k", 0)
	_, err := typed.Get()
	assert.ErrorIs(t, err, ErrStateCorrupt)
}

func TestClusterStateStore(t *testing.T) {
	backend := NewMemory()
	s := NewClusterStateStore(backend)

	nodes, err := s.Nodes()
	require.NoError(t, err)
	assert.Empty(t, nodes)

	n := model.Node{Hostname: "h1", IP: "10.0.0.1", Seed: true}
	require.NoError(t, s.SetNodes([]model.Node{n}))

	nodes, err = s.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "h1", nodes[0].Hostname)

	meta, err := s.ExecutorMetadata()
	require.NoError(t, err)
	assert.Empty(t, meta)

	meta["e1"] = model.ExecutorMetadata{ExecutorID: "e1", IP: "10.0.0.1"}
	require.NoError(t, s.SetExecutorMetadata(meta))

	meta2, err := s.ExecutorMetadata()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", meta2["e1"].IP)

	// Setting metadata must not clobber the previously persisted nodes.
	nodes, err = s.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
}

func TestHealthHistoryStore(t *testing.T) {
	backend := NewMemory()
	s := NewHealthHistoryStore(backend)

	_, ok, err := s.LastEntry("e1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Append(model.HealthCheckHistoryEntry{ExecutorID: "e1", TimestampMs: 10}))
	require.NoError(t, s.Append(model.HealthCheckHistoryEntry{ExecutorID: "e1", TimestampMs: 20}))
	require.NoError(t, s.Append(model.HealthCheckHistoryEntry{ExecutorID: "e2", TimestampMs: 15}))

	last, ok, err := s.LastEntry("e1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 20, last.TimestampMs)

	perExec, err := s.LastEntryPerExecutor()
	require.NoError(t, err)
	assert.EqualValues(t, 20, perExec["e1"].TimestampMs)
	assert.EqualValues(t, 15, perExec["e2"].TimestampMs)

	require.NoError(t, s.DropExecutor("e1"))
	_, ok, err = s.LastEntry("e1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecutorCounterStore(t *testing.T) {
	backend := NewMemory()
	s := NewExecutorCounterStore(backend)

	n1, err := s.Next()
	require.NoError(t, err)
	n2, err := s.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n1)
	assert.EqualValues(t, 2, n2)
}

func TestClusterJobsStoreDefault(t *testing.T) {
	backend := NewMemory()
	s := NewClusterJobsStore(backend)

	jobs, err := s.Get()
	require.NoError(t, err)
	assert.Nil(t, jobs.CurrentClusterJob)
	assert.NotNil(t, jobs.LastClusterJobs)
}

func TestLastServerLaunchStore(t *testing.T) {
	backend := NewMemory()
	s := NewLastServerLaunchStore(backend)

	v, err := s.Get()
	require.NoError(t, err)
	assert.EqualValues(t, 0, v)

	require.NoError(t, s.Set(12345))
	v, err = s.Get()
	require.NoError(t, err)
	assert.EqualValues(t, 12345, v)
}
