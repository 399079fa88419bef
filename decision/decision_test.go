package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cclock "github.com/gufranmmu/cassandra-mesos-deprecated/clock"
	"github.com/gufranmmu/cassandra-mesos-deprecated/cluster"
	"github.com/gufranmmu/cassandra-mesos-deprecated/clusterjob"
	"github.com/gufranmmu/cassandra-mesos-deprecated/model"
	"github.com/gufranmmu/cassandra-mesos-deprecated/store"
)

type fakeResolver struct {
	ips          map[string]string
	loopback     map[string]bool
	nextFreePort int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{ips: map[string]string{}, loopback: map[string]bool{}, nextFreePort: 40000}
}

func (f *fakeResolver) ResolveIP(hostname string) (string, error) {
	ip, ok := f.ips[hostname]
	if !ok {
		return "", cluster.ErrHostUnresolvable
	}
	return ip, nil
}

func (f *fakeResolver) IsLoopback(ip string) bool { return f.loopback[ip] }

func (f *fakeResolver) FreeLoopbackPort() (int, error) {
	f.nextFreePort++
	return f.nextFreePort, nil
}

func bigOffer(hostname string) model.Offer {
	return model.Offer{
		ID:       hostname + "-offer",
		Hostname: hostname,
		CPUs:     4,
		MemMb:    4096,
		DiskMb:   40960,
		Ports:    []model.PortRange{{Begin: 1, End: 65535}},
	}
}

func testEngine(t *testing.T) (*Engine, *cluster.Manager, *fakeResolver, *cclock.Fake) {
	t.Helper()
	backend := store.NewMemory()
	resolver := newFakeResolver()
	fc := cclock.NewFake(time.Unix(1000, 0))
	mgr := cluster.NewManager(
		store.NewClusterStateStore(backend),
		store.NewFrameworkConfigStore(backend),
		store.NewHealthHistoryStore(backend),
		store.NewExecutorCounterStore(backend),
		store.NewLastServerLaunchStore(backend),
		fc,
		resolver,
	)
	require.NoError(t, mgr.Config.Set(model.FrameworkConfiguration{
		FrameworkName:              "cassandra",
		NumberOfNodes:              3,
		NumberOfSeeds:              1,
		CPUCores:                   1,
		MemMb:                      2048,
		DiskMb:                     10240,
		HealthCheckIntervalSeconds: 60,
		BootstrapGraceTimeSeconds:  30,
	}))
	jobs := clusterjob.New(store.NewClusterJobsStore(backend), fc)
	return New(mgr, jobs), mgr, resolver, fc
}

func TestDecideFirstOfferRegistersAndLaunchesMetadata(t *testing.T) {
	e, _, resolver, _ := testEngine(t)
	resolver.ips["h1"] = "10.0.0.1"

	result, err := e.Decide(bigOffer("h1"))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.LaunchTasks, 1)
	assert.Equal(t, model.PayloadExecutorMetadata, result.LaunchTasks[0].Payload)
}

func TestDecideParksWhileMetadataUnreported(t *testing.T) {
	e, _, resolver, _ := testEngine(t)
	resolver.ips["h1"] = "10.0.0.1"

	_, err := e.Decide(bigOffer("h1"))
	require.NoError(t, err)

	result, err := e.Decide(bigOffer("h1"))
	require.NoError(t, err)
	assert.Nil(t, result, "second offer before metadata is reported yields nothing")
}

func TestDecideLaunchesSeedServerOnceMetadataReported(t *testing.T) {
	e, mgr, resolver, fc := testEngine(t)
	resolver.ips["h1"] = "10.0.0.1"

	_, err := e.Decide(bigOffer("h1"))
	require.NoError(t, err)

	node, ok, err := mgr.FindNode("h1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, node.Seed)
	require.NoError(t, mgr.RecordExecutorMetadata(node.Executor.ExecutorID, node.IP))

	fc.Advance(40 * time.Second)
	result, err := e.Decide(bigOffer("h1"))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.LaunchTasks, 1)
	assert.Equal(t, model.PayloadCassandraServer, result.LaunchTasks[0].Payload)
}

func TestDecideParksNonSeedUntilSeedCountMet(t *testing.T) {
	e, mgr, resolver, fc := testEngine(t)
	require.NoError(t, mgr.SetConfiguration(model.FrameworkConfiguration{
		FrameworkName:              "cassandra",
		NumberOfNodes:              3,
		NumberOfSeeds:              2,
		CPUCores:                   1,
		MemMb:                      2048,
		DiskMb:                     10240,
		HealthCheckIntervalSeconds: 60,
		BootstrapGraceTimeSeconds:  30,
	}))
	resolver.ips["h1"] = "10.0.0.1"
	resolver.ips["h2"] = "10.0.0.2"
	resolver.ips["h3"] = "10.0.0.3"

	_, err := e.Decide(bigOffer("h1"))
	require.NoError(t, err)
	_, err = e.Decide(bigOffer("h2"))
	require.NoError(t, err)
	_, err = e.Decide(bigOffer("h3"))
	require.NoError(t, err)

	n3, ok, err := mgr.FindNode("h3")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, n3.Seed, "third node must not be a seed when numberOfSeeds is 2")
	require.NoError(t, mgr.RecordExecutorMetadata(n3.Executor.ExecutorID, n3.IP))

	fc.Advance(40 * time.Second)
	result, err := e.Decide(bigOffer("h3"))
	require.NoError(t, err)
	assert.Nil(t, result, "non-seed parked until numberOfSeeds worth of metadata is known")
}

func TestDecideParksOnLaunchThrottle(t *testing.T) {
	e, mgr, resolver, fc := testEngine(t)
	resolver.ips["h1"] = "10.0.0.1"

	_, err := e.Decide(bigOffer("h1"))
	require.NoError(t, err)
	node, _, err := mgr.FindNode("h1")
	require.NoError(t, err)
	require.NoError(t, mgr.RecordExecutorMetadata(node.Executor.ExecutorID, node.IP))

	// A server was launched at the current instant and no time has
	// advanced since: the throttle window has not elapsed.
	require.NoError(t, mgr.LastLaunch.Set(cclock.NowMs(fc)))
	result, err := e.Decide(bigOffer("h1"))
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestDecideNodeCapReachedReturnsNilForUnknownHost(t *testing.T) {
	e, _, resolver, _ := testEngine(t)
	resolver.ips["h1"] = "10.0.0.1"
	resolver.ips["h2"] = "10.0.0.2"
	resolver.ips["h3"] = "10.0.0.3"
	resolver.ips["h4"] = "10.0.0.4"

	for _, h := range []string{"h1", "h2", "h3"} {
		_, err := e.Decide(bigOffer(h))
		require.NoError(t, err)
	}

	result, err := e.Decide(bigOffer("h4"))
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestDecideStepsClusterJobOnceServing(t *testing.T) {
	e, mgr, resolver, fc := testEngine(t)
	resolver.ips["h1"] = "10.0.0.1"

	_, err := e.Decide(bigOffer("h1"))
	require.NoError(t, err)
	node, _, err := mgr.FindNode("h1")
	require.NoError(t, err)
	require.NoError(t, mgr.RecordExecutorMetadata(node.Executor.ExecutorID, node.IP))
	fc.Advance(40 * time.Second)
	result, err := e.Decide(bigOffer("h1"))
	require.NoError(t, err)
	require.NotNil(t, result)

	ok, err := e.Jobs.StartClusterJob("REPAIR", []string{node.Executor.ExecutorID})
	require.NoError(t, err)
	require.True(t, ok)

	// Server is already up; a health check is also due here (no prior
	// entry), but this test only cares that the same offer steps the
	// cluster job and launches a NODE_JOB task alongside it.
	result, err = e.Decide(bigOffer("h1"))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.LaunchTasks, 1)
	assert.Equal(t, model.PayloadNodeJob, result.LaunchTasks[0].Payload)
}

func TestDecideSubmitsHealthCheckWhenDue(t *testing.T) {
	e, mgr, resolver, fc := testEngine(t)
	resolver.ips["h1"] = "10.0.0.1"

	_, err := e.Decide(bigOffer("h1"))
	require.NoError(t, err)
	node, _, err := mgr.FindNode("h1")
	require.NoError(t, err)
	require.NoError(t, mgr.RecordExecutorMetadata(node.Executor.ExecutorID, node.IP))
	fc.Advance(40 * time.Second)
	_, err = e.Decide(bigOffer("h1"))
	require.NoError(t, err)

	result, err := e.Decide(bigOffer("h1"))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.SubmitTasks, 1)
	assert.Equal(t, model.PayloadHealthCheck, result.SubmitTasks[0].Payload)
}
