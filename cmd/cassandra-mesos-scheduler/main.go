// Command cassandra-mesos-scheduler is the framework's entry point:
// flag parsing, artifact hosting, Mesos driver construction, and
// bring-up of the admin HTTP surface (§12), grounded closely on the
// etcd-mesos scheduler's own main().
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"os"

	"github.com/gogo/protobuf/proto"
	log "github.com/golang/glog"
	"github.com/mesos/mesos-go/auth"
	"github.com/mesos/mesos-go/auth/sasl"
	"github.com/mesos/mesos-go/auth/sasl/mech"
	mesos "github.com/mesos/mesos-go/mesosproto"
	"github.com/mesos/mesos-go/scheduler"
	"golang.org/x/net/context"
	yaml "gopkg.in/yaml.v3"

	"github.com/gufranmmu/cassandra-mesos-deprecated/artifacts"
	"github.com/gufranmmu/cassandra-mesos-deprecated/clock"
	"github.com/gufranmmu/cassandra-mesos-deprecated/cluster"
	"github.com/gufranmmu/cassandra-mesos-deprecated/clusterjob"
	"github.com/gufranmmu/cassandra-mesos-deprecated/decision"
	"github.com/gufranmmu/cassandra-mesos-deprecated/httpapi"
	"github.com/gufranmmu/cassandra-mesos-deprecated/mesosdriver"
	"github.com/gufranmmu/cassandra-mesos-deprecated/model"
	"github.com/gufranmmu/cassandra-mesos-deprecated/store"
)

func parseIP(address string) net.IP {
	addr, err := net.LookupIP(address)
	if err != nil {
		log.Fatal(err)
	}
	if len(addr) < 1 {
		log.Fatalf("failed to parse IP from address '%v'", address)
	}
	return addr[0]
}

// serveArtifact hosts path at a URL built by artifacts.BuildURL and
// returns it, mirroring the teacher's ServeExecutorArtifact but
// routed through the §6 launch-artifact URL builder for its naming
// and slash-collapsing rules.
func serveArtifact(path, name, address string, artifactPort int) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	http.HandleFunc("/"+name, func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	})
	uri := artifacts.BuildURL(fmt.Sprintf("http://%s:%d", address, artifactPort), name)
	log.V(2).Infof("hosting artifact '%s' at '%s'", path, uri)
	return uri, nil
}

func loadSeedConfig(path string) (model.FrameworkConfiguration, error) {
	var cfg model.FrameworkConfiguration
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("main: failed to parse seed config %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	clusterName := flag.String("cluster-name", "default", "Unique name of this Cassandra cluster")
	master := flag.String("master", "127.0.0.1:5050", "Master address <ip:port>")
	zkFrameworkPersist := flag.String("zk-framework-persist", "", "Zookeeper URI of the form zk://host1:port1,host2:port2/chroot/path, also used as the persisted-state backend")
	seedConfigPath := flag.String("seed-config", "", "Optional YAML FrameworkConfiguration to seed on first boot")
	adminPort := flag.Int("admin-port", 23400, "Binding port for admin interface")
	artifactPort := flag.Int("artifact-port", 12300, "Binding port for artifact server")
	executorPath := flag.String("executor-bin", "./bin/cassandra-mesos-executor", "Path to executor binary")
	jrePath := flag.String("jre-archive", "./bin/jre.tar.gz", "Path to JRE archive")
	cassandraPath := flag.String("cassandra-archive", "./bin/cassandra.tar.gz", "Path to the Cassandra distribution archive")
	cassandraVersion := flag.String("cassandra-version", "3.11.6", "Cassandra version encoded into the hosted archive's name")
	address := flag.String("address", "", "Binding address for scheduler and artifact server")
	driverPort := flag.Int("driver-port", 0, "Binding port for scheduler driver")
	mesosAuthPrincipal := flag.String("mesos-authentication-principal", "", "Mesos authentication principal")
	mesosAuthSecretFile := flag.String("mesos-authentication-secret-file", "", "Mesos authentication secret file")
	authProvider := flag.String("mesos-authentication-provider", sasl.ProviderName,
		fmt.Sprintf("Authentication provider to use, default is SASL that supports mechanisms: %+v", mech.ListSupported()))
	testMode := flag.Bool("test-mode", false, "use an in-memory state backend instead of zookeeper, for local testing")
	failoverTimeoutSeconds := flag.Float64("failover-timeout-seconds", 60*60*24*7, "Mesos framework failover timeout in seconds")
	flag.Parse()

	if *zkFrameworkPersist == "" && !*testMode {
		log.Fatal("No value provided for -zk-framework-persist! This can be " +
			"overridden with -test-mode=true, but several runtime guarantees no " +
			"longer hold and all tasks will be orphaned when this process exits.")
	}

	if *address == "" {
		hostname, err := os.Hostname()
		if err == nil {
			*address = hostname
		} else {
			log.Errorf("could not default binding address to hostname, defaulting to 127.0.0.1")
			*address = "127.0.0.1"
		}
	}

	hostedArtifacts := []struct {
		path string
		name string
	}{
		{*executorPath, artifacts.ExecutorBundleName},
		{*jrePath, artifacts.JREArchiveName()},
		{*cassandraPath, artifacts.DatabaseArchiveName(*cassandraVersion)},
	}
	executorURIs := []*mesos.CommandInfo_URI{}
	for _, a := range hostedArtifacts {
		uri, err := serveArtifact(a.path, a.name, *address, *artifactPort)
		if err != nil {
			log.Errorf("could not stat artifact %s: %v", a.path, err)
			return
		}
		executorURIs = append(executorURIs, &mesos.CommandInfo_URI{
			Value:      proto.String(uri),
			Executable: proto.Bool(true),
		})
	}
	go http.ListenAndServe(fmt.Sprintf("%s:%d", *address, *artifactPort), nil)
	log.V(2).Info("serving executor artifacts...")

	mesosdriver.Configure(fmt.Sprintf("./%s -logtostderr", artifacts.ExecutorBundleName), executorURIs)

	bindingAddress := parseIP(*address)

	var backend store.Backend
	var zkServers []string
	var zkChroot string
	if *testMode {
		backend = store.NewMemory()
	} else {
		servers, chroot, err := parseZKURI(*zkFrameworkPersist)
		if err != nil {
			log.Fatalf("error parsing zookeeper URI %s: %v", *zkFrameworkPersist, err)
		}
		zkServers, zkChroot = servers, chroot
		zkStore, err := store.NewZKStore(zkServers, fmt.Sprintf("%s/%s", zkChroot, *clusterName))
		if err != nil {
			log.Fatalf("could not connect to zookeeper: %v", err)
		}
		backend = zkStore
	}

	fc := clock.System{}
	resolver := cluster.SystemResolver{}
	mgr := cluster.NewManager(
		store.NewClusterStateStore(backend),
		store.NewFrameworkConfigStore(backend),
		store.NewHealthHistoryStore(backend),
		store.NewExecutorCounterStore(backend),
		store.NewLastServerLaunchStore(backend),
		fc,
		resolver,
	)

	if *seedConfigPath != "" {
		existing, err := mgr.Config.Get()
		if err != nil {
			log.Fatalf("could not read existing framework configuration: %v", err)
		}
		if existing.NumberOfNodes == 0 {
			seed, err := loadSeedConfig(*seedConfigPath)
			if err != nil {
				log.Fatalf("could not load seed configuration: %v", err)
			}
			seed.FrameworkName = *clusterName
			if err := mgr.Config.Set(seed); err != nil {
				log.Fatalf("could not persist seed configuration: %v", err)
			}
		}
	}

	jobs := clusterjob.New(store.NewClusterJobsStore(backend), fc)
	engine := decision.New(mgr, jobs)

	sched := mesosdriver.New(engine, mgr, jobs, backend, *clusterName, nil)

	fwinfo := &mesos.FrameworkInfo{
		User:            proto.String(""),
		Name:            proto.String("cassandra-" + *clusterName),
		Checkpoint:      proto.Bool(true),
		FailoverTimeout: proto.Float64(*failoverTimeoutSeconds),
	}

	cred := (*mesos.Credential)(nil)
	if *mesosAuthPrincipal != "" {
		fwinfo.Principal = proto.String(*mesosAuthPrincipal)
		secret, err := ioutil.ReadFile(*mesosAuthSecretFile)
		if err != nil {
			log.Fatal(err)
		}
		cred = &mesos.Credential{Principal: proto.String(*mesosAuthPrincipal), Secret: secret}
	}

	config := scheduler.DriverConfig{
		Scheduler:      sched,
		Framework:      fwinfo,
		Master:         *master,
		Credential:     cred,
		BindingAddress: bindingAddress,
		BindingPort:    uint16(*driverPort),
		WithAuthContext: func(ctx context.Context) context.Context {
			ctx = auth.WithLoginProvider(ctx, *authProvider)
			ctx = sasl.WithBindingAddress(ctx, bindingAddress)
			return ctx
		},
	}

	driver, err := scheduler.NewMesosSchedulerDriver(config)
	if err != nil {
		log.Errorln("unable to create a SchedulerDriver:", err.Error())
		return
	}

	admin := httpapi.New(mgr, jobs)
	go func() {
		if err := admin.ListenAndServe(*adminPort); err != nil {
			log.Errorf("admin HTTP server exited: %v", err)
		}
	}()

	if stat, err := driver.Run(); err != nil {
		log.Infof("framework stopped with status %s and error: %s", stat.String(), err.Error())
	}
}

// parseZKURI parses "zk://host1:port1,host2:port2/chroot/path" into
// its server list and chroot, matching the teacher's rpc.ParseZKURI.
func parseZKURI(uri string) ([]string, string, error) {
	const prefix = "zk://"
	if len(uri) < len(prefix) || uri[:len(prefix)] != prefix {
		return nil, "", fmt.Errorf("main: zookeeper URI %q must start with %q", uri, prefix)
	}
	rest := uri[len(prefix):]
	slash := -1
	for i, c := range rest {
		if c == '/' {
			slash = i
			break
		}
	}
	hosts := rest
	chroot := "/"
	if slash >= 0 {
		hosts = rest[:slash]
		chroot = rest[slash:]
	}
	var servers []string
	start := 0
	for i := 0; i <= len(hosts); i++ {
		if i == len(hosts) || hosts[i] == ',' {
			if i > start {
				servers = append(servers, hosts[start:i])
			}
			start = i + 1
		}
	}
	if len(servers) == 0 {
		return nil, "", fmt.Errorf("main: zookeeper URI %q has no hosts", uri)
	}
	return servers, chroot, nil
}

