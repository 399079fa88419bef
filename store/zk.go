package store

import (
	"fmt"
	"path"
	"time"

	log "github.com/golang/glog"
	"github.com/samuel/go-zookeeper/zk"
)

// ZKStore is a Backend implementation on top of ZooKeeper, grounded
// on the teacher's own use of samuel/go-zookeeper for framework-ID
// persistence (rpc.PersistFrameworkID/ClearZKState): each key becomes
// a znode under root, holding the blob as its data.
type ZKStore struct {
	conn *zk.Conn
	root string
}

// NewZKStore connects to servers and returns a ZKStore rooted at
// root (e.g. "/cassandra-mesos/<clusterName>"). The root path is
// created if it does not already exist.
func NewZKStore(servers []string, root string) (*ZKStore, error) {
	conn, _, err := zk.Connect(servers, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("store: failed to connect to zookeeper: %w", err)
	}
	s := &ZKStore{conn: conn, root: root}
	if err := s.ensurePath(root); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying ZooKeeper session.
func (s *ZKStore) Close() {
	s.conn.Close()
}

func (s *ZKStore) ensurePath(p string) error {
	if p == "" || p == "/" {
		return nil
	}
	exists, _, err := s.conn.Exists(p)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.ensurePath(path.Dir(p)); err != nil {
		return err
	}
	_, err = s.conn.Create(p, []byte{}, 0, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return err
	}
	return nil
}

func (s *ZKStore) znode(key string) string {
	return path.Join(s.root, key)
}

// Get implements Backend.
func (s *ZKStore) Get(key string) ([]byte, bool, error) {
	data, _, err := s.conn.Get(s.znode(key))
	if err == zk.ErrNoNode {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set implements Backend.
func (s *ZKStore) Set(key string, data []byte) error {
	znode := s.znode(key)
	_, err := s.conn.Set(znode, data, -1)
	if err == zk.ErrNoNode {
		_, err = s.conn.Create(znode, data, 0, zk.WorldACL(zk.PermAll))
		if err == zk.ErrNodeExists {
			// Lost a race with another writer creating the node; retry
			// the update now that it exists.
			_, err = s.conn.Set(znode, data, -1)
		}
	}
	if err != nil {
		log.Errorf("store: failed to persist key %s to zookeeper: %v", key, err)
	}
	return err
}
