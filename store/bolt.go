package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// bucketBlobs is the single bucket used for every persisted key; each
// key named in §6 gets its own bucket entry.
var bucketBlobs = []byte("blobs")

// BoltStore is a Backend implementation on top of BoltDB, grounded on
// the teacher-adjacent cuemby-warren BoltStore (pkg/storage/boltdb.go):
// JSON blobs, View/Update transactions, with every key stored in the
// single bucketBlobs bucket. Nothing in this repository constructs
// one: the scheduler binary uses ZKStore (or Memory under -test-mode)
// and the tests use Memory.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a BoltDB file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to create blobs bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get implements Backend.
func (s *BoltStore) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		out = make([]byte, len(data))
		copy(out, data)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Set implements Backend.
func (s *BoltStore) Set(key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		return b.Put([]byte(key), data)
	})
}
