package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var rootBucket = []byte("cove")

// BoltStore is the reference KV backend: a single bbolt file holding every
// object under one bucket, keyed by the hierarchical path built in
// store.go. bbolt gives us a durable, crash-safe, single-writer store
// without standing up a separate KV cluster, the same tradeoff the
// teacher repo made for its own bucket-per-kind storage layer.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a bbolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt store %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket)
		v := b.Get([]byte(key))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (s *BoltStore) Put(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket)
		return b.Put([]byte(key), value)
	})
}

func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket)
		return b.Delete([]byte(key))
	})
}

func (s *BoltStore) List(prefix string) ([][]byte, error) {
	var out [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket)
		c := b.Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && hasPrefix(string(k), prefix); k, v = c.Next() {
			out = append(out, append([]byte(nil), v...))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
