package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var sensorsBucket = []byte("sensors")

// BoltStore is a Store backed by an embedded bbolt database file. It is
// the concrete stand-in for "the external Store" in single-node
// deployments where a separate KV service is unnecessary overhead.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if absent) a bbolt database at path.
func OpenBoltStore(path string, timeout time.Duration) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sensorsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create sensors bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) ReadAll(ctx context.Context, keys []string) (map[string]Value, error) {
	out := make(map[string]Value)

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(sensorsBucket)
		if b == nil {
			return nil
		}

		decode := func(k, v []byte) error {
			var val Value
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("decode value for key %q: %w", k, err)
			}
			out[string(k)] = val
			return nil
		}

		if keys == nil {
			return b.ForEach(func(k, v []byte) error {
				return decode(k, v)
			})
		}

		for _, k := range keys {
			v := b.Get([]byte(k))
			if v == nil {
				continue
			}
			if err := decode([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})

	return out, err
}

func (s *BoltStore) WriteBatch(ctx context.Context, values map[string]Value) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sensorsBucket)
		for k, v := range values {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode value for key %q: %w", k, err)
			}
			if err := b.Put([]byte(k), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Health(ctx context.Context) bool {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(sensorsBucket) == nil {
			return fmt.Errorf("sensors bucket missing")
		}
		return nil
	}) == nil
}
