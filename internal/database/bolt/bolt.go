// Package bolt stores credential keys in a local BoltDB file.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-enroll/internal/config"
	"github.com/kozaktomas/face-enroll/internal/database"
	"go.etcd.io/bbolt"
)

// Store implements database.KV on a single bucket.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

// New wraps an open database. The bucket is created on first write.
func New(db *bbolt.DB, bucket string) *Store {
	return &Store{db: db, bucket: []byte(bucket)}
}

// OpenFile opens or creates the database at path.
func OpenFile(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("bolt path is required")
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt file %s: %w", path, err)
	}
	return New(db, database.DefaultBucket), nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return database.ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return database.ErrNotFound
		}
		// v is only valid for the life of the transaction
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func init() {
	database.RegisterBackend(database.BackendBolt, func(_ context.Context, cfg *config.DatabaseConfig) (database.KV, error) {
		return OpenFile(cfg.BoltPath)
	})
}
