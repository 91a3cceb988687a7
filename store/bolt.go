package store

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names inside the bolt file.
var (
	bucketValues   = []byte("values")
	bucketCounters = []byte("counters")
	bucketSets     = []byte("sets")
)

// BoltStore implements Store on a bbolt file. Writes go through bbolt's
// single writer transaction, which gives Increment its atomicity.
type BoltStore struct {
	db     *bolt.DB
	config BoltStoreConfig
	closed atomic.Bool
}

// BoltStoreConfig holds bbolt store configuration.
type BoltStoreConfig struct {
	// Path is the database file path.
	Path string

	// FileMode is the mode the file is created with.
	// Default: 0600
	FileMode os.FileMode

	// OpenTimeout bounds the wait for the file lock.
	// Default: 1s
	OpenTimeout time.Duration
}

// DefaultBoltStoreConfig returns configuration with sensible defaults.
func DefaultBoltStoreConfig() BoltStoreConfig {
	return BoltStoreConfig{
		FileMode:    0600,
		OpenTimeout: time.Second,
	}
}

// NewBoltStore opens (or creates) a bbolt file and prepares its buckets.
func NewBoltStore(cfg BoltStoreConfig) (*BoltStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path required")
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = DefaultBoltStoreConfig().FileMode
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBoltStoreConfig().OpenTimeout
	}

	db, err := bolt.Open(cfg.Path, cfg.FileMode, &bolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketValues, bucketCounters, bucketSets} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db, config: cfg}, nil
}

// Get retrieves a value by key.
func (s *BoltStore) Get(key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketValues).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// Bolt memory is only valid inside the transaction
		val = make([]byte, len(v))
		copy(val, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value.
func (s *BoltStore) Set(key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketValues).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("bolt put: %w", err)
	}
	return nil
}

// Increment atomically increments the named counter.
func (s *BoltStore) Increment(key string) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if s.closed.Load() {
		return 0, ErrClosed
	}

	var next int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCounters)
		cur := int64(0)
		if v := b.Get([]byte(key)); v != nil {
			n, err := strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt counter %s: %w", key, err)
			}
			cur = n
		}
		next = cur + 1
		return b.Put([]byte(key), []byte(strconv.FormatInt(next, 10)))
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// SAdd adds a member to the named set.
func (s *BoltStore) SAdd(key, member string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		sb, err := tx.Bucket(bucketSets).CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		return sb.Put([]byte(member), []byte{})
	})
	if err != nil {
		return fmt.Errorf("bolt sadd: %w", err)
	}
	return nil
}

// SRem removes a member from the named set.
func (s *BoltStore) SRem(key, member string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		sb := tx.Bucket(bucketSets).Bucket([]byte(key))
		if sb == nil {
			return nil
		}
		return sb.Delete([]byte(member))
	})
	if err != nil {
		return fmt.Errorf("bolt srem: %w", err)
	}
	return nil
}

// SMembers returns all members of the named set.
// Bolt cursors iterate in byte order, so members come back sorted.
func (s *BoltStore) SMembers(key string) ([]string, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	members := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		sb := tx.Bucket(bucketSets).Bucket([]byte(key))
		if sb == nil {
			return nil
		}
		return sb.ForEach(func(k, _ []byte) error {
			members = append(members, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt smembers: %w", err)
	}
	return members, nil
}

// Close shuts down the store.
func (s *BoltStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
