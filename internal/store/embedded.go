package store

import (
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"greyd/internal/logging"
)

var elog = logging.For("store.embedded")

var entriesBucket = []byte("entries")

// Embedded is the file-backed Store over a bbolt database. The database is
// opened with NoSync, so durability happens on Save, not per write.
//
// A process-local mutex serializes Update and Delete. Get and Apply's
// enumeration take no lock: a reader may observe a write in flight. That
// race is tolerated; greylisting data is eventually consistent and a stale
// read costs at most one extra deferral.
type Embedded struct {
	path string
	db   *bolt.DB

	mu sync.Mutex // guards mutating operations only
}

// OpenEmbedded creates or opens the database file at path with mode 0660.
func OpenEmbedded(path string) (*Embedded, error) {
	db, err := bolt.Open(path, 0o660, &bolt.Options{NoSync: true})
	if err != nil {
		return nil, fmt.Errorf("opening embedded db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing embedded db %s: %w", path, err)
	}
	elog.Info("opened embedded db", "path", path)
	return &Embedded{path: path, db: db}, nil
}

func (s *Embedded) Update(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("updating %q: %w", key, err)
	}
	elog.Debug("updated entry", "key", key, "value", value)
	return nil
}

func (s *Embedded) Get(key string) (string, bool, error) {
	var value string
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(entriesBucket).Get([]byte(key))
		if v != nil {
			value = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("reading %q: %w", key, err)
	}
	return value, found, nil
}

func (s *Embedded) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		if b.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		if err == ErrNotFound {
			return fmt.Errorf("deleting %q: %w", key, ErrNotFound)
		}
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	elog.Debug("deleted entry", "key", key)
	return nil
}

// Save flushes completed writes to disk.
func (s *Embedded) Save() error {
	elog.Debug("syncing embedded db", "path", s.path)
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", s.path, err)
	}
	return nil
}

// Apply materializes the key set up front, then fetches each value live
// before invoking fn. The result reflects the keys present at call start
// but values as of each fetch; entries deleted mid-scan (including by fn
// itself) are skipped. This keeps a long sweep from ever blocking readers
// or writers.
func (s *Embedded) Apply(fn TransformFunc) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating keys: %w", err)
	}

	var results []string
	for _, k := range keys {
		value, found, err := s.Get(k)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if r, keep := fn(k, value); keep {
			results = append(results, r)
		}
	}
	return results, nil
}

// Close releases the database file lock. Not part of the Store contract;
// exists so tests can reopen the same path.
func (s *Embedded) Close() error {
	return s.db.Close()
}
