package buffer

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	queueBucket = []byte("queue")
	idsBucket   = []byte("ids")
)

// Store is a disk-backed queue of journal events waiting for Postgres.
// Queue keys are an 8-byte big-endian enqueue time followed by the item id,
// so a cursor walks them oldest first. The ids bucket maps item id to its
// queue key.
type Store struct {
	db   *bolt.DB
	root []byte
}

// Open creates the file (and its directory) if needed.
func Open(path string, name string) (*Store, error) {
	if name == "" {
		name = "journal"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		if _, err := root.CreateBucketIfNotExists(queueBucket); err != nil {
			return err
		}
		_, err = root.CreateBucketIfNotExists(idsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, root: []byte(name)}, nil
}

func (s *Store) buckets(tx *bolt.Tx) (queue, ids *bolt.Bucket) {
	root := tx.Bucket(s.root)
	return root.Bucket(queueBucket), root.Bucket(idsBucket)
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return nil
}

func (s *Store) Enqueue(item Item) error {
	if err := s.ready(); err != nil {
		return err
	}
	item.normalize()
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.put(tx, item)
	})
}

// GetBatch returns up to limit items, oldest first. Items stay queued until Remove.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		queue, _ := s.buckets(tx)
		c := queue.Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			if item, ok := decode(k, v); ok {
				items = append(items, item)
			}
		}
		return nil
	})
	return items, err
}

func (s *Store) Remove(item Item) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.drop(tx, item)
	})
}

// Requeue moves an item to the tail, keeping its retry count and last error.
func (s *Store) Requeue(item Item) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := s.drop(tx, item); err != nil {
			return err
		}
		item.Timestamp = time.Now()
		return s.put(tx, item)
	})
}

func (s *Store) PendingForTask(taskID string) ([]Item, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		queue, _ := s.buckets(tx)
		return queue.ForEach(func(k, v []byte) error {
			if item, ok := decode(k, v); ok && item.Event.TaskID == taskID {
				items = append(items, item)
			}
			return nil
		})
	})
	return items, err
}

func (s *Store) Size() (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		_, ids := s.buckets(tx)
		count = ids.Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup drops items enqueued before olderThan.
func (s *Store) Cleanup(olderThan time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	cutoff := timePrefix(olderThan)
	return s.db.Update(func(tx *bolt.Tx) error {
		queue, ids := s.buckets(tx)

		var stale [][]byte
		c := queue.Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k[:8], cutoff) < 0; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := queue.Delete(k); err != nil {
				return err
			}
			if err := ids.Delete(k[8:]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) put(tx *bolt.Tx, item Item) error {
	queue, ids := s.buckets(tx)
	key := queueKey(item)
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	if err := queue.Put(key, payload); err != nil {
		return err
	}
	return ids.Put([]byte(item.ID), key)
}

// drop removes item by its cursor key, falling back to the id index.
func (s *Store) drop(tx *bolt.Tx, item Item) error {
	queue, ids := s.buckets(tx)
	key := item.bucketKey
	if len(key) == 0 {
		if item.ID == "" {
			return nil
		}
		key = ids.Get([]byte(item.ID))
		if key == nil {
			return nil
		}
		key = append([]byte(nil), key...)
	}
	if len(key) < 8 {
		return errors.New("buffer: malformed queue key")
	}
	if err := queue.Delete(key); err != nil {
		return err
	}
	return ids.Delete(key[8:])
}

func decode(k, v []byte) (Item, bool) {
	var item Item
	if err := json.Unmarshal(v, &item); err != nil {
		return Item{}, false
	}
	item.bucketKey = append([]byte(nil), k...)
	return item, true
}

func queueKey(item Item) []byte {
	return append(timePrefix(item.Timestamp), item.ID...)
}

func timePrefix(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixNano()))
	return b
}
