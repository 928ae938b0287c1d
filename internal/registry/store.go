// Package registry is the bookkeeping database shared by all storage nodes
// and the master: one bucket per node, named by the node's registry table
// derivation, holding a record per stored file.
package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"distfs/internal/identity"
)

const (
	tablePrefix = "sn__"

	defaultTO = 2 * time.Second
)

// FileRecord is one stored file as the registry sees it.
type FileRecord struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Hash     string    `json:"hash"`
	StoredAt time.Time `json:"stored_at"`
}

// Store is a BoltDB-backed registry.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the registry database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: defaultTO})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// EnsureNode creates the node's bucket if it does not exist yet.
func (s *Store) EnsureNode(id identity.NodeID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(id.RegistryTable()))
		return err
	})
}

// RecordFile upserts the record for one file under its node's bucket. A
// re-PUT of the same filename overwrites the previous row, matching the
// last-writer-wins semantics of the storage directory itself.
func (s *Store) RecordFile(id identity.NodeID, rec FileRecord) error {
	if rec.Name == "" {
		return errors.New("missing file name")
	}
	if rec.StoredAt.IsZero() {
		rec.StoredAt = time.Now().UTC()
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(id.RegistryTable()))
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.Name), val)
	})
}

// Files lists the records held for one node, in key order.
func (s *Store) Files(id identity.NodeID) ([]FileRecord, error) {
	var out []FileRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(id.RegistryTable()))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var rec FileRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				// Corrupt row: skip it rather than failing the listing.
				return nil
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// Nodes returns the identity of every node with a bucket in the registry.
// Buckets whose names do not parse as node tables are ignored.
func (s *Store) Nodes() ([]identity.NodeID, error) {
	var out []identity.NodeID
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if !strings.HasPrefix(string(name), tablePrefix) {
				return nil
			}
			id, err := identity.ParseRegistryTable(string(name))
			if err != nil {
				return nil
			}
			out = append(out, id)
			return nil
		})
	})
	return out, err
}

// Reset deletes every row from every node bucket but keeps the buckets, so
// the cluster's node set survives a cleanup.
func (s *Store) Reset() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			var keys [][]byte
			if err := b.ForEach(func(k, _ []byte) error {
				keys = append(keys, append([]byte(nil), k...))
				return nil
			}); err != nil {
				return err
			}
			for _, k := range keys {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
	})
}
