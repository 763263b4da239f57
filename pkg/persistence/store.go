// Package persistence is the byte-level contract every higher layer of
// demobit is built on: named, framed records read and appended to named
// "files". It knows nothing about actions, objects, or commits — it reads
// and writes whatever type the caller asks for.
//
// The on-disk layout described in the repository's top-level design doc
// (repo_details, commit_log/local, commit_log/remote, commit_log/index,
// storage_details/<id>, storage_data/<storage_id>/<object_id>) maps onto a
// single BoltDB (bbolt) database: each logical file name becomes a bucket,
// and bbolt's own page format gives each record the framing/atomicity the
// interface requires — append_one and read_all never need a hand-rolled
// length prefix.
package persistence

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// Store is a handle to the on-disk bbolt database backing one replica's
// data root. All higher-level packages (commit logs, storage details,
// storage object records) go through a Store rather than touching bbolt
// directly.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("persistence: close: %w", err)
	}
	return nil
}
