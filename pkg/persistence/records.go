package persistence

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned by ReadOne and ReadAfter when the named file has
// no record (ReadOne) or no record matching the anchor predicate (ReadAfter).
var ErrNotFound = errors.New("persistence: not found")

// fixedKey is the key single-record files are stored under.
var fixedKey = []byte("record")

// InitEmpty creates the named file if it does not already exist, leaving
// it with no records. Safe to call on every repository open.
func InitEmpty(s *Store, path string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(path))
		return err
	})
	if err != nil {
		return fmt.Errorf("persistence: init_empty %s: %w", path, err)
	}
	return nil
}

// InitOne creates the named file and writes its single initial record. It
// fails if the file already holds a record, so repository bootstrap cannot
// silently clobber an existing repo_details or storage_details file.
func InitOne[T any](s *Store, path string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("persistence: init_one %s: encode: %w", path, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(path))
		if err != nil {
			return err
		}
		if b.Get(fixedKey) != nil {
			return fmt.Errorf("%s already initialized", path)
		}
		return b.Put(fixedKey, data)
	})
	if err != nil {
		return fmt.Errorf("persistence: init_one %s: %w", path, err)
	}
	return nil
}

// Delete removes the named file (single-record or append-only) entirely,
// used by the supplemented discard_local_object operation to drop a
// purely-local StorageObject's persisted record.
func Delete(s *Store, path string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(path)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(path))
	})
	if err != nil {
		return fmt.Errorf("persistence: delete %s: %w", path, err)
	}
	return nil
}

// InitRaw creates path and writes data as its single record, failing if
// path already holds one. Used for repo_details, whose YAML encoding is
// chosen by pkg/repository rather than the json.Marshal every other
// record type here goes through.
func InitRaw(s *Store, path string, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(path))
		if err != nil {
			return err
		}
		if b.Get(fixedKey) != nil {
			return fmt.Errorf("%s already initialized", path)
		}
		return b.Put(fixedKey, data)
	})
	if err != nil {
		return fmt.Errorf("persistence: init_raw %s: %w", path, err)
	}
	return nil
}

// ReadRaw returns the raw bytes stored at path by InitRaw/WriteRaw.
func ReadRaw(s *Store, path string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(path))
		if b == nil {
			return ErrNotFound
		}
		data := b.Get(fixedKey)
		if data == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: read_raw %s: %w", path, err)
	}
	return out, nil
}

// WriteRaw overwrites path's single record with data, creating it if
// necessary.
func WriteRaw(s *Store, path string, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(path))
		if err != nil {
			return err
		}
		return b.Put(fixedKey, data)
	})
	if err != nil {
		return fmt.Errorf("persistence: write_raw %s: %w", path, err)
	}
	return nil
}

// ReadOne reads the single record stored at path.
func ReadOne[T any](s *Store, path string) (T, error) {
	var out T
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(path))
		if b == nil {
			return ErrNotFound
		}
		data := b.Get(fixedKey)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		return out, fmt.Errorf("persistence: read_one %s: %w", path, err)
	}
	return out, nil
}

// WriteOne overwrites the single record stored at path, creating the file
// if necessary. Unlike InitOne this is idempotent; it backs the mutable
// commit_log/index cache, which must be rewritten after every append.
func WriteOne[T any](s *Store, path string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("persistence: write_one %s: encode: %w", path, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(path))
		if err != nil {
			return err
		}
		return b.Put(fixedKey, data)
	})
	if err != nil {
		return fmt.Errorf("persistence: write_one %s: %w", path, err)
	}
	return nil
}

// AppendOne appends one record to the named file, assigning it the next
// sequence number so ReadAll/ReadAfter observe it in append order.
func AppendOne[T any](s *Store, path string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("persistence: append_one %s: encode: %w", path, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(path))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return fmt.Errorf("persistence: append_one %s: %w", path, err)
	}
	return nil
}

// ReadAll reads every record in the named file in append order.
func ReadAll[T any](s *Store, path string) ([]T, error) {
	var out []T
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(path))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec T
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: read_all %s: %w", path, err)
	}
	return out, nil
}

// ReadAfter reads every record following the first one for which anchor
// returns true. If no record satisfies anchor, it returns ErrNotFound
// unless allowMissing is true, in which case it returns the full sequence
// (used when the caller's reference point is the empty/sentinel id).
func ReadAfter[T any](s *Store, path string, allowMissing bool, anchor func(T) bool) ([]T, error) {
	all, err := ReadAll[T](s, path)
	if err != nil {
		return nil, err
	}
	for i, rec := range all {
		if anchor(rec) {
			return all[i+1:], nil
		}
	}
	if allowMissing {
		return all, nil
	}
	return nil, fmt.Errorf("persistence: read_after %s: %w", path, ErrNotFound)
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
