/*
Package persistence implements the read_one/append_one/read_all/read_after/
init_one/init_empty contract a repository needs, backed by a single bbolt
database per data root. Each named file is a bucket; single-record files
use a fixed key, append-only logs use bbolt's auto-incrementing sequence so
iteration order is append order. Generics (ReadOne[T], ReadAll[T], ...)
let every record type — RepoDetails, Commit, StorageDetails, a persisted
StorageObject — share one implementation instead of one per type, the way
the teacher's BoltStore repeated itself per domain type.
*/
package persistence
