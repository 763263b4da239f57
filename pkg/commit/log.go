package commit

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/mezeipetister/demobit/pkg/errs"
	"github.com/mezeipetister/demobit/pkg/persistence"
)

const (
	localPath  = "commit_log/local"
	remotePath = "commit_log/remote"
	indexPath  = "commit_log/index"
)

// index is the persisted commit_log/index cache of each log's tail id.
type index struct {
	LatestLocalID  uuid.UUID `json:"latest_local_id"`
	LatestRemoteID uuid.UUID `json:"latest_remote_id"`
}

// Log is the pair of append-only commit sequences (local, remote) one
// replica keeps, plus the index cache of each log's tail id. All mutating
// operations serialize through mu, matching the single logical merge/
// append lock the concurrency model assigns the commit log.
type Log struct {
	store *persistence.Store
	mu    sync.Mutex
}

// Init opens (creating if necessary) the local/remote logs and index.
func Init(store *persistence.Store) (*Log, error) {
	if err := persistence.InitEmpty(store, localPath); err != nil {
		return nil, errs.Persistence(err)
	}
	if err := persistence.InitEmpty(store, remotePath); err != nil {
		return nil, errs.Persistence(err)
	}
	if _, err := persistence.ReadOne[index](store, indexPath); err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return nil, errs.Persistence(err)
		}
		if err := persistence.InitOne(store, indexPath, index{}); err != nil {
			return nil, errs.Persistence(err)
		}
	}
	return &Log{store: store}, nil
}

func (l *Log) readIndexLocked() (index, error) {
	idx, err := persistence.ReadOne[index](l.store, indexPath)
	if err != nil {
		return index{}, errs.Persistence(err)
	}
	return idx, nil
}

func (l *Log) writeIndexLocked(idx index) error {
	if err := persistence.WriteOne(l.store, indexPath, idx); err != nil {
		return errs.Persistence(err)
	}
	return nil
}

// LastLocalID returns the id of the most recent local commit, or Sentinel
// if the local log is empty.
func (l *Log) LastLocalID() (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, err := l.readIndexLocked()
	if err != nil {
		return uuid.UUID{}, err
	}
	return idx.LatestLocalID, nil
}

// LastRemoteID returns the id of the most recent remote commit, or
// Sentinel if the remote log is empty.
func (l *Log) LastRemoteID() (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, err := l.readIndexLocked()
	if err != nil {
		return uuid.UUID{}, err
	}
	return idx.LatestRemoteID, nil
}

// AppendLocal stamps c.AncestorID from the current local tail and appends
// it to the local log.
func (l *Log) AppendLocal(c *Commit) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, err := l.readIndexLocked()
	if err != nil {
		return err
	}
	c.AncestorID = idx.LatestLocalID
	if err := persistence.AppendOne(l.store, localPath, c); err != nil {
		return errs.Persistence(err)
	}
	idx.LatestLocalID = c.ID
	return l.writeIndexLocked(idx)
}

// AppendRemote appends c to the remote log, requiring its AncestorID
// match the current remote tail (Sentinel if the log is still empty).
// Mismatch is StalePush: some other commit was accepted first.
func (l *Log) AppendRemote(c *Commit) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, err := l.readIndexLocked()
	if err != nil {
		return err
	}
	if c.AncestorID != idx.LatestRemoteID {
		return errs.StalePush
	}
	if err := persistence.AppendOne(l.store, remotePath, c); err != nil {
		return errs.Persistence(err)
	}
	idx.LatestRemoteID = c.ID
	return l.writeIndexLocked(idx)
}

// ListLocal returns every commit in the local log, in append order.
func (l *Log) ListLocal() ([]Commit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all, err := persistence.ReadAll[Commit](l.store, localPath)
	if err != nil {
		return nil, errs.Persistence(err)
	}
	return all, nil
}

// ListRemote returns every commit in the remote log, in append order.
func (l *Log) ListRemote() ([]Commit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all, err := persistence.ReadAll[Commit](l.store, remotePath)
	if err != nil {
		return nil, errs.Persistence(err)
	}
	return all, nil
}

// ListRemoteAfter streams remote commits strictly after the first entry
// whose id equals after (the full log if after is Sentinel).
func (l *Log) ListRemoteAfter(after uuid.UUID) ([]Commit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all, err := persistence.ReadAfter[Commit](l.store, remotePath, after == Sentinel, func(c Commit) bool {
		return c.ID == after
	})
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, errs.RemoteDivergence
		}
		return nil, errs.Persistence(err)
	}
	return all, nil
}

// RebaseLocal rewrites the pending local commits' ancestor chain so the
// first one descends from newTail instead of whatever it was stamped
// with when originally appended, chaining the rest from there unchanged.
// Push calls this with the current remote tail before sending, so a
// commit built before an intervening pull (e.g. after a StalePush) is
// re-chained onto the tail the server will actually have by the time the
// re-push arrives. A no-op if the local log is empty or newTail already
// matches the first commit's ancestor.
func (l *Log) RebaseLocal(newTail uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := persistence.ReadAll[Commit](l.store, localPath)
	if err != nil {
		return errs.Persistence(err)
	}
	if len(all) == 0 || all[0].AncestorID == newTail {
		return nil
	}

	all[0].AncestorID = newTail
	for i := 1; i < len(all); i++ {
		all[i].AncestorID = all[i-1].ID
	}

	if err := persistence.Delete(l.store, localPath); err != nil {
		return errs.Persistence(err)
	}
	if err := persistence.InitEmpty(l.store, localPath); err != nil {
		return errs.Persistence(err)
	}
	for i := range all {
		if err := persistence.AppendOne(l.store, localPath, &all[i]); err != nil {
			return errs.Persistence(err)
		}
	}
	return nil
}

// DropFirstLocal removes the oldest local commit, used by Push once the
// server has accepted and signed it. The persistence contract only
// offers append/read, so this rewrites the local log bucket from the
// remaining entries; it and RebaseLocal are the operations in this
// package that are not a pure append.
func (l *Log) DropFirstLocal() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := persistence.ReadAll[Commit](l.store, localPath)
	if err != nil {
		return errs.Persistence(err)
	}
	if len(all) == 0 {
		return errs.NotFound
	}
	remaining := all[1:]

	if err := persistence.Delete(l.store, localPath); err != nil {
		return errs.Persistence(err)
	}
	if err := persistence.InitEmpty(l.store, localPath); err != nil {
		return errs.Persistence(err)
	}
	for i := range remaining {
		if err := persistence.AppendOne(l.store, localPath, &remaining[i]); err != nil {
			return errs.Persistence(err)
		}
	}

	idx, err := l.readIndexLocked()
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		idx.LatestLocalID = uuid.UUID{}
	} else {
		idx.LatestLocalID = remaining[len(remaining)-1].ID
	}
	return l.writeIndexLocked(idx)
}
