package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/mezeipetister/demobit/pkg/action"
	"github.com/mezeipetister/demobit/pkg/commit"
	"github.com/mezeipetister/demobit/pkg/errs"
	"github.com/mezeipetister/demobit/pkg/storage"
)

// CommitContext is the single transactional boundary: ActionObjects
// accumulate in an in-memory pending Commit and are only persisted and
// dispatched atomically when the context closes. A Repository allows
// exactly one open context at a time; Open blocks until any prior
// context has closed.
type CommitContext struct {
	repo    *Repository
	pending *commit.Commit
	isMerge bool
	closed  bool
}

var _ storage.CommitDepositor = (*CommitContext)(nil)

// Open acquires the repository's single commit-context slot and starts a
// fresh, empty local commit.
func (r *Repository) Open() (*CommitContext, error) {
	r.sem <- struct{}{}
	r.mu.Lock()
	r.ctxOpen = true
	r.mu.Unlock()

	return &CommitContext{
		repo: r,
		pending: &commit.Commit{
			ID:    uuid.New(),
			UID:   r.details.UID,
			DTime: time.Now().UTC(),
		},
	}, nil
}

// OpenMerge acquires the commit-context slot preloaded with an
// already-built commit: the pull merge path (already-signed remote
// commit) and the server push-merge path (about to be remote-signed) both
// go through this rather than Open, since their Commit is constructed
// outside of normal Storage.CreateObject/Patch calls.
func (r *Repository) OpenMerge(preloaded *commit.Commit) (*CommitContext, error) {
	r.sem <- struct{}{}
	r.mu.Lock()
	r.ctxOpen = true
	r.mu.Unlock()

	return &CommitContext{repo: r, pending: preloaded, isMerge: true}, nil
}

// ReplicaUID implements storage.CommitDepositor.
func (c *CommitContext) ReplicaUID() string { return c.repo.details.UID }

// Deposit stashes an ActionObject into the pending commit. Implements
// storage.CommitDepositor.
func (c *CommitContext) Deposit(aob *action.Envelope) {
	aob.CommitID = c.pending.ID
	c.pending.Actions = append(c.pending.Actions, aob)
}

// Comment sets the pending commit's human-readable comment.
func (c *CommitContext) Comment(text string) { c.pending.Comment = text }

// Commit returns the in-progress pending commit. Callers must not retain
// it past Close.
func (c *CommitContext) Commit() *commit.Commit { return c.pending }

// Close is the single scope-exit boundary: it appends the pending commit
// to the local or remote log (whichever its remote_signature selects),
// then dispatches every contained ActionObject through registered
// storage hooks in insertion order. It always releases the
// commit-context slot, even on error, since a failed scope exit still
// ends the context's lifetime — the caller is expected to treat a
// persistence error here as fatal to the pending commit.
func (c *CommitContext) Close() error {
	if c.closed {
		return errs.ConcurrentCommit
	}
	defer func() {
		c.closed = true
		c.repo.mu.Lock()
		c.repo.ctxOpen = false
		c.repo.mu.Unlock()
		<-c.repo.sem
	}()

	if c.pending.IsRemote() {
		if err := c.repo.commits.AppendRemote(c.pending); err != nil {
			return err
		}
	} else {
		if err := c.repo.commits.AppendLocal(c.pending); err != nil {
			return err
		}
	}

	for _, aob := range c.pending.Actions {
		hook := c.repo.hookFor(aob.StorageID)
		if hook == nil {
			return errs.NotFound
		}
		if err := hook.AcceptAction(aob, storage.ModeApply); err != nil {
			return err
		}
	}
	return nil
}

// Abort releases the commit-context slot without persisting or
// dispatching anything, for callers that built a pending commit and then
// decided not to close it (e.g. a failed Check pass upstream of Close).
func (c *CommitContext) Abort() {
	if c.closed {
		return
	}
	c.closed = true
	c.repo.mu.Lock()
	c.repo.ctxOpen = false
	c.repo.mu.Unlock()
	<-c.repo.sem
}
