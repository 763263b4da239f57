// Package repository ties together the persisted commit log, the
// storage hook registry, and the single commit-context boundary every
// mutation passes through. It is the component pkg/syncrpc drives on
// both the client side (push/pull) and the server side (merge).
package repository

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mezeipetister/demobit/pkg/action"
	"github.com/mezeipetister/demobit/pkg/commit"
	"github.com/mezeipetister/demobit/pkg/errs"
	"github.com/mezeipetister/demobit/pkg/log"
	"github.com/mezeipetister/demobit/pkg/persistence"
	"github.com/mezeipetister/demobit/pkg/storage"
)

const repoDetailsPath = "repo_details"

// Repository is one replica's coordination point: its RepoDetails, its
// CommitLog, and the registry of Storage hooks that ingest ActionObjects
// on commit-context scope exit.
type Repository struct {
	store   *persistence.Store
	details RepoDetails
	commits *commit.Log

	logger zerolog.Logger

	mu      sync.Mutex
	hooks   []storage.Hook
	byID    map[string]storage.Hook
	ctxOpen bool

	sem chan struct{}
}

// Exists reports whether store's data root already carries repo_details,
// i.e. whether a prior Open has bootstrapped it. Commands other than init
// use this to fail with a clear message instead of silently bootstrapping
// a blank local replica.
func Exists(store *persistence.Store) bool {
	_, err := persistence.ReadRaw(store, repoDetailsPath)
	return err == nil
}

// Open opens an existing data root's repository, or bootstraps a new one
// stamped with uid and mode if repo_details does not exist yet.
func Open(store *persistence.Store, uid string, mode Mode) (*Repository, error) {
	details, err := readDetails(store)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return nil, errs.Persistence(err)
		}
		details = RepoDetails{UID: uid, Mode: mode}
		if err := writeDetails(store, details, true); err != nil {
			return nil, err
		}
	}

	clog, err := commit.Init(store)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		store:   store,
		details: details,
		commits: clog,
		logger:  log.WithReplica(details.UID),
		byID:    make(map[string]storage.Hook),
		sem:     make(chan struct{}, 1),
	}
	return r, nil
}

func readDetails(store *persistence.Store) (RepoDetails, error) {
	var d RepoDetails
	raw, err := persistence.ReadRaw(store, repoDetailsPath)
	if err != nil {
		return d, err
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return d, err
	}
	return d, nil
}

func writeDetails(store *persistence.Store, d RepoDetails, initial bool) error {
	raw, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	if initial {
		if err := persistence.InitRaw(store, repoDetailsPath, raw); err != nil {
			return errs.Persistence(err)
		}
		return nil
	}
	if err := persistence.WriteRaw(store, repoDetailsPath, raw); err != nil {
		return errs.Persistence(err)
	}
	return nil
}

// UID is this replica's author identity, stamped into every ActionObject
// and Commit it authors.
func (r *Repository) UID() string { return r.details.UID }

// ReplicaUID implements storage.CommitDepositor's sibling requirement so
// Repository itself can stand in where only the uid is needed.
func (r *Repository) ReplicaUID() string { return r.details.UID }

// Mode is this replica's sync mode.
func (r *Repository) Mode() Mode { return r.details.Mode }

// CommitLog exposes the underlying append-only logs, e.g. for pkg/syncrpc
// to stream ListRemoteAfter results.
func (r *Repository) CommitLog() *commit.Log { return r.commits }

// RegisterHook installs hook under its StorageID. At most one Storage per
// storage_id may be registered; a second attempt returns an error, per
// the uniqueness the dispatch-to-first-match design requires.
func (r *Repository) RegisterHook(hook storage.Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[hook.StorageID()]; exists {
		return errs.New(errs.KindWrongKind, "storage_id already registered: "+hook.StorageID())
	}
	r.byID[hook.StorageID()] = hook
	r.hooks = append(r.hooks, hook)
	return nil
}

func (r *Repository) hookFor(storageID string) storage.Hook {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[storageID]
}

// ValidateAction runs aob through its owning Storage's hook in Check
// mode, used by the server during merge_pushed_commit before any commit
// or ActionObject is persisted.
func (r *Repository) ValidateAction(aob *action.Envelope) error {
	hook := r.hookFor(aob.StorageID)
	if hook == nil {
		return errs.NotFound
	}
	return hook.AcceptAction(aob, storage.ModeCheck)
}

// Status summarizes the repository for the CLI status command and for
// metrics polling: local/remote commit counts and whether a commit
// context is currently held open.
type Status struct {
	LocalCommits      int
	RemoteCommits     int
	CommitContextOpen bool
}

// Status reads the current local/remote commit counts and context state.
func (r *Repository) Status() (Status, error) {
	local, err := r.commits.ListLocal()
	if err != nil {
		return Status{}, err
	}
	remote, err := r.commits.ListRemote()
	if err != nil {
		return Status{}, err
	}
	r.mu.Lock()
	open := r.ctxOpen
	r.mu.Unlock()
	return Status{
		LocalCommits:      len(local),
		RemoteCommits:     len(remote),
		CommitContextOpen: open,
	}, nil
}

// CommitLogStatus reports the same counters as Status as primitives,
// satisfying pkg/metrics.StatusSource without that package importing this
// one.
func (r *Repository) CommitLogStatus() (localCommits, remoteCommits int, commitContextOpen bool, err error) {
	status, err := r.Status()
	if err != nil {
		return 0, 0, false, err
	}
	return status.LocalCommits, status.RemoteCommits, status.CommitContextOpen, nil
}
