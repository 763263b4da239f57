// Package storage implements Storage[T, A], the named, typed collection
// of StorageObjects that applications interact with directly. A Storage
// is generic over the application object type T and the application
// action type A that mutates it; the core (pkg/repository, pkg/commit)
// only ever sees it through the Hook interface, selecting by StorageID.
package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mezeipetister/demobit/pkg/action"
	"github.com/mezeipetister/demobit/pkg/errs"
	"github.com/mezeipetister/demobit/pkg/metrics"
	"github.com/mezeipetister/demobit/pkg/object"
	"github.com/mezeipetister/demobit/pkg/persistence"
	"github.com/mezeipetister/demobit/pkg/sign"
)

func sideLabel(aob *action.Envelope) string {
	if aob.IsRemote() {
		return "remote"
	}
	return "local"
}

func timeNow() time.Time { return time.Now().UTC() }

// Mode selects whether AcceptAction only validates a candidate envelope
// (Check, used by the server during merge_pushed_commit) or validates and
// persists it (Apply, used on commit-context scope exit).
type Mode int

const (
	ModeCheck Mode = iota
	ModeApply
)

// CommitDepositor is the narrow slice of a commit context a Storage needs
// to stash a newly built ActionObject; it decouples pkg/storage from
// pkg/repository, which owns the concrete commit context type.
type CommitDepositor interface {
	Deposit(aob *action.Envelope)
	ReplicaUID() string
}

// Hook is what a Storage presents to a Repository's hook registry: the
// routing entry point used both for scope-exit dispatch (Apply) and
// server-side merge validation (Check).
type Hook interface {
	StorageID() string
	AcceptAction(aob *action.Envelope, mode Mode) error
}

// HookRegistrar is implemented by the Repository; Register installs a
// Storage's Hook under its StorageID, enforcing the one-hook-per-id
// invariant described in spec design notes on hook ordering.
type HookRegistrar interface {
	RegisterHook(hook Hook) error
}

// details is the persisted storage_details/<storage_id> record.
type details struct {
	ID        string      `json:"id"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

func detailsPath(storageID string) string {
	return "storage_details/" + storageID
}

func objectPath(storageID string, objectID uuid.UUID) string {
	return "storage_data/" + storageID + "/" + objectID.String()
}

// Storage is the indexed collection of StorageObject[T, A] under one
// storage_id. member_ids and the object cache share one lock, per the
// concurrency model's "Storage handle is shared across commit contexts"
// rule.
type Storage[T action.Cloneable[T], A action.Action[T]] struct {
	store     *persistence.Store
	storageID string

	mu        sync.Mutex
	memberIDs []uuid.UUID
	cache     map[uuid.UUID]*object.StorageObject[T, A]
}

// LoadOrInit opens storage_details/<storageID>, creating it empty if this
// is the first time this storage is used in this data root.
func LoadOrInit[T action.Cloneable[T], A action.Action[T]](store *persistence.Store, storageID string) (*Storage[T, A], error) {
	d, err := persistence.ReadOne[details](store, detailsPath(storageID))
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return nil, errs.Persistence(err)
		}
		d = details{ID: storageID}
		if initErr := persistence.InitOne(store, detailsPath(storageID), d); initErr != nil {
			return nil, errs.Persistence(initErr)
		}
	}
	return &Storage[T, A]{
		store:     store,
		storageID: storageID,
		memberIDs: d.MemberIDs,
		cache:     make(map[uuid.UUID]*object.StorageObject[T, A]),
	}, nil
}

// StorageID identifies this Storage to the Repository's hook registry.
func (s *Storage[T, A]) StorageID() string { return s.storageID }

// Count reports the number of objects currently held, for pkg/metrics to
// poll without pulling every object through GetAll.
func (s *Storage[T, A]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memberIDs)
}

func (s *Storage[T, A]) persistDetailsLocked() error {
	d := details{ID: s.storageID, MemberIDs: append([]uuid.UUID(nil), s.memberIDs...)}
	if err := persistence.WriteOne(s.store, detailsPath(s.storageID), d); err != nil {
		return errs.Persistence(err)
	}
	return nil
}

func (s *Storage[T, A]) persistObjectLocked(so *object.StorageObject[T, A]) error {
	if err := persistence.WriteOne(s.store, objectPath(s.storageID, so.ID), so); err != nil {
		return errs.Persistence(err)
	}
	s.cache[so.ID] = so
	return nil
}

func (s *Storage[T, A]) loadObjectLocked(id uuid.UUID) (*object.StorageObject[T, A], error) {
	if cached, ok := s.cache[id]; ok {
		return cached, nil
	}
	member := false
	for _, m := range s.memberIDs {
		if m == id {
			member = true
			break
		}
	}
	if !member {
		return nil, errs.NotFound
	}
	so, err := persistence.ReadOne[object.StorageObject[T, A]](s.store, objectPath(s.storageID, id))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, errs.NotFound
		}
		return nil, errs.Persistence(err)
	}
	s.cache[id] = &so
	return &so, nil
}

// GetByID materializes the StorageObject with the given id.
func (s *Storage[T, A]) GetByID(id uuid.UUID) (*object.StorageObject[T, A], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadObjectLocked(id)
}

// GetAll materializes every StorageObject in the collection.
func (s *Storage[T, A]) GetAll() ([]*object.StorageObject[T, A], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*object.StorageObject[T, A], 0, len(s.memberIDs))
	for _, id := range s.memberIDs {
		so, err := s.loadObjectLocked(id)
		if err != nil {
			return nil, err
		}
		out = append(out, so)
	}
	return out, nil
}

// GetByFilter materializes every StorageObject whose current local object
// satisfies pred.
func (s *Storage[T, A]) GetByFilter(pred func(T) bool) ([]*object.StorageObject[T, A], error) {
	all, err := s.GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]*object.StorageObject[T, A], 0)
	for _, so := range all {
		if pred(so.LocalObject) {
			out = append(out, so)
		}
	}
	return out, nil
}

// GetFirstByFilter returns the first StorageObject (in member_ids order)
// whose local object satisfies pred, or ErrNotFound.
func (s *Storage[T, A]) GetFirstByFilter(pred func(T) bool) (*object.StorageObject[T, A], error) {
	s.mu.Lock()
	ids := append([]uuid.UUID(nil), s.memberIDs...)
	s.mu.Unlock()

	for _, id := range ids {
		s.mu.Lock()
		so, err := s.loadObjectLocked(id)
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if pred(so.LocalObject) {
			return so, nil
		}
	}
	return nil, errs.NotFound
}

// CreateObject builds the Create ActionObject for a brand new object and
// deposits it into ctx. The object does not become visible to GetByID/
// GetAll/GetByFilter until the commit context closes and dispatches the
// envelope back through AcceptAction in Apply mode.
func (s *Storage[T, A]) CreateObject(initial T, ctx CommitDepositor) (uuid.UUID, error) {
	digest, err := sign.Fingerprint(initial)
	if err != nil {
		return uuid.Nil, err
	}
	payload, err := action.EncodeObject(initial)
	if err != nil {
		return uuid.Nil, err
	}
	objectID := uuid.New()
	aob := &action.Envelope{
		ID:              uuid.New(),
		StorageID:       s.storageID,
		ObjectID:        objectID,
		UID:             ctx.ReplicaUID(),
		DTime:           timeNow(),
		Kind:            action.KindCreate,
		Payload:         payload,
		ObjectSignature: digest,
	}
	ctx.Deposit(aob)
	return objectID, nil
}

// Patch builds the Patch ActionObject that applies act on top of so's
// current local state and deposits it into ctx.
func (s *Storage[T, A]) Patch(so *object.StorageObject[T, A], act A, ctx CommitDepositor) error {
	var parent *uuid.UUID
	if len(so.LocalActions) > 0 {
		id := so.LocalActions[len(so.LocalActions)-1].ID
		parent = &id
	}
	now := timeNow()
	next, err := act.Apply(so.LocalObject, now, ctx.ReplicaUID())
	if err != nil {
		return errs.PatchFailed(err)
	}
	digest, err := sign.Fingerprint(next)
	if err != nil {
		return err
	}
	payload, err := action.EncodePatch(act)
	if err != nil {
		return err
	}
	aob := &action.Envelope{
		ID:              uuid.New(),
		StorageID:       s.storageID,
		ObjectID:        so.ID,
		UID:             ctx.ReplicaUID(),
		DTime:           now,
		ParentActionID:  parent,
		Kind:            action.KindPatch,
		Payload:         payload,
		ObjectSignature: digest,
	}
	ctx.Deposit(aob)
	return nil
}

// PatchByFilter applies act to every object currently satisfying pred,
// each as its own ActionObject in the same commit.
func (s *Storage[T, A]) PatchByFilter(ctx CommitDepositor, pred func(T) bool, act A) error {
	matches, err := s.GetByFilter(pred)
	if err != nil {
		return err
	}
	for _, so := range matches {
		if err := s.Patch(so, act, ctx); err != nil {
			return err
		}
	}
	return nil
}

// AcceptAction is the hook entry point: it routes aob to the matching
// StorageObject (creating it for Kind Create), in either Check mode
// (validate only, no persistence, no cache mutation) or Apply mode
// (validate and persist).
func (s *Storage[T, A]) AcceptAction(aob *action.Envelope, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if aob.IsKindCreate() {
		return s.acceptCreateLocked(aob, mode)
	}
	return s.acceptPatchLocked(aob, mode)
}

func (s *Storage[T, A]) acceptCreateLocked(aob *action.Envelope, mode Mode) error {
	if mode == ModeCheck {
		obj, err := action.DecodeObject[T](aob)
		if err != nil {
			return err
		}
		digest, err := sign.Fingerprint(obj)
		if err != nil {
			return err
		}
		if digest != aob.ObjectSignature {
			return errs.SignatureMismatch
		}
		if aob.IsRemote() {
			ok, err := aob.HasValidRemoteSignature()
			if err != nil {
				return err
			}
			if !ok {
				return errs.SignatureMismatch
			}
		}
		return nil
	}

	existing, err := s.loadObjectLocked(aob.ObjectID)
	if err != nil && !errors.Is(err, errs.NotFound) {
		return err
	}
	if err == nil {
		// The object already exists purely locally: this is that same
		// Create envelope coming back remote-signed (push-then-merge, or
		// a later pull), not a second object. Seed the remote side onto
		// the existing StorageObject rather than minting a duplicate
		// member_ids entry.
		if err := existing.SeedRemoteFromCreate(aob); err != nil {
			return err
		}
		if err := s.persistObjectLocked(existing); err != nil {
			return err
		}
		metrics.ActionObjectsAppliedTotal.WithLabelValues(string(aob.Kind), sideLabel(aob)).Inc()
		return nil
	}

	so, err := object.NewFromCreate[T, A](aob)
	if err != nil {
		return err
	}
	if err := s.persistObjectLocked(so); err != nil {
		return err
	}
	s.memberIDs = append(s.memberIDs, so.ID)
	if err := s.persistDetailsLocked(); err != nil {
		return err
	}
	metrics.ActionObjectsAppliedTotal.WithLabelValues(string(aob.Kind), sideLabel(aob)).Inc()
	return nil
}

func (s *Storage[T, A]) acceptPatchLocked(aob *action.Envelope, mode Mode) error {
	so, err := s.loadObjectLocked(aob.ObjectID)
	if err != nil {
		return err
	}

	if mode == ModeCheck {
		candidate := so.Clone()
		if aob.IsRemote() {
			return candidate.ApplyRemotePatch(aob)
		}
		return candidate.ApplyLocalPatch(aob)
	}

	if aob.IsRemote() {
		if err := so.ApplyRemotePatch(aob); err != nil {
			return err
		}
	} else {
		if err := so.ApplyLocalPatch(aob); err != nil {
			return err
		}
	}
	if err := s.persistObjectLocked(so); err != nil {
		return err
	}
	metrics.ActionObjectsAppliedTotal.WithLabelValues(string(aob.Kind), sideLabel(aob)).Inc()
	return nil
}

// DiscardLocal removes a purely-local (never remote-signed) object's
// persisted record and membership entry. It errors with WrongSide if the
// object has ever been touched by a remote action, matching the
// supplemented discard_local_object operation.
func (s *Storage[T, A]) DiscardLocal(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, err := s.loadObjectLocked(id)
	if err != nil {
		return err
	}
	if !so.IsPurelyLocal() {
		return errs.WrongSide
	}

	idx := -1
	for i, m := range s.memberIDs {
		if m == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errs.NotFound
	}
	s.memberIDs = append(s.memberIDs[:idx], s.memberIDs[idx+1:]...)
	delete(s.cache, id)
	if err := persistence.Delete(s.store, objectPath(s.storageID, id)); err != nil {
		return errs.Persistence(err)
	}
	return s.persistDetailsLocked()
}

// Register installs this Storage as a Hook with reg, matched by StorageID.
func (s *Storage[T, A]) Register(reg HookRegistrar) error {
	return reg.RegisterHook(s)
}
