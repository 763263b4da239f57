// Package object implements StorageObject, the per-object state machine
// at the center of demobit: a remote chain of server-signed actions and a
// local chain of unsigned drafts, each folded into its own materialized
// snapshot. Storage (pkg/storage) owns the collection of these; Repository
// dispatches incoming ActionObjects to them through hooks.
package object

import (
	"time"

	"github.com/google/uuid"

	"github.com/mezeipetister/demobit/pkg/action"
	"github.com/mezeipetister/demobit/pkg/errs"
	"github.com/mezeipetister/demobit/pkg/sign"
)

// StorageObject is parameterized over the application object type T and
// the application action type A that mutates it. T must be Cloneable so
// folding local actions over a shared RemoteObject never aliases it.
type StorageObject[T action.Cloneable[T], A action.Action[T]] struct {
	ID        uuid.UUID
	StorageID string

	RemoteActions []*action.Envelope
	LocalActions  []*action.Envelope

	// RemoteObject is nil iff the object is purely local (never signed).
	RemoteObject *T
	LocalObject  T
}

// IsPurelyLocal reports whether the object has never been accepted by a
// server: no remote actions, no remote snapshot.
func (o *StorageObject[T, A]) IsPurelyLocal() bool {
	return o.RemoteObject == nil
}

func cloneEnvelopes(chain []*action.Envelope) []*action.Envelope {
	if chain == nil {
		return nil
	}
	out := make([]*action.Envelope, len(chain))
	for i, e := range chain {
		copied := *e
		out[i] = &copied
	}
	return out
}

// Clone returns a deep copy: independent action-chain slices and envelope
// values, and an independent RemoteObject pointer. Used to validate a
// candidate action (Check mode in pkg/storage) without mutating the live,
// persisted state — RebuildLocal rewrites local envelopes in place, so a
// shallow copy would leak side effects from a validation-only pass.
func (o *StorageObject[T, A]) Clone() *StorageObject[T, A] {
	clone := &StorageObject[T, A]{
		ID:            o.ID,
		StorageID:     o.StorageID,
		RemoteActions: cloneEnvelopes(o.RemoteActions),
		LocalActions:  cloneEnvelopes(o.LocalActions),
		LocalObject:   o.LocalObject.Clone(),
	}
	if o.RemoteObject != nil {
		remote := (*o.RemoteObject).Clone()
		clone.RemoteObject = &remote
	}
	return clone
}

// NewFromCreate builds a StorageObject from its Create envelope. The
// envelope's side (local/remote) determines which chain it seeds.
func NewFromCreate[T action.Cloneable[T], A action.Action[T]](aob *action.Envelope) (*StorageObject[T, A], error) {
	if !aob.IsKindCreate() {
		return nil, errs.WrongKind
	}
	obj, err := action.DecodeObject[T](aob)
	if err != nil {
		return nil, errs.Wrap(errs.KindWrongKind, "decode create payload", err)
	}

	o := &StorageObject[T, A]{
		ID:        aob.ObjectID,
		StorageID: aob.StorageID,
	}
	if aob.IsLocal() {
		o.LocalActions = []*action.Envelope{aob}
		o.LocalObject = obj
	} else {
		o.RemoteActions = []*action.Envelope{aob}
		remote := obj
		o.RemoteObject = &remote
		o.LocalObject = obj
	}
	return o, nil
}

// SeedRemoteFromCreate accepts a remote-signed Create envelope for an
// object that already exists purely locally: this replica authored the
// Create, pushed it, and is now seeing the server's signed version of
// that same envelope come back through push-then-merge or a later pull.
// It seeds RemoteObject/RemoteActions from aob, drops the now-redundant
// local Create draft, and refolds any local Patch drafts made since over
// the new remote snapshot.
func (o *StorageObject[T, A]) SeedRemoteFromCreate(aob *action.Envelope) error {
	if !aob.IsRemote() {
		return errs.MissingRemoteSignature
	}
	if !aob.IsKindCreate() {
		return errs.WrongKind
	}
	if o.RemoteObject != nil {
		return errs.WrongSide
	}
	if len(o.LocalActions) == 0 || o.LocalActions[0].ID != aob.ID {
		return errs.ParentMismatch
	}

	obj, err := action.DecodeObject[T](aob)
	if err != nil {
		return errs.Wrap(errs.KindWrongKind, "decode create payload", err)
	}
	digest, err := sign.Fingerprint(obj)
	if err != nil {
		return err
	}
	if digest != aob.ObjectSignature {
		return errs.SignatureMismatch
	}
	validSig, err := aob.HasValidRemoteSignature()
	if err != nil {
		return err
	}
	if !validSig {
		return errs.SignatureMismatch
	}

	o.RemoteActions = []*action.Envelope{aob}
	remote := obj
	o.RemoteObject = &remote
	o.LocalActions = o.LocalActions[1:]
	return o.RebuildLocal()
}

func lastID(chain []*action.Envelope) *uuid.UUID {
	if len(chain) == 0 {
		return nil
	}
	id := chain[len(chain)-1].ID
	return &id
}

func sameParent(parent *uuid.UUID, want *uuid.UUID) bool {
	if parent == nil && want == nil {
		return true
	}
	if parent == nil || want == nil {
		return false
	}
	return *parent == *want
}

// ApplyLocalPatch folds a local Patch envelope onto LocalObject, verifying
// chain linkage and the claimed object_signature before committing it.
func (o *StorageObject[T, A]) ApplyLocalPatch(aob *action.Envelope) error {
	if !aob.IsLocal() {
		return errs.WrongSide
	}
	if !aob.IsKindPatch() {
		return errs.WrongKind
	}
	if !sameParent(aob.ParentActionID, lastID(o.LocalActions)) {
		return errs.ParentMismatch
	}

	act, err := action.DecodePatch[A](aob)
	if err != nil {
		return errs.Wrap(errs.KindWrongKind, "decode patch payload", err)
	}
	patched, err := act.Apply(o.LocalObject, aob.DTime, aob.UID)
	if err != nil {
		return errs.PatchFailed(err)
	}
	digest, err := sign.Fingerprint(patched)
	if err != nil {
		return err
	}
	if digest != aob.ObjectSignature {
		return errs.SignatureMismatch
	}

	o.LocalActions = append(o.LocalActions, aob)
	o.LocalObject = patched
	return nil
}

// ApplyRemotePatch folds a server-signed Patch envelope onto RemoteObject,
// verifying chain linkage, the object_signature, and the remote_signature,
// then rebuilds the local side over the advanced remote snapshot.
func (o *StorageObject[T, A]) ApplyRemotePatch(aob *action.Envelope) error {
	if !aob.IsRemote() {
		return errs.MissingRemoteSignature
	}
	if !aob.IsKindPatch() {
		return errs.WrongKind
	}
	if o.RemoteObject == nil {
		return errs.WrongSide
	}
	if !sameParent(aob.ParentActionID, lastID(o.RemoteActions)) {
		return errs.ParentMismatch
	}

	act, err := action.DecodePatch[A](aob)
	if err != nil {
		return errs.Wrap(errs.KindWrongKind, "decode patch payload", err)
	}
	patched, err := act.Apply(*o.RemoteObject, aob.DTime, aob.UID)
	if err != nil {
		return errs.PatchFailed(err)
	}
	digest, err := sign.Fingerprint(patched)
	if err != nil {
		return err
	}
	if digest != aob.ObjectSignature {
		return errs.SignatureMismatch
	}
	validSig, err := aob.HasValidRemoteSignature()
	if err != nil {
		return err
	}
	if !validSig {
		return errs.SignatureMismatch
	}

	o.RemoteActions = append(o.RemoteActions, aob)
	o.RemoteObject = &patched
	return o.RebuildLocal()
}

// RebuildLocal re-folds LocalActions over the (possibly just-advanced)
// RemoteObject. Each local action's object_signature is recomputed to
// match its new position in the fold and its dtime is refreshed, per the
// convention that local actions are drafts re-stamped on remote advance.
func (o *StorageObject[T, A]) RebuildLocal() error {
	if o.RemoteObject == nil {
		return errs.WrongSide
	}
	current := *o.RemoteObject
	now := time.Now().UTC()
	for _, aob := range o.LocalActions {
		act, err := action.DecodePatch[A](aob)
		if err != nil {
			return errs.Wrap(errs.KindWrongKind, "decode patch payload", err)
		}
		patched, err := act.Apply(current, now, aob.UID)
		if err != nil {
			return errs.PatchFailed(err)
		}
		digest, err := sign.Fingerprint(patched)
		if err != nil {
			return err
		}
		aob.ObjectSignature = digest
		aob.DTime = now
		current = patched
	}
	o.LocalObject = current
	return nil
}

// ClearLocalChanges drops every local draft action, resetting LocalObject
// to RemoteObject. Purely local objects have no remote snapshot to reset
// to and must instead be discarded by the owning Storage.
func (o *StorageObject[T, A]) ClearLocalChanges() error {
	if o.RemoteObject == nil {
		return errs.WrongSide
	}
	o.LocalActions = nil
	o.LocalObject = *o.RemoteObject
	return nil
}
