// Package action defines the typed unit of change flowing through demobit
// and the metadata envelope (ActionObject in the design, Envelope here)
// that carries it with signatures and chain-linkage. The envelope's
// payload is an opaque json.RawMessage rather than a generic type
// parameter: the server that signs pushed commits, and the Commit/Storage
// plumbing that stores them, must work across every concrete object and
// action type an application defines without knowing any of them. Only
// the Storage that owns an envelope's StorageID decodes its payload.
package action

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mezeipetister/demobit/pkg/errs"
	"github.com/mezeipetister/demobit/pkg/sign"
)

// Action is the application-defined, deterministic transformation from one
// object state to the next. Implementations must be pure in (prev, uid):
// Apply may be re-run against the same prev and uid and must produce the
// same next value, because rebuild_local re-folds local actions whenever
// the remote snapshot advances (see pkg/object). Implementations that
// branch on dtime will drift under rebuild; this is a caller obligation,
// not something the core can enforce.
type Action[T any] interface {
	Apply(prev T, dtime time.Time, uid string) (T, error)
}

// Cloneable is the constraint placed on application object types: they
// must produce an independent copy of themselves, since StorageObject
// folds a chain of actions starting from a shared remote snapshot and
// must not let a local fold mutate it in place.
type Cloneable[T any] interface {
	Clone() T
}

// Kind is the ActionKind sum type: a StorageObject's first action is
// always Create, every later one Patch.
type Kind string

const (
	KindCreate Kind = "create"
	KindPatch  Kind = "patch"
)

// Envelope is the metadata wrapper around one ActionKind. Payload holds
// either the created object (Kind == KindCreate) or the patch action
// (Kind == KindPatch) as opaque JSON; DecodeObject/DecodePatch recover a
// concrete value once the caller knows which Storage owns it.
type Envelope struct {
	ID              uuid.UUID       `json:"id"`
	StorageID       string          `json:"storage_id"`
	ObjectID        uuid.UUID       `json:"object_id"`
	UID             string          `json:"uid"`
	DTime           time.Time       `json:"dtime"`
	CommitID        uuid.UUID       `json:"commit_id,omitempty"`
	ParentActionID  *uuid.UUID      `json:"parent_action_id,omitempty"`
	Kind            Kind            `json:"kind"`
	Payload         json.RawMessage `json:"payload"`
	ObjectSignature string          `json:"object_signature"`
	RemoteSignature *string         `json:"remote_signature,omitempty"`
}

// IsLocal reports whether the envelope is still unpublished.
func (e *Envelope) IsLocal() bool { return e.RemoteSignature == nil }

// IsRemote reports whether the server has accepted and signed the envelope.
func (e *Envelope) IsRemote() bool { return e.RemoteSignature != nil }

// IsKindCreate reports whether this envelope introduces its object.
func (e *Envelope) IsKindCreate() bool { return e.Kind == KindCreate }

// IsKindPatch reports whether this envelope mutates an existing object.
func (e *Envelope) IsKindPatch() bool { return e.Kind == KindPatch }

// ComputeObjectSignature is the hex SHA-1 fingerprint of the object state
// this envelope is claimed to produce. Callers compare the result against
// ObjectSignature to validate an envelope before applying it.
func (e *Envelope) ComputeObjectSignature(candidateObject any) (string, error) {
	return sign.Fingerprint(candidateObject)
}

// HasValidRemoteSignature reports whether RemoteSignature, if present,
// equals the SHA-1 of the envelope with RemoteSignature cleared.
func (e *Envelope) HasValidRemoteSignature() (bool, error) {
	if e.RemoteSignature == nil {
		return false, nil
	}
	want := *e.RemoteSignature
	clone := *e
	clone.RemoteSignature = nil
	return sign.Verify(&clone, want)
}

// RemoteSign computes the envelope's remote signature (over itself with
// RemoteSignature cleared) and installs it. It fails if already signed.
func (e *Envelope) RemoteSign() error {
	if e.RemoteSignature != nil {
		return errs.Wrap(errs.KindAlreadySigned, "envelope already remote-signed", nil)
	}
	clone := *e
	clone.RemoteSignature = nil
	digest, err := sign.Fingerprint(&clone)
	if err != nil {
		return err
	}
	e.RemoteSignature = &digest
	return nil
}

// DecodeObject decodes a KindCreate envelope's payload as T.
func DecodeObject[T any](e *Envelope) (T, error) {
	var obj T
	if e.Kind != KindCreate {
		return obj, errs.WrongKind
	}
	if err := json.Unmarshal(e.Payload, &obj); err != nil {
		return obj, err
	}
	return obj, nil
}

// EncodeObject marshals a created object into a KindCreate payload.
func EncodeObject[T any](obj T) (json.RawMessage, error) {
	return json.Marshal(obj)
}

// DecodePatch decodes a KindPatch envelope's payload into a concrete
// action value of type A (A is typically a struct implementing Action[T]).
func DecodePatch[A any](e *Envelope) (A, error) {
	var act A
	if e.Kind != KindPatch {
		return act, errs.WrongKind
	}
	if err := json.Unmarshal(e.Payload, &act); err != nil {
		return act, err
	}
	return act, nil
}

// EncodePatch marshals a patch action into a KindPatch payload.
func EncodePatch[A any](act A) (json.RawMessage, error) {
	return json.Marshal(act)
}
