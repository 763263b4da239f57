package object

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezeipetister/demobit/pkg/action"
	"github.com/mezeipetister/demobit/pkg/errs"
	"github.com/mezeipetister/demobit/pkg/sign"
)

type note struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func (n note) Clone() note { return n }

type setAge struct {
	Age int `json:"age"`
}

func (a setAge) Apply(prev note, _ time.Time, _ string) (note, error) {
	prev.Age = a.Age
	return prev, nil
}

func createEnvelope(t *testing.T, objectID uuid.UUID, obj note, remote bool) *action.Envelope {
	t.Helper()
	payload, err := action.EncodeObject(obj)
	require.NoError(t, err)
	e := &action.Envelope{
		ID:        uuid.New(),
		StorageID: "notes",
		ObjectID:  objectID,
		UID:       "peti",
		DTime:     time.Now().UTC(),
		Kind:      action.KindCreate,
		Payload:   payload,
	}
	if remote {
		require.NoError(t, e.RemoteSign())
	}
	return e
}

func patchEnvelope(t *testing.T, objectID uuid.UUID, parent *uuid.UUID, prev note, act setAge, remote bool) *action.Envelope {
	t.Helper()
	payload, err := action.EncodePatch(act)
	require.NoError(t, err)
	next, err := act.Apply(prev, time.Now().UTC(), "peti")
	require.NoError(t, err)
	digest, err := sign.Fingerprint(next)
	require.NoError(t, err)

	e := &action.Envelope{
		ID:              uuid.New(),
		StorageID:       "notes",
		ObjectID:        objectID,
		UID:             "peti",
		DTime:           time.Now().UTC(),
		ParentActionID:  parent,
		Kind:            action.KindPatch,
		Payload:         payload,
		ObjectSignature: digest,
	}
	if remote {
		require.NoError(t, e.RemoteSign())
	}
	return e
}

func TestNewFromCreateLocal(t *testing.T) {
	id := uuid.New()
	create := createEnvelope(t, id, note{Name: "Peti", Age: 34}, false)

	o, err := NewFromCreate[note, setAge](create)
	require.NoError(t, err)
	assert.True(t, o.IsPurelyLocal())
	assert.Equal(t, note{Name: "Peti", Age: 34}, o.LocalObject)
	assert.Len(t, o.LocalActions, 1)
	assert.Empty(t, o.RemoteActions)
}

func TestApplyLocalPatchChainAndSignature(t *testing.T) {
	id := uuid.New()
	create := createEnvelope(t, id, note{Name: "Peti", Age: 34}, false)
	o, err := NewFromCreate[note, setAge](create)
	require.NoError(t, err)

	parent := create.ID
	patch := patchEnvelope(t, id, &parent, o.LocalObject, setAge{Age: 7}, false)

	require.NoError(t, o.ApplyLocalPatch(patch))
	assert.Equal(t, 7, o.LocalObject.Age)
	assert.Len(t, o.LocalActions, 2)
}

func TestApplyLocalPatchWrongParentFails(t *testing.T) {
	id := uuid.New()
	create := createEnvelope(t, id, note{Name: "Peti", Age: 34}, false)
	o, err := NewFromCreate[note, setAge](create)
	require.NoError(t, err)

	bogus := uuid.New()
	patch := patchEnvelope(t, id, &bogus, o.LocalObject, setAge{Age: 7}, false)

	err = o.ApplyLocalPatch(patch)
	assert.ErrorIs(t, err, errs.ParentMismatch)
}

func TestApplyLocalPatchSignatureCorruption(t *testing.T) {
	id := uuid.New()
	create := createEnvelope(t, id, note{Name: "Peti", Age: 34}, false)
	o, err := NewFromCreate[note, setAge](create)
	require.NoError(t, err)

	parent := create.ID
	patch := patchEnvelope(t, id, &parent, o.LocalObject, setAge{Age: 7}, false)
	patch.ObjectSignature = "deadbeef"

	err = o.ApplyLocalPatch(patch)
	assert.ErrorIs(t, err, errs.SignatureMismatch)
}

func TestClearLocalChangesRejectsPurelyLocal(t *testing.T) {
	id := uuid.New()
	create := createEnvelope(t, id, note{Name: "Peti", Age: 34}, false)
	o, err := NewFromCreate[note, setAge](create)
	require.NoError(t, err)

	err = o.ClearLocalChanges()
	assert.ErrorIs(t, err, errs.WrongSide)
}

func TestRemoteAdvanceTriggersRebuild(t *testing.T) {
	id := uuid.New()
	remoteCreate := createEnvelope(t, id, note{Name: "Peti", Age: 34}, true)

	o, err := NewFromCreate[note, setAge](remoteCreate)
	require.NoError(t, err)
	require.False(t, o.IsPurelyLocal())

	localParent := o.LocalActions // empty: object created remotely, no local draft yet
	assert.Empty(t, localParent)

	// Client drafts a local patch on top of the remote snapshot.
	localPatch := patchEnvelope(t, id, nil, o.LocalObject, setAge{Age: 50}, false)
	require.NoError(t, o.ApplyLocalPatch(localPatch))
	assert.Equal(t, 50, o.LocalObject.Age)
	originalSignature := localPatch.ObjectSignature
	originalDTime := localPatch.DTime

	// Server accepts a concurrent remote patch first.
	remoteParent := remoteCreate.ID
	remotePatch := patchEnvelope(t, id, &remoteParent, *o.RemoteObject, setAge{Age: 40}, true)

	require.NoError(t, o.ApplyRemotePatch(remotePatch))

	assert.Equal(t, 40, o.RemoteObject.Age)
	// Local draft is rebuilt over the new remote snapshot: Pl.apply(Pr.apply(create)).
	assert.Equal(t, 50, o.LocalObject.Age)
	assert.Len(t, o.LocalActions, 1)
	// SetAge is absolute, so refolding the draft over the new remote
	// snapshot lands on the same {Peti, 50} object: the recomputed
	// signature is sha1 of that object, equal to the draft's original one.
	wantSignature, err := sign.Fingerprint(note{Name: "Peti", Age: 50})
	require.NoError(t, err)
	assert.Equal(t, wantSignature, localPatch.ObjectSignature)
	assert.Equal(t, originalSignature, localPatch.ObjectSignature)
	assert.True(t, localPatch.DTime.After(originalDTime) || localPatch.DTime.Equal(originalDTime))
}

func TestApplyRemotePatchRequiresValidRemoteSignature(t *testing.T) {
	id := uuid.New()
	remoteCreate := createEnvelope(t, id, note{Name: "Peti", Age: 34}, true)
	o, err := NewFromCreate[note, setAge](remoteCreate)
	require.NoError(t, err)

	remoteParent := remoteCreate.ID
	remotePatch := patchEnvelope(t, id, &remoteParent, *o.RemoteObject, setAge{Age: 40}, true)
	tampered := *remotePatch.RemoteSignature + "ff"
	remotePatch.RemoteSignature = &tampered

	err = o.ApplyRemotePatch(remotePatch)
	assert.ErrorIs(t, err, errs.SignatureMismatch)
}
