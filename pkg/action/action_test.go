package action

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezeipetister/demobit/pkg/errs"
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

func newCreateEnvelope(t *testing.T, obj note) *Envelope {
	t.Helper()
	payload, err := EncodeObject(obj)
	require.NoError(t, err)
	return &Envelope{
		ID:        uuid.New(),
		StorageID: "notes",
		ObjectID:  uuid.New(),
		UID:       "peti",
		DTime:     time.Now(),
		Kind:      KindCreate,
		Payload:   payload,
	}
}

func TestEnvelopeLocalRemote(t *testing.T) {
	e := newCreateEnvelope(t, note{Name: "Peti", Age: 34})
	assert.True(t, e.IsLocal())
	assert.False(t, e.IsRemote())

	require.NoError(t, e.RemoteSign())
	assert.False(t, e.IsLocal())
	assert.True(t, e.IsRemote())
}

func TestEnvelopeRemoteSignTwiceFails(t *testing.T) {
	e := newCreateEnvelope(t, note{Name: "Peti", Age: 34})
	require.NoError(t, e.RemoteSign())
	err := e.RemoteSign()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.AlreadySigned)
}

func TestEnvelopeHasValidRemoteSignature(t *testing.T) {
	e := newCreateEnvelope(t, note{Name: "Peti", Age: 34})

	ok, err := e.HasValidRemoteSignature()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, e.RemoteSign())
	ok, err = e.HasValidRemoteSignature()
	require.NoError(t, err)
	assert.True(t, ok)

	tampered := *e.RemoteSignature + "00"
	e.RemoteSignature = &tampered
	ok, err = e.HasValidRemoteSignature()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeEncodeObjectRoundTrip(t *testing.T) {
	obj := note{Name: "Peti", Age: 34}
	e := newCreateEnvelope(t, obj)

	got, err := DecodeObject[note](e)
	require.NoError(t, err)
	assert.Equal(t, obj, got)

	e.Kind = KindPatch
	_, err = DecodeObject[note](e)
	assert.ErrorIs(t, err, errs.WrongKind)
}

func TestDecodeEncodePatchRoundTrip(t *testing.T) {
	act := setAge{Age: 7}
	payload, err := EncodePatch(act)
	require.NoError(t, err)

	e := &Envelope{Kind: KindPatch, Payload: payload}
	got, err := DecodePatch[setAge](e)
	require.NoError(t, err)
	assert.Equal(t, act, got)

	obj := note{Name: "Peti", Age: 34}
	next, err := got.Apply(obj, time.Now(), "peti")
	require.NoError(t, err)
	assert.Equal(t, 7, next.Age)
	assert.Equal(t, "Peti", next.Name)
}
