package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezeipetister/demobit/pkg/errs"
	"github.com/mezeipetister/demobit/pkg/persistence"
	"github.com/mezeipetister/demobit/pkg/storage"
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

func newTestRepo(t *testing.T) (*Repository, *storage.Storage[note, setAge]) {
	t.Helper()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	repo, err := Open(store, "peti", LocalMode())
	require.NoError(t, err)

	notes, err := storage.LoadOrInit[note, setAge](store, "demo")
	require.NoError(t, err)
	require.NoError(t, notes.Register(repo))

	return repo, notes
}

func TestRegisterHookRejectsDuplicateStorageID(t *testing.T) {
	repo, notes := newTestRepo(t)
	err := notes.Register(repo)
	assert.Error(t, err)
}

func TestCreateAndPatchLocalOnly(t *testing.T) {
	repo, notes := newTestRepo(t)

	ctx, err := repo.Open()
	require.NoError(t, err)
	id, err := notes.CreateObject(note{Name: "Peti", Age: 34}, ctx)
	require.NoError(t, err)
	require.NoError(t, ctx.Close())

	status, err := repo.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, status.LocalCommits)
	assert.Equal(t, 0, status.RemoteCommits)
	assert.False(t, status.CommitContextOpen)

	so, err := notes.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, 34, so.LocalObject.Age)

	ctx2, err := repo.Open()
	require.NoError(t, err)
	require.NoError(t, notes.PatchByFilter(ctx2, func(n note) bool { return n.Name == "Peti" }, setAge{Age: 7}))
	require.NoError(t, ctx2.Close())

	first, err := notes.GetFirstByFilter(func(n note) bool { return n.Name == "Peti" })
	require.NoError(t, err)
	assert.Equal(t, 7, first.LocalObject.Age)

	status, err = repo.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, status.LocalCommits)
	assert.Equal(t, 0, status.RemoteCommits)
}

func TestOpenBlocksSecondContext(t *testing.T) {
	repo, _ := newTestRepo(t)

	ctx, err := repo.Open()
	require.NoError(t, err)

	opened := make(chan struct{})
	go func() {
		ctx2, err := repo.Open()
		require.NoError(t, err)
		close(opened)
		_ = ctx2.Close()
	}()

	select {
	case <-opened:
		t.Fatal("second Open should have blocked while first context is still open")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, ctx.Close())

	select {
	case <-opened:
	case <-time.After(time.Second):
		t.Fatal("second Open never unblocked after first context closed")
	}
}

func TestValidateActionSignatureMismatch(t *testing.T) {
	repo, notes := newTestRepo(t)

	ctx, err := repo.Open()
	require.NoError(t, err)
	_, err = notes.CreateObject(note{Name: "Peti", Age: 34}, ctx)
	require.NoError(t, err)
	aob := ctx.Commit().Actions[0]
	aob.ObjectSignature = "not-a-real-signature"

	err = repo.ValidateAction(aob)
	assert.ErrorIs(t, err, errs.SignatureMismatch)
	ctx.Abort()
}
