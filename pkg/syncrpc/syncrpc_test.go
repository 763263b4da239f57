package syncrpc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mezeipetister/demobit/pkg/errs"
	"github.com/mezeipetister/demobit/pkg/persistence"
	"github.com/mezeipetister/demobit/pkg/repository"
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

type replica struct {
	repo  *repository.Repository
	notes *storage.Storage[note, setAge]
}

func newReplica(t *testing.T, uid string, mode repository.Mode) *replica {
	t.Helper()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	repo, err := repository.Open(store, uid, mode)
	require.NoError(t, err)

	notes, err := storage.LoadOrInit[note, setAge](store, "demo")
	require.NoError(t, err)
	require.NoError(t, notes.Register(repo))

	return &replica{repo: repo, notes: notes}
}

// listenLocal starts a test gRPC server on an ephemeral loopback port,
// the bufconn-free pattern the ambient test tooling design calls for.
func listenLocal(t *testing.T, srv *Server) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gs := grpc.NewServer()
	RegisterSyncServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.GracefulStop)

	return lis.Addr().String()
}

func dial(t *testing.T, addr string, repo *repository.Repository) *Client {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &Client{conn: conn, rpc: NewSyncClient(conn), repo: repo}
}

func TestPushThenPullConverge(t *testing.T) {
	ctx := context.Background()

	server := newReplica(t, "server", repository.ServerMode(""))
	srv := NewServer(server.repo)
	t.Cleanup(srv.Stop)
	addr := listenLocal(t, srv)

	clientA := newReplica(t, "alice", repository.RemoteClientMode(addr))

	cctx, err := clientA.repo.Open()
	require.NoError(t, err)
	id, err := clientA.notes.CreateObject(note{Name: "Peti", Age: 34}, cctx)
	require.NoError(t, err)
	require.NoError(t, cctx.Close())

	cctx2, err := clientA.repo.Open()
	require.NoError(t, err)
	require.NoError(t, clientA.notes.PatchByFilter(cctx2, func(n note) bool { return n.Name == "Peti" }, setAge{Age: 7}))
	require.NoError(t, cctx2.Close())

	statusBefore, err := clientA.repo.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, statusBefore.LocalCommits)
	assert.Equal(t, 0, statusBefore.RemoteCommits)

	apiClientA := dial(t, addr, clientA.repo)
	require.NoError(t, apiClientA.Push(ctx))

	statusAfter, err := clientA.repo.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, statusAfter.LocalCommits)
	assert.Equal(t, 2, statusAfter.RemoteCommits)

	soA, err := clientA.notes.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, 7, soA.LocalObject.Age)
	assert.Equal(t, *soA.RemoteObject, soA.LocalObject)

	// Pushing the Create back through merge must not duplicate the
	// object's member_ids entry.
	assert.Equal(t, 1, clientA.notes.Count())
	allA, err := clientA.notes.GetAll()
	require.NoError(t, err)
	assert.Len(t, allA, 1)

	// A second client pulls and converges to the same state.
	clientB := newReplica(t, "bob", repository.RemoteClientMode(addr))
	apiClientB := dial(t, addr, clientB.repo)
	require.NoError(t, apiClientB.Pull(ctx))

	statusB, err := clientB.repo.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, statusB.RemoteCommits)

	soB, err := clientB.notes.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, 7, soB.LocalObject.Age)

	assert.Equal(t, clientA.notes.Count(), clientB.notes.Count())
	allB, err := clientB.notes.GetAll()
	require.NoError(t, err)
	assert.Len(t, allB, 1)
}

func TestStalePushRequiresPullFirst(t *testing.T) {
	ctx := context.Background()

	server := newReplica(t, "server", repository.ServerMode(""))
	srv := NewServer(server.repo)
	t.Cleanup(srv.Stop)
	addr := listenLocal(t, srv)

	clientA := newReplica(t, "alice", repository.RemoteClientMode(addr))
	clientB := newReplica(t, "bob", repository.RemoteClientMode(addr))

	actx, err := clientA.repo.Open()
	require.NoError(t, err)
	_, err = clientA.notes.CreateObject(note{Name: "A", Age: 1}, actx)
	require.NoError(t, err)
	require.NoError(t, actx.Close())

	bctx, err := clientB.repo.Open()
	require.NoError(t, err)
	_, err = clientB.notes.CreateObject(note{Name: "B", Age: 2}, bctx)
	require.NoError(t, err)
	require.NoError(t, bctx.Close())

	apiA := dial(t, addr, clientA.repo)
	require.NoError(t, apiA.Push(ctx))

	apiB := dial(t, addr, clientB.repo)
	err = apiB.Push(ctx)
	require.Error(t, err)
	// The error crosses the wire as a gRPC status, so the *errs.Error kind
	// survives only in its message text, not as a type errors.Is can match.
	assert.Contains(t, err.Error(), string(errs.KindStalePush))

	require.NoError(t, apiB.Pull(ctx))
	require.NoError(t, apiB.Push(ctx))

	statusB, err := clientB.repo.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, statusB.LocalCommits)
	assert.Equal(t, 2, statusB.RemoteCommits)
}
