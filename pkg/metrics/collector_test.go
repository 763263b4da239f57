package metrics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/mezeipetister/demobit/pkg/persistence"
	"github.com/mezeipetister/demobit/pkg/repository"
)

func TestCollectorSamplesRepositoryStatus(t *testing.T) {
	store, err := persistence.Open(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	repo, err := repository.Open(store, "peti", repository.LocalMode())
	require.NoError(t, err)

	cctx, err := repo.Open()
	require.NoError(t, err)
	cctx.Comment("seed commit")
	require.NoError(t, cctx.Close())

	c := NewCollector(repo)
	c.interval = 10 * time.Millisecond
	c.Start()
	defer c.Stop()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(CommitsLocalTotal) == 1
	}, time.Second, 10*time.Millisecond)
}
