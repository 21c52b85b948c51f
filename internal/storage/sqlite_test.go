package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/saeedalam/promptforge/pkg/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(t.TempDir(), zaptest.NewLogger(t))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveConstraintUpserts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveConstraint(ctx, types.FrameworkPowerShell, "avoid ??", "ps7-operator"))
	require.NoError(t, s.SaveConstraint(ctx, types.FrameworkPowerShell, "avoid ??", ""))
	require.NoError(t, s.SaveConstraint(ctx, types.FrameworkPowerShell, "no iex", "invoke-expression"))
	require.NoError(t, s.SaveConstraint(ctx, types.FrameworkPythonTk, "avoid ??", "ps7-operator"))

	cs, err := s.Constraints(ctx, types.FrameworkPowerShell)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "avoid ??", cs[0].ConstraintText)
	assert.Equal(t, 2, cs[0].HitCount)
	assert.Equal(t, "ps7-operator", cs[0].ErrorPattern, "an empty pattern keeps the stored one")
	assert.Equal(t, 1, cs[1].HitCount)

	all, err := s.Constraints(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestClearConstraints(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveConstraint(ctx, types.FrameworkPowerShell, "a", ""))
	require.NoError(t, s.SaveConstraint(ctx, types.FrameworkTauri, "b", ""))

	n, err := s.ClearConstraints(ctx, types.FrameworkPowerShell)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	all, err := s.Constraints(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, types.FrameworkTauri, all[0].Framework)
}

func TestBuildHistoryIsAppendOnly(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := &types.BuildRecord{Name: "picker", Framework: types.FrameworkPythonTk, Prompt: "p", Status: types.StatusFailed}
	second := &types.BuildRecord{Name: "picker", Framework: types.FrameworkPythonTk, Prompt: "p", Status: types.StatusCompleted,
		SourceDir: "/tmp/picker", Branded: true, BuildTime: 1.5}
	other := &types.BuildRecord{Name: "cleaner", Framework: types.FrameworkPowerShell, Status: types.StatusCompleted}

	require.NoError(t, s.AddBuild(ctx, first))
	require.NoError(t, s.AddBuild(ctx, second))
	require.NoError(t, s.AddBuild(ctx, other))
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	builds, err := s.ListBuilds(ctx, 0)
	require.NoError(t, err)
	require.Len(t, builds, 3)
	assert.Equal(t, "cleaner", builds[0].Name, "newest first")
	assert.Equal(t, second.ID, builds[1].ID)
	assert.True(t, builds[1].Branded)
	assert.Equal(t, "/tmp/picker", builds[1].SourceDir)
	assert.InDelta(t, 1.5, builds[1].BuildTime, 0.001)

	limited, err := s.ListBuilds(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := s.RemoveBuild(ctx, "picker")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	builds, err = s.ListBuilds(ctx, 0)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "cleaner", builds[0].Name)
}

func TestGetStats(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for _, r := range []types.BuildRecord{
		{Name: "a", Framework: types.FrameworkPowerShell, Status: types.StatusCompleted},
		{Name: "b", Framework: types.FrameworkPowerShell, Status: types.StatusFailed},
		{Name: "c", Framework: types.FrameworkTauri, Status: types.StatusCompleted},
	} {
		r := r
		require.NoError(t, s.AddBuild(ctx, &r))
	}
	require.NoError(t, s.SaveConstraint(ctx, types.FrameworkPowerShell, "x", ""))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.ByFramework[types.FrameworkPowerShell])
	assert.Equal(t, 1, stats.Constraints)
	assert.Equal(t, []types.Framework{types.FrameworkPowerShell, types.FrameworkTauri}, stats.SortedFrameworks())
}

func TestTwoStoresShareOneDatabase(t *testing.T) {
	dir := t.TempDir()
	a := NewStore(dir, nil)
	b := NewStore(dir, nil)
	defer a.Close()
	defer b.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.SaveConstraint(ctx, types.FrameworkPowerShell, "shared", ""))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, b.SaveConstraint(ctx, types.FrameworkPowerShell, "shared", ""))
		}()
	}
	wg.Wait()

	cs, err := a.Constraints(ctx, types.FrameworkPowerShell)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, 20, cs[0].HitCount)
}

func TestUnavailableStore(t *testing.T) {
	// A regular file where the directory should be makes the open fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	s := NewStore(filepath.Join(blocker, "sub"), nil)
	err := s.SaveConstraint(context.Background(), types.FrameworkPowerShell, "x", "")
	assert.True(t, errors.Is(err, types.ErrPersistenceUnavailable))

	var nilStore *Store
	_, err = nilStore.ListBuilds(context.Background(), 0)
	assert.True(t, errors.Is(err, types.ErrPersistenceUnavailable))
}

func TestWithRetryStopsOnNonBusyError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := withRetry(context.Background(), func() error {
		calls++
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)

	calls = 0
	start := time.Now()
	err = withRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, time.Since(start), retryBase)
}
