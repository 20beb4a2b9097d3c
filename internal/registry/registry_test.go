package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podushkina/schedmon/internal/task"
)

func setupStores(t *testing.T) map[string]Store {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rs, err := NewRedis(mr.Addr(), "", 0, 0)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { rs.Close() })

	ss, err := NewSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	return map[string]Store{
		BackendMemory: NewMemory(),
		BackendRedis:  rs,
		BackendSQLite: ss,
	}
}

func ts(minute int) *time.Time {
	t := time.Date(2026, 3, 1, 9, minute, 0, 0, time.UTC)
	return &t
}

func TestStore_InsertOverwrites(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Insert(ctx, task.NewPending("t1", "a red fox", time.Now())))
			require.NoError(t, s.Insert(ctx, task.Record{ID: "t1", Prompt: "a red fox", Status: task.StatusRunning}))

			n, err := s.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			rec, ok, err := s.Get(ctx, "t1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, task.StatusRunning, rec.Status)
		})
	}
}

func TestStore_UpdatePreservesStartTime(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			local := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

			require.NoError(t, s.Insert(ctx, task.NewPending("t1", "a red fox", local)))

			for i := 0; i < 3; i++ {
				remote := task.Record{ID: "t1", Status: task.StatusRunning, StartTime: ts(i), CreatedAt: ts(i)}
				_, err := s.Update(ctx, remote)
				require.NoError(t, err)
			}

			rec, ok, err := s.Get(ctx, "t1")
			require.NoError(t, err)
			require.True(t, ok)
			require.NotNil(t, rec.StartTime)
			assert.True(t, rec.StartTime.Equal(local))
			assert.Equal(t, "a red fox", rec.Prompt)
			assert.Equal(t, task.StatusRunning, rec.Status)
		})
	}
}

func TestStore_UpdateUnknownInserts(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec, err := s.Update(ctx, task.Record{ID: "new", Status: task.StatusPending})
			require.NoError(t, err)
			assert.Equal(t, "new", rec.ID)

			_, ok, err := s.Get(ctx, "new")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestStore_ListSorted(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, task.Record{ID: "b", CreatedAt: ts(2)}))
			require.NoError(t, s.Insert(ctx, task.Record{ID: "a", CreatedAt: ts(1)}))
			require.NoError(t, s.Insert(ctx, task.Record{ID: "c", CreatedAt: ts(3)}))

			asc, err := s.List(ctx, task.SortOptions{SortBy: task.SortCreatedAt, SortOrder: task.SortAsc})
			require.NoError(t, err)
			desc, err := s.List(ctx, task.SortOptions{SortBy: task.SortCreatedAt, SortOrder: task.SortDesc})
			require.NoError(t, err)

			require.Len(t, asc, 3)
			require.Len(t, desc, 3)
			for i := range asc {
				assert.Equal(t, asc[i].ID, desc[len(desc)-1-i].ID)
			}
			assert.Equal(t, "a", asc[0].ID)
		})
	}
}

func TestStore_ReplaceAllAndClear(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, task.Record{ID: "old"}))

			require.NoError(t, s.ReplaceAll(ctx, []task.Record{{ID: "x"}, {ID: "y"}}))

			_, ok, err := s.Get(ctx, "old")
			require.NoError(t, err)
			assert.False(t, ok)

			list, err := s.List(ctx, task.DefaultSort())
			require.NoError(t, err)
			assert.Len(t, list, 2)

			require.NoError(t, s.Clear(ctx))
			n, err := s.Len(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "etcd"})
	assert.Error(t, err)

	s, err := Open(Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
}
