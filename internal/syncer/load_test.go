package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobops/jobops/internal/storage"
	"github.com/jobops/jobops/internal/store"
	"github.com/jobops/jobops/internal/types"
)

// openLoaded returns a ready store persisting through a syncer on SQLite.
func openLoaded(tb testing.TB, mirror Mirror) (*store.Store, *Syncer) {
	tb.Helper()
	kv, err := storage.OpenSQLite(filepath.Join(tb.TempDir(), "load.db"))
	require.NoError(tb, err)
	tb.Cleanup(func() { kv.Close() })

	opts := []Option{WithLogger(zap.NewNop())}
	if mirror != nil {
		opts = append(opts, WithMirror(mirror))
	}
	s := New(kv, opts...)
	tb.Cleanup(s.Close)

	st := store.New(store.WithListener(s))
	_, err = s.Load(context.Background(), st)
	require.NoError(tb, err)
	return st, s
}

func TestConcurrentCreates_SQLite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load test in short mode")
	}

	const (
		workers   = 8
		perWorker = 25
	)
	mirror := &fakeMirror{}
	st, s := openLoaded(t, mirror)

	var wg sync.WaitGroup
	durations := make([]time.Duration, workers*perWorker)
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				start := time.Now()
				_, err := st.Create(types.NewJob{
					Company: fmt.Sprintf("Company %d-%d", w, i),
					Role:    "Engineer",
				})
				durations[w*perWorker+i] = time.Since(start)
				if err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Create() failed: %v", err)
	}
	drain(t, s)

	total := workers * perWorker
	require.Equal(t, total, st.Len())

	local, ok := s.LocalSnapshot(context.Background())
	require.True(t, ok)
	assert.Len(t, local, total)
	assert.Equal(t, st.Jobs()[0].ID, local[0].ID, "local copy lags the last create")
	assert.Len(t, mirror.requests(), total)

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	t.Logf("creates: %d, p50 %v, p95 %v, max %v",
		total,
		durations[total/2],
		durations[total*95/100],
		durations[total-1])
}

func BenchmarkCreate_SQLite(b *testing.B) {
	st, s := openLoaded(b, nil)
	in := types.NewJob{Company: "Acme", Role: "Engineer"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := st.Create(in); err != nil {
			b.Fatalf("Create() failed: %v", err)
		}
	}
	b.StopTimer()

	if local, ok := s.LocalSnapshot(context.Background()); !ok || len(local) != b.N {
		b.Errorf("local copy has %d records, want %d", len(local), b.N)
	}
}

func BenchmarkLocalSnapshot_SQLite(b *testing.B) {
	st, s := openLoaded(b, nil)
	for i := 0; i < 200; i++ {
		if _, err := st.Create(types.NewJob{Company: fmt.Sprintf("C%d", i), Role: "R"}); err != nil {
			b.Fatal(err)
		}
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := s.LocalSnapshot(ctx); !ok {
			b.Fatal("LocalSnapshot() found nothing")
		}
	}
}
