package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jobops/jobops/internal/notify"
	"github.com/jobops/jobops/internal/remote"
	"github.com/jobops/jobops/internal/storage"
	"github.com/jobops/jobops/internal/store"
	"github.com/jobops/jobops/internal/types"
)

// fakeMirror records relays and serves a fixed record list.
type fakeMirror struct {
	mu       sync.Mutex
	records  []types.JobApplication
	fetchErr error
	sendErr  error
	block    chan struct{}
	sent     []remote.Request
	entered  []string
}

func (f *fakeMirror) FetchAll(ctx context.Context) ([]types.JobApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.records, nil
}

func (f *fakeMirror) Send(ctx context.Context, r remote.Request) error {
	f.mu.Lock()
	f.entered = append(f.entered, relayID(r))
	f.mu.Unlock()
	remote.MarkIssued(ctx)

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, r)
	return f.sendErr
}

func (f *fakeMirror) requests() []remote.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remote.Request(nil), f.sent...)
}

func (f *fakeMirror) entryOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.entered...)
}

func relayID(r remote.Request) string {
	switch d := r.Data.(type) {
	case types.JobApplication:
		return d.ID
	case remote.DeleteData:
		return d.ID
	}
	return ""
}

// recordingNotifier captures notifications without timers.
type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recordingNotifier) Notify(kind notify.Kind, msg string) notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := notify.Notification{Kind: kind, Message: msg}
	r.got = append(r.got, n)
	return n
}

func (r *recordingNotifier) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, len(r.got))
	for i, n := range r.got {
		out[i] = n.Kind
	}
	return out
}

type harness struct {
	kv      *storage.Memory
	mirror  *fakeMirror
	notes   *recordingNotifier
	metrics *Metrics
	sync    *Syncer
	store   *store.Store
}

func newHarness(t *testing.T, mirror *fakeMirror, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		kv:      storage.NewMemory(),
		mirror:  mirror,
		notes:   &recordingNotifier{},
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	base := []Option{
		WithNotifier(h.notes),
		WithLogger(zaptest.NewLogger(t)),
		WithMetrics(h.metrics),
	}
	if mirror != nil {
		base = append(base, WithMirror(mirror))
	}
	h.sync = New(h.kv, append(base, opts...)...)
	t.Cleanup(h.sync.Close)
	h.store = store.New(store.WithListener(h.sync))
	return h
}

func storedJobs(t *testing.T, kv storage.Backend) []types.JobApplication {
	t.Helper()
	var jobs []types.JobApplication
	require.NoError(t, storage.LoadJSON(context.Background(), kv, storage.KeyJobs, &jobs))
	return jobs
}

func drain(t *testing.T, s *Syncer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestLoad_FromRemote(t *testing.T) {
	m := &fakeMirror{records: []types.JobApplication{
		{ID: "r1", Company: "Remote Co", Role: "Eng", Status: types.StatusApplied},
	}}
	h := newHarness(t, m)

	src, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, src)
	assert.Equal(t, store.Ready, h.store.State())
	require.Len(t, h.store.Jobs(), 1)

	// Tier 1 persists the loaded collection; load is never relayed.
	assert.Equal(t, "r1", storedJobs(t, h.kv)[0].ID)
	drain(t, h.sync)
	assert.Empty(t, m.requests())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Loads.WithLabelValues("remote")))
}

func TestLoad_RemoteUnreachableFallsBackToLocal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client, err := remote.New(url, remote.WithTimeout(time.Second))
	require.NoError(t, err)

	kv := storage.NewMemory()
	local := []types.JobApplication{{ID: "l1", Company: "Local Co", Role: "Eng", Status: types.StatusInterview}}
	require.NoError(t, storage.SaveJSON(context.Background(), kv, storage.KeyJobs, local))

	notes := &recordingNotifier{}
	sy := New(kv, WithMirror(client), WithNotifier(notes), WithLogger(zaptest.NewLogger(t)))
	defer sy.Close()
	st := store.New(store.WithListener(sy))

	src, err := sy.Load(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, src)
	jobs := st.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "l1", jobs[0].ID)
	assert.Equal(t, []notify.Kind{notify.Info}, notes.kinds())
}

func TestLoad_NoMirrorUsesLocalThenSeedThenEmpty(t *testing.T) {
	seed := func(now time.Time) []types.JobApplication {
		return []types.JobApplication{{ID: "s1", Company: "Seed", Role: "Demo", Status: types.StatusApplied}}
	}

	t.Run("seed when nothing stored", func(t *testing.T) {
		h := newHarness(t, nil, WithSeed(seed))
		src, err := h.sync.Load(context.Background(), h.store)
		require.NoError(t, err)
		assert.Equal(t, SourceSeed, src)
		assert.Equal(t, "s1", storedJobs(t, h.kv)[0].ID)
	})

	t.Run("empty without seed", func(t *testing.T) {
		h := newHarness(t, nil)
		src, err := h.sync.Load(context.Background(), h.store)
		require.NoError(t, err)
		assert.Equal(t, SourceEmpty, src)
		assert.Empty(t, h.store.Jobs())
		assert.Empty(t, storedJobs(t, h.kv))
	})

	t.Run("stored empty list is not reseeded", func(t *testing.T) {
		h := newHarness(t, nil, WithSeed(seed))
		require.NoError(t, h.kv.Set(context.Background(), storage.KeyJobs, "[]"))
		src, err := h.sync.Load(context.Background(), h.store)
		require.NoError(t, err)
		assert.Equal(t, SourceLocal, src)
		assert.Empty(t, h.store.Jobs())
	})

	t.Run("corrupt blob treated as absent", func(t *testing.T) {
		h := newHarness(t, nil, WithSeed(seed))
		require.NoError(t, h.kv.Set(context.Background(), storage.KeyJobs, "{{{"))
		src, err := h.sync.Load(context.Background(), h.store)
		require.NoError(t, err)
		assert.Equal(t, SourceSeed, src)
	})

	t.Run("invalid record treated as absent", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.kv.Set(context.Background(), storage.KeyJobs, `[{"id":"x","company":"A","role":"r","status":"Maybe"}]`))
		src, err := h.sync.Load(context.Background(), h.store)
		require.NoError(t, err)
		assert.Equal(t, SourceEmpty, src)
	})
}

func TestLoad_OnlyOnce(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)
	_, err = h.sync.Load(context.Background(), h.store)
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestMutations_PersistAndRelay(t *testing.T) {
	m := &fakeMirror{}
	h := newHarness(t, m)
	_, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)

	job, err := h.store.Create(types.NewJob{Company: "Acme", Role: "Engineer"})
	require.NoError(t, err)
	// Tier 1 is synchronous.
	require.Len(t, storedJobs(t, h.kv), 1)

	_, err = h.store.Update(job.ID, types.Patch{Status: types.StatusPtr(types.StatusInterview)})
	require.NoError(t, err)
	require.NoError(t, h.store.Delete(job.ID))
	require.NoError(t, h.store.Delete(job.ID))
	assert.Empty(t, storedJobs(t, h.kv))

	drain(t, h.sync)
	reqs := m.requests()
	require.Len(t, reqs, 3)

	actions := map[string]remote.Request{}
	for _, r := range reqs {
		actions[r.Action] = r
	}
	assert.Equal(t, job.ID, actions["create"].Data.(types.JobApplication).ID)
	assert.Equal(t, types.StatusInterview, actions["update"].Data.(types.JobApplication).Status)
	assert.Equal(t, remote.DeleteData{ID: job.ID}, actions["delete"].Data)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Relays.WithLabelValues("create", "ok")))
	assert.Empty(t, h.notes.kinds())
}

func TestMutations_RejectedInputNeverRelayed(t *testing.T) {
	m := &fakeMirror{}
	h := newHarness(t, m)
	_, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)

	_, err = h.store.Create(types.NewJob{Company: "", Role: "Engineer"})
	require.ErrorIs(t, err, store.ErrMissingField)
	_, err = h.store.Update("ghost", types.Patch{Notes: types.String("x")})
	require.ErrorIs(t, err, store.ErrNotFound)

	drain(t, h.sync)
	assert.Empty(t, m.requests())
}

func TestRelayFailure_NotifiesWithoutRollback(t *testing.T) {
	m := &fakeMirror{sendErr: errors.New("502 bad gateway")}
	var hookMu sync.Mutex
	var results []RelayResult
	h := newHarness(t, m, WithRelayHook(func(r RelayResult) {
		hookMu.Lock()
		defer hookMu.Unlock()
		results = append(results, r)
	}))
	_, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)

	job, err := h.store.Create(types.NewJob{Company: "Acme", Role: "Engineer"})
	require.NoError(t, err)
	drain(t, h.sync)

	_, ok := h.store.Get(job.ID)
	assert.True(t, ok, "mutation must survive relay failure")
	assert.Equal(t, []notify.Kind{notify.Error}, h.notes.kinds())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Relays.WithLabelValues("create", "error")))

	hookMu.Lock()
	defer hookMu.Unlock()
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}

func TestPersistFailure_NotifiesWithoutError(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)

	h.kv.FailWrites(errors.New("quota exceeded"))
	_, err = h.store.Create(types.NewJob{Company: "Acme", Role: "Engineer"})
	require.NoError(t, err)

	assert.Equal(t, 1, h.store.Len())
	assert.Equal(t, []notify.Kind{notify.Error}, h.notes.kinds())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.PersistFailures))
}

func TestCreateReturnsBeforeRelayCompletes(t *testing.T) {
	m := &fakeMirror{block: make(chan struct{})}
	h := newHarness(t, m)
	_, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, _ = h.store.Create(types.NewJob{Company: "Slow", Role: "Remote"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Create blocked on relay")
	}

	close(m.block)
	drain(t, h.sync)
	assert.Len(t, m.requests(), 1)
}

func TestSetMirror(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)

	_, err = h.store.Create(types.NewJob{Company: "Before", Role: "r"})
	require.NoError(t, err)

	m := &fakeMirror{}
	h.sync.SetMirror(m)
	_, err = h.store.Create(types.NewJob{Company: "After", Role: "r"})
	require.NoError(t, err)
	drain(t, h.sync)
	require.Len(t, m.requests(), 1)
	assert.Equal(t, "After", m.requests()[0].Data.(types.JobApplication).Company)

	h.sync.SetMirror(nil)
	assert.Nil(t, h.sync.Mirror())
}

func TestLocalFallbackRoundTrip(t *testing.T) {
	kv := storage.NewMemory()

	first := New(kv)
	st1 := store.New(store.WithListener(first))
	_, err := first.Load(context.Background(), st1)
	require.NoError(t, err)
	_, err = st1.Create(types.NewJob{Company: "Acme", Role: "Engineer", CustomFields: map[string]string{"ref": "Kim"}})
	require.NoError(t, err)
	first.Close()

	second := New(kv)
	defer second.Close()
	st2 := store.New(store.WithListener(second))
	src, err := second.Load(context.Background(), st2)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, src)
	assert.Equal(t, st1.Jobs(), st2.Jobs())
}

func TestWait_RespectsContext(t *testing.T) {
	m := &fakeMirror{block: make(chan struct{})}
	defer close(m.block)
	h := newHarness(t, m)
	_, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)
	_, err = h.store.Create(types.NewJob{Company: "Acme", Role: "r"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.sync.Wait(ctx), context.DeadlineExceeded)
}

func TestRelay_IssuedInMutationOrder(t *testing.T) {
	m := &fakeMirror{}
	h := newHarness(t, m)
	_, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)

	var want []string
	for i := 0; i < 300; i++ {
		job, err := h.store.Create(types.NewJob{Company: fmt.Sprintf("Company %d", i), Role: "r"})
		require.NoError(t, err)
		want = append(want, job.ID)
	}
	drain(t, h.sync)

	assert.Equal(t, want, m.entryOrder())
}

func TestRelay_CreateThenDeleteKeepsOrder(t *testing.T) {
	m := &fakeMirror{}
	h := newHarness(t, m)
	_, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		job, err := h.store.Create(types.NewJob{Company: "Acme", Role: "r"})
		require.NoError(t, err)
		require.NoError(t, h.store.Delete(job.ID))
	}
	drain(t, h.sync)

	reqs := m.requests()
	require.Len(t, reqs, 100)
	created := map[string]bool{}
	for _, r := range reqs {
		switch r.Action {
		case remote.ActionCreate:
			created[relayID(r)] = true
		case remote.ActionDelete:
			assert.True(t, created[relayID(r)], "delete of %s sent before its create", relayID(r))
		}
	}
}

func TestRelay_SlowResponseDoesNotHoldBackNextRequest(t *testing.T) {
	m := &fakeMirror{block: make(chan struct{})}
	h := newHarness(t, m)
	_, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)

	_, err = h.store.Create(types.NewJob{Company: "First", Role: "r"})
	require.NoError(t, err)
	_, err = h.store.Create(types.NewJob{Company: "Second", Role: "r"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(m.entryOrder()) == 2 }, 2*time.Second, 5*time.Millisecond)
	close(m.block)
	drain(t, h.sync)
}

func TestClose_DropsRelaysAfterShutdown(t *testing.T) {
	m := &fakeMirror{}
	h := newHarness(t, m)
	_, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)

	h.sync.Close()
	_, err = h.store.Create(types.NewJob{Company: "Late", Role: "r"})
	require.NoError(t, err)

	drain(t, h.sync)
	assert.Empty(t, m.requests())
	assert.Len(t, storedJobs(t, h.kv), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Relays.WithLabelValues("create", "dropped")))
}

func TestLoad_RemoteDuplicateIDsFallsBackToLocal(t *testing.T) {
	m := &fakeMirror{records: []types.JobApplication{
		{ID: "dup", Company: "A", Role: "r", Status: types.StatusApplied},
		{ID: "dup", Company: "B", Role: "r", Status: types.StatusApplied},
	}}
	h := newHarness(t, m)
	require.NoError(t, storage.SaveJSON(context.Background(), h.kv, storage.KeyJobs, []types.JobApplication{
		{ID: "local", Company: "Local", Role: "r", Status: types.StatusApplied},
	}))

	src, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, src)
	require.Equal(t, 1, h.store.Len())
	assert.Equal(t, "local", h.store.Jobs()[0].ID)
	assert.Equal(t, []notify.Kind{notify.Info}, h.notes.kinds())
}

func TestLocalSnapshot_DuplicateIDsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, storage.SaveJSON(context.Background(), h.kv, storage.KeyJobs, []types.JobApplication{
		{ID: "dup", Company: "A", Role: "r", Status: types.StatusApplied},
		{ID: "dup", Company: "B", Role: "r", Status: types.StatusApplied},
	}))

	_, ok := h.sync.LocalSnapshot(context.Background())
	assert.False(t, ok)

	src, err := h.sync.Load(context.Background(), h.store)
	require.NoError(t, err)
	assert.Equal(t, SourceEmpty, src)
}
