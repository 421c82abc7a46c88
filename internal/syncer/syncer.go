package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobops/jobops/internal/notify"
	"github.com/jobops/jobops/internal/remote"
	"github.com/jobops/jobops/internal/storage"
	"github.com/jobops/jobops/internal/store"
	"github.com/jobops/jobops/internal/types"
)

// DefaultRelayTimeout bounds a single relay or fetch.
const DefaultRelayTimeout = 30 * time.Second

// Option configures a Syncer.
type Option func(*Syncer)

// WithMirror sets the initial remote mirror.
func WithMirror(m Mirror) Option {
	return func(s *Syncer) { s.mirror = m }
}

// WithNotifier routes user-facing messages.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Syncer) { s.notifier = n }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(s *Syncer) { s.logger = l.Named("sync") }
}

// WithMetrics records relay, load and persist outcomes.
func WithMetrics(m *Metrics) Option {
	return func(s *Syncer) { s.metrics = m }
}

// WithSeed supplies the collection used when nothing is stored yet.
func WithSeed(seed func(now time.Time) []types.JobApplication) Option {
	return func(s *Syncer) { s.seed = seed }
}

// WithRelayTimeout bounds each remote call. Zero disables the bound.
func WithRelayTimeout(d time.Duration) Option {
	return func(s *Syncer) { s.relayTimeout = d }
}

// WithRelayHook is called after every relay completes, on the relay goroutine.
func WithRelayHook(fn func(RelayResult)) Option {
	return func(s *Syncer) { s.onRelay = fn }
}

// WithClock overrides time.Now for the seed data.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// Syncer is the Sync Adapter. It implements store.Listener.
type Syncer struct {
	kv       storage.Backend
	notifier notify.Notifier
	logger   *zap.Logger
	metrics  *Metrics
	seed     func(now time.Time) []types.JobApplication
	onRelay  func(RelayResult)
	now      func() time.Time

	relayTimeout time.Duration

	mu     sync.RWMutex
	mirror Mirror

	// Relays waiting for the dispatcher, in mutation order
	qmu    sync.Mutex
	queue  []relayJob
	closed bool
	wake   chan struct{}

	// Lifecycle for detached relays
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

type relayJob struct {
	mirror Mirror
	req    remote.Request
	id     string
}

// New creates a Syncer persisting to kv.
//
// Example:
//
//	sy := syncer.New(kv, syncer.WithMirror(client), syncer.WithNotifier(center))
//	st := store.New(store.WithListener(sy))
//	src, err := sy.Load(ctx, st)
func New(kv storage.Backend, opts ...Option) *Syncer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Syncer{
		kv:           kv,
		logger:       zap.NewNop(),
		metrics:      NewMetrics(nil),
		now:          time.Now,
		relayTimeout: DefaultRelayTimeout,
		ctx:          ctx,
		cancel:       cancel,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.dispatch()
	return s
}

// SetMirror replaces the remote mirror. nil disables relays. Relays already
// in flight keep the mirror they started with.
func (s *Syncer) SetMirror(m Mirror) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = m
}

// Mirror returns the current mirror, or nil.
func (s *Syncer) Mirror() Mirror {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mirror
}

// Mutated implements store.Listener.
func (s *Syncer) Mutated(m store.Mutation) {
	s.persist(m.Snapshot)

	if m.Action == store.ActionLoad {
		return
	}
	mirror := s.Mirror()
	if mirror == nil {
		return
	}

	req := remote.Request{Action: string(m.Action)}
	switch m.Action {
	case store.ActionCreate, store.ActionUpdate:
		req.Data = m.Job
	case store.ActionDelete:
		req.Data = remote.DeleteData{ID: m.ID}
	default:
		return
	}

	s.enqueue(relayJob{mirror: mirror, req: req, id: m.ID})
}

// enqueue hands a relay to the dispatcher. It never blocks on the network.
func (s *Syncer) enqueue(job relayJob) {
	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		s.metrics.Relays.WithLabelValues(job.req.Action, "dropped").Inc()
		s.logger.Warn("relay dropped after close", zap.String("action", job.req.Action), zap.String("id", job.id))
		return
	}
	s.wg.Add(1)
	s.queue = append(s.queue, job)
	s.qmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dispatch starts queued relays one at a time, in mutation order. Each relay
// runs on its own goroutine; the next one starts once the previous request
// has been written, so requests leave in order while responses may arrive
// in any order.
func (s *Syncer) dispatch() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.dropQueued()
			return
		case <-s.wake:
		}

		for {
			s.qmu.Lock()
			if len(s.queue) == 0 {
				s.qmu.Unlock()
				break
			}
			job := s.queue[0]
			s.queue = s.queue[1:]
			s.qmu.Unlock()

			issued := make(chan struct{})
			var once sync.Once
			go s.relay(job, func() { once.Do(func() { close(issued) }) })

			select {
			case <-issued:
			case <-s.ctx.Done():
				s.dropQueued()
				return
			}
		}
	}
}

// dropQueued discards relays that were never started.
func (s *Syncer) dropQueued() {
	s.qmu.Lock()
	pending := s.queue
	s.queue = nil
	s.closed = true
	s.qmu.Unlock()

	for _, job := range pending {
		s.metrics.Relays.WithLabelValues(job.req.Action, "dropped").Inc()
		s.logger.Warn("relay dropped on shutdown", zap.String("action", job.req.Action), zap.String("id", job.id))
		s.wg.Done()
	}
}

// persist writes the whole collection under the jobs key.
func (s *Syncer) persist(jobs []types.JobApplication) {
	if jobs == nil {
		jobs = []types.JobApplication{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := storage.SaveJSON(ctx, s.kv, storage.KeyJobs, jobs); err != nil {
		s.metrics.PersistFailures.Inc()
		s.logger.Error("failed to persist jobs", zap.Int("count", len(jobs)), zap.Error(err))
		s.notify(notify.Error, "Could not save changes locally")
	}
}

// relay sends one request. issued is called once the request is out, and
// again when Send returns in case the mirror never reported it.
func (s *Syncer) relay(job relayJob, issued func()) {
	defer s.wg.Done()
	defer issued()

	ctx := s.ctx
	if s.relayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.relayTimeout)
		defer cancel()
	}

	req, id := job.req, job.id
	err := job.mirror.Send(remote.WithIssued(ctx, issued), req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.logger.Warn("relay failed",
			zap.String("action", req.Action),
			zap.String("id", id),
			zap.Error(err))
		s.notify(notify.Error, fmt.Sprintf("Sync failed: could not %s record on remote", req.Action))
	} else {
		s.logger.Debug("relayed", zap.String("action", req.Action), zap.String("id", id))
	}
	s.metrics.Relays.WithLabelValues(req.Action, outcome).Inc()

	if s.onRelay != nil {
		s.onRelay(RelayResult{Action: req.Action, ID: id, Err: err})
	}
}

// Load performs the one-time initial load into st.
func (s *Syncer) Load(ctx context.Context, st *store.Store) (Source, error) {
	if err := st.BeginLoad(); err != nil {
		return "", err
	}

	if mirror := s.Mirror(); mirror != nil {
		fctx := ctx
		if s.relayTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, s.relayTimeout)
			defer cancel()
		}
		jobs, err := mirror.FetchAll(fctx)
		if err == nil {
			if id, dup := duplicateID(jobs); dup {
				err = fmt.Errorf("%w: duplicate id %q", remote.ErrMalformed, id)
			}
		}
		if err == nil {
			return s.complete(st, jobs, SourceRemote)
		}
		s.logger.Warn("remote load failed, falling back to local data", zap.Error(err))
		s.notify(notify.Info, "Could not reach remote; using local data")
	}

	if jobs, ok := s.LocalSnapshot(ctx); ok {
		return s.complete(st, jobs, SourceLocal)
	}
	if s.seed != nil {
		if jobs := s.seed(s.now()); len(jobs) > 0 {
			return s.complete(st, jobs, SourceSeed)
		}
	}
	return s.complete(st, nil, SourceEmpty)
}

func (s *Syncer) complete(st *store.Store, jobs []types.JobApplication, src Source) (Source, error) {
	if err := st.CompleteLoad(jobs); err != nil {
		return "", err
	}
	s.metrics.Loads.WithLabelValues(string(src)).Inc()
	s.logger.Info("loaded jobs", zap.String("source", string(src)), zap.Int("count", len(jobs)))
	return src, nil
}

// LocalSnapshot reads the stored collection. ok is false when nothing usable
// is stored; a corrupt or invalid blob counts as nothing.
func (s *Syncer) LocalSnapshot(ctx context.Context) ([]types.JobApplication, bool) {
	var jobs []types.JobApplication
	err := storage.LoadJSON(ctx, s.kv, storage.KeyJobs, &jobs)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, false
	case errors.Is(err, storage.ErrCorrupt):
		s.logger.Warn("local snapshot is corrupt, ignoring it", zap.Error(err))
		return nil, false
	case err != nil:
		s.logger.Error("failed to read local snapshot", zap.Error(err))
		return nil, false
	}

	for i := range jobs {
		if err := jobs[i].Validate(); err != nil {
			s.logger.Warn("local snapshot holds an invalid record, ignoring it",
				zap.Int("index", i), zap.Error(err))
			return nil, false
		}
	}
	if id, dup := duplicateID(jobs); dup {
		s.logger.Warn("local snapshot holds a duplicate id, ignoring it", zap.String("id", id))
		return nil, false
	}
	return jobs, true
}

// duplicateID reports the first id that occurs more than once.
func duplicateID(jobs []types.JobApplication) (string, bool) {
	seen := make(map[string]struct{}, len(jobs))
	for i := range jobs {
		if _, ok := seen[jobs[i].ID]; ok {
			return jobs[i].ID, true
		}
		seen[jobs[i].ID] = struct{}{}
	}
	return "", false
}

// Wait blocks until in-flight relays finish or ctx is done.
func (s *Syncer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels in-flight relays, drops queued ones and waits for both.
func (s *Syncer) Close() {
	s.cancel()
	<-s.done
	s.wg.Wait()
}

func (s *Syncer) notify(kind notify.Kind, msg string) {
	if s.notifier != nil {
		s.notifier.Notify(kind, msg)
	}
}
