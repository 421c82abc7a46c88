// Package store holds the in-memory collection of job applications.
//
// The Store is the single source of truth for the process. Every mutation is
// applied synchronously under a mutex and then reported to the registered
// listeners, still under the lock, so observers see mutations in call order.
// Persistence and remote relay are listener concerns (see package syncer);
// nothing a listener does can fail or roll back a mutation.
//
// Lifecycle:
//
//	Uninitialized --BeginLoad--> Loading --CompleteLoad--> Ready
//
// Mutations are rejected with ErrNotReady until the store is Ready.
package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobops/jobops/internal/dates"
	"github.com/jobops/jobops/internal/types"
)

// State is the load lifecycle of a Store.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Action names the kind of mutation. The first three match the remote
// relay actions.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionLoad   Action = "load"
)

// Mutation describes one applied change.
type Mutation struct {
	Action Action
	// Job is the full post-mutation record for create and update.
	Job types.JobApplication
	// ID is set for every action except load.
	ID string
	// Snapshot is the whole collection after the change.
	Snapshot []types.JobApplication
}

// Listener observes applied mutations. Mutated is called with the store lock
// held and must not call back into the Store.
type Listener interface {
	Mutated(m Mutation)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(m Mutation)

// Mutated implements Listener.
func (f ListenerFunc) Mutated(m Mutation) { f(m) }

// Stats are the headline counts over the collection.
type Stats struct {
	Total     int `json:"total"`
	Interview int `json:"interview"`
	Offer     int `json:"offer"`
	Rejected  int `json:"rejected"`
	Active    int `json:"active"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the UUIDv4 id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithListener registers listeners. They are notified in registration order.
func WithListener(l ...Listener) Option {
	return func(s *Store) { s.listeners = append(s.listeners, l...) }
}

// Store is the Record Store.
type Store struct {
	mu        sync.Mutex
	state     State
	jobs      []types.JobApplication // newest first
	listeners []Listener

	now   func() time.Time
	newID func() string
}

// New creates an Uninitialized store.
//
// Example:
//
//	s := store.New(store.WithListener(syncer))
//	if err := syncer.Load(ctx, s); err != nil {
//	    return err
//	}
//	job, err := s.Create(types.NewJob{Company: "Acme", Role: "Engineer"})
func New(opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddListener registers a listener after construction.
func (s *Store) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BeginLoad moves Uninitialized to Loading. It may only be called once.
func (s *Store) BeginLoad() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Uninitialized {
		return fmt.Errorf("%w: begin load from %s", ErrInvalidState, s.state)
	}
	s.state = Loading
	return nil
}

// CompleteLoad replaces the collection and moves Loading to Ready. The
// listeners receive a load mutation so the collection is persisted; it is
// never relayed.
func (s *Store) CompleteLoad(jobs []types.JobApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Loading {
		return fmt.Errorf("%w: complete load from %s", ErrInvalidState, s.state)
	}

	s.jobs = make([]types.JobApplication, 0, len(jobs))
	for _, j := range jobs {
		s.jobs = append(s.jobs, j.Clone())
	}
	s.state = Ready
	s.notify(Mutation{Action: ActionLoad})
	return nil
}

// Create validates input and inserts a new record at the front.
func (s *Store) Create(in types.NewJob) (types.JobApplication, error) {
	if strings.TrimSpace(in.Company) == "" {
		return types.JobApplication{}, fmt.Errorf("%w: company", ErrMissingField)
	}
	if strings.TrimSpace(in.Role) == "" {
		return types.JobApplication{}, fmt.Errorf("%w: role", ErrMissingField)
	}
	status := in.Status
	if status == "" {
		status = types.StatusApplied
	}
	if !status.Valid() {
		return types.JobApplication{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return types.JobApplication{}, ErrNotReady
	}

	today := dates.Today(s.now())
	job := types.JobApplication{
		ID:             s.uniqueID(),
		Company:        in.Company,
		Role:           in.Role,
		Status:         status,
		DateApplied:    in.DateApplied,
		LastUpdated:    today,
		Link:           in.Link,
		Notes:          in.Notes,
		NextAction:     in.NextAction,
		NextActionDate: in.NextActionDate,
		Salary:         in.Salary,
		Location:       in.Location,
		Contacts:       in.Contacts,
		CustomFields:   map[string]string{},
	}
	if job.DateApplied == "" {
		job.DateApplied = today
	}
	for k, v := range in.CustomFields {
		job.CustomFields[k] = v
	}

	s.jobs = append([]types.JobApplication{job}, s.jobs...)
	s.notify(Mutation{Action: ActionCreate, Job: job.Clone(), ID: job.ID})
	return job.Clone(), nil
}

// Update shallow-merges patch into the record with the given id and
// refreshes its lastUpdated date.
func (s *Store) Update(id string, patch types.Patch) (types.JobApplication, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return types.JobApplication{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *patch.Status)
	}
	if patch.Company != nil && strings.TrimSpace(*patch.Company) == "" {
		return types.JobApplication{}, fmt.Errorf("%w: company", ErrMissingField)
	}
	if patch.Role != nil && strings.TrimSpace(*patch.Role) == "" {
		return types.JobApplication{}, fmt.Errorf("%w: role", ErrMissingField)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return types.JobApplication{}, ErrNotReady
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return types.JobApplication{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	job := s.jobs[idx].Clone()
	patch.Apply(&job)
	job.ID = id
	job.LastUpdated = dates.Today(s.now())
	s.jobs[idx] = job

	s.notify(Mutation{Action: ActionUpdate, Job: job.Clone(), ID: id})
	return job.Clone(), nil
}

// Delete removes the record with the given id. Deleting an unknown id is a
// no-op and is not reported to listeners.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return ErrNotReady
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return nil
	}
	s.jobs = append(s.jobs[:idx:idx], s.jobs[idx+1:]...)
	s.notify(Mutation{Action: ActionDelete, ID: id})
	return nil
}

// Jobs returns a deep copy of the collection, newest first.
func (s *Store) Jobs() []types.JobApplication {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (types.JobApplication, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return types.JobApplication{}, false
	}
	return s.jobs[idx].Clone(), true
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Stats computes the headline counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeStats(s.jobs)
}

// ComputeStats counts statuses over jobs. Active is Applied plus Interview.
func ComputeStats(jobs []types.JobApplication) Stats {
	st := Stats{Total: len(jobs)}
	for _, j := range jobs {
		switch j.Status {
		case types.StatusApplied:
			st.Active++
		case types.StatusInterview:
			st.Interview++
			st.Active++
		case types.StatusOffer:
			st.Offer++
		case types.StatusRejected:
			st.Rejected++
		}
	}
	return st
}

func (s *Store) indexOf(id string) int {
	for i := range s.jobs {
		if s.jobs[i].ID == id {
			return i
		}
	}
	return -1
}

// uniqueID draws ids until one is not already in use.
func (s *Store) uniqueID() string {
	for {
		id := s.newID()
		if id != "" && s.indexOf(id) < 0 {
			return id
		}
	}
}

func (s *Store) snapshot() []types.JobApplication {
	out := make([]types.JobApplication, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = j.Clone()
	}
	return out
}

// notify must be called with s.mu held.
func (s *Store) notify(m Mutation) {
	if len(s.listeners) == 0 {
		return
	}
	m.Snapshot = s.snapshot()
	for _, l := range s.listeners {
		l.Mutated(m)
	}
}
