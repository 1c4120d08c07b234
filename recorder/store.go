package recorder

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kiwatt/recorderd/errors"
)

// Store is the in-memory table of jobs. The map is guarded by an RWMutex;
// each Job additionally carries its own mutex so distinct jobs mutate
// independently without blocking each other. Update is the only mutation
// path, and reads always see a consistent value copy.
type Store struct {
	mu   sync.RWMutex
	jobs map[int64]*Job

	nextID      atomic.Int64
	maxSlots    int
	maxLogLines int

	// UIDs ever issued by this process; never forgotten, so a removed
	// job's UID cannot come back on a later job
	usedUIDs map[string]struct{}
}

// NewStore creates a job store. maxSlots caps concurrently tracked jobs
// (0 means unlimited); maxLogLines bounds each job's log ring.
func NewStore(maxSlots, maxLogLines int) *Store {
	if maxLogLines <= 0 {
		maxLogLines = 1000
	}
	return &Store{
		jobs:        make(map[int64]*Job),
		maxSlots:    maxSlots,
		maxLogLines: maxLogLines,
		usedUIDs:    make(map[string]struct{}),
	}
}

// Create registers a new job in Pending state. Settings must already be
// validated; the plan is kept alongside for reference. Fails with
// ErrSlotsFull when the slot cap is reached.
func (s *Store) Create(settings RecorderSettings, plan CapturePlan) (JobView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSlots > 0 && len(s.jobs) >= s.maxSlots {
		return JobView{}, errors.Wrapf(errors.ErrSlotsFull, "%d jobs tracked", len(s.jobs))
	}

	uid := NewJobUID()
	for {
		if _, taken := s.usedUIDs[uid]; !taken {
			break
		}
		uid = NewJobUID()
	}
	s.usedUIDs[uid] = struct{}{}

	job := &Job{
		ID:          s.nextID.Add(1),
		UID:         uid,
		Settings:    settings,
		Plan:        plan,
		State:       StatePending,
		maxLogLines: s.maxLogLines,
	}
	s.jobs[job.ID] = job

	job.mu.Lock()
	defer job.mu.Unlock()
	return job.view(), nil
}

// Update runs mutator with the job locked. This is the only way job state
// changes after creation; the supervisor and scheduler both go through it.
func (s *Store) Update(jobID int64, mutator func(*Job)) error {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return errors.NewNotFoundError("job %d", jobID)
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	mutator(job)
	return nil
}

// Snapshot returns a value copy of one job, full logs included
func (s *Store) Snapshot(jobID int64) (JobView, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return JobView{}, errors.NewNotFoundError("job %d", jobID)
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	return job.view(), nil
}

// SnapshotAll returns value copies of every job. Order is unspecified;
// the polling client resorts by recency.
func (s *Store) SnapshotAll() []JobView {
	s.mu.RLock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.RUnlock()

	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		job.mu.Lock()
		views = append(views, job.view())
		job.mu.Unlock()
	}
	return views
}

// DueJobIDs returns the jobs whose next run should start now
func (s *Store) DueJobIDs(now time.Time) []int64 {
	s.mu.RLock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.RUnlock()

	var due []int64
	for _, job := range jobs {
		job.mu.Lock()
		if job.DueAt(now) {
			due = append(due, job.ID)
		}
		job.mu.Unlock()
	}
	return due
}

// NextDue returns the soonest next_run_start among waiting jobs, or nil
// when nothing is scheduled. Used for the scheduler's tick log.
func (s *Store) NextDue() (int64, *time.Time) {
	s.mu.RLock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.RUnlock()

	var (
		bestID int64
		bestAt *time.Time
	)
	for _, job := range jobs {
		job.mu.Lock()
		if job.State == StateWaiting && job.NextRunStart != nil {
			if bestAt == nil || job.NextRunStart.Before(*bestAt) {
				at := *job.NextRunStart
				bestID, bestAt = job.ID, &at
			}
		}
		job.mu.Unlock()
	}
	return bestID, bestAt
}

// Remove deletes a job record. The caller is responsible for stopping any
// live process first (the scheduler does).
func (s *Store) Remove(jobID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return errors.NewNotFoundError("job %d", jobID)
	}
	delete(s.jobs, jobID)
	return nil
}

// Count returns the number of tracked jobs
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
