package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kiwatt/recorderd/am"
	"github.com/kiwatt/recorderd/errors"
)

// Launcher is the slice of the Supervisor the scheduler drives. Split out
// so scheduler tests can substitute a fake capture process.
type Launcher interface {
	Launch(jobID int64, onExit ExitFunc) error
	Stop(ctx context.Context, jobID int64) error
	IsActive(jobID int64) bool
	ActiveCount() int
	StopAll(ctx context.Context)
}

// Scheduler owns the job lifecycle: it starts the first run on creation,
// re-arms recurring jobs when a run finishes, and fires overdue runs from a
// periodic tick. One tick loop serves all jobs; each run gets its own
// supervisor-managed process.
type Scheduler struct {
	store    *Store
	launcher Launcher
	interval time.Duration
	logger   *zap.SugaredLogger

	// injectable clock so scheduling decisions are testable without
	// real time
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.Mutex
	lastTickAt      time.Time
	ticksSinceStart int64
	lastActive      int
}

// NewScheduler creates a scheduler; call Start to begin ticking
func NewScheduler(store *Store, launcher Launcher, cfg am.SchedulerConfig, logger *zap.SugaredLogger) *Scheduler {
	interval := time.Duration(cfg.TickIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:    store,
		launcher: launcher,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the tick loop
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Infow("Recorder scheduler started", "interval", s.interval)
}

// Stop halts the tick loop without touching live processes
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Infow("Recorder scheduler stopped")
}

// Shutdown halts the tick loop and terminates every live capture process
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.Stop()
	s.launcher.StopAll(ctx)
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			now := s.now()

			s.mu.Lock()
			s.lastTickAt = now
			s.ticksSinceStart++
			s.mu.Unlock()

			s.logTickInfo(now)
			s.checkDueJobs(now)
		}
	}
}

// checkDueJobs starts every job whose next run is due. A tick that arrives
// late still fires overdue runs immediately rather than waiting for the
// next interval boundary.
func (s *Scheduler) checkDueJobs(now time.Time) {
	for _, jobID := range s.store.DueJobIDs(now) {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		s.startRun(jobID)
	}
}

// startRun claims a job and launches its capture process. The claim happens
// inside the store's serialized update so a concurrent creation path and the
// tick loop cannot start two processes for the same job.
func (s *Scheduler) startRun(jobID int64) {
	if s.launcher.IsActive(jobID) {
		return
	}

	now := s.now()
	claimed := false
	err := s.store.Update(jobID, func(j *Job) {
		if j.State == StateRunning || j.State == StateTerminated {
			return
		}
		j.MarkStarted(now)
		claimed = true
	})
	if err != nil || !claimed {
		return
	}

	if err := s.launcher.Launch(jobID, s.HandleOutcome); err != nil {
		// Spawn failure counts as a failed run so recurring jobs keep
		// their cadence instead of stalling forever
		s.logger.Errorw("Failed to launch capture process", "job_id", jobID, "error", err)
		launchErr := err
		if updateErr := s.store.Update(jobID, func(j *Job) {
			j.PushLog(s.now(), fmt.Sprintf("<Spawn failed> %v", launchErr))
		}); updateErr != nil {
			return // job vanished, nothing to re-arm
		}
		s.HandleOutcome(jobID, Outcome{Kind: OutcomeFailed, ExitCode: -1})
		return
	}

	s.logger.Infow("Run started", "job_id", jobID)
}

// HandleOutcome receives a finished run from the supervisor and either
// re-arms the job (recurring) or terminates it (one-shot)
func (s *Scheduler) HandleOutcome(jobID int64, outcome Outcome) {
	now := s.now()
	err := s.store.Update(jobID, func(j *Job) {
		j.MarkFinished(now)
	})
	if err != nil {
		// Removed while the process was being reaped; nothing to do
		return
	}

	s.logger.Infow("Run finished",
		"job_id", jobID,
		"outcome", outcome.Kind,
		"exit_code", outcome.ExitCode)
}

// CreateJob registers a validated job and starts its first run immediately
func (s *Scheduler) CreateJob(settings RecorderSettings, plan CapturePlan) (JobView, error) {
	view, err := s.store.Create(settings, plan)
	if err != nil {
		return JobView{}, err
	}

	s.logger.Infow("Job created",
		"job_id", view.JobID,
		"job_uid", view.JobUID,
		"settings", settings.String())

	s.startRun(view.JobID)
	return s.store.Snapshot(view.JobID)
}

// StopJob terminates a job's current run but keeps the record and, for
// recurring jobs, its schedule
func (s *Scheduler) StopJob(ctx context.Context, jobID int64) (JobView, error) {
	if _, err := s.store.Snapshot(jobID); err != nil {
		return JobView{}, err
	}
	if err := s.launcher.Stop(ctx, jobID); err != nil {
		return JobView{}, errors.Wrapf(err, "failed to stop job %d", jobID)
	}
	return s.store.Snapshot(jobID)
}

// RemoveJob terminates any live run and deletes the record. The job is
// marked terminated before the process is stopped so a concurrent tick
// cannot relaunch it in the window before deletion.
func (s *Scheduler) RemoveJob(ctx context.Context, jobID int64) error {
	if err := s.store.Update(jobID, func(j *Job) {
		j.State = StateTerminated
		j.NextRunStart = nil
	}); err != nil {
		return err
	}

	if err := s.launcher.Stop(ctx, jobID); err != nil {
		return errors.Wrapf(err, "failed to stop job %d", jobID)
	}

	if err := s.store.Remove(jobID); err != nil {
		return err
	}

	s.logger.Infow("Job removed", "job_id", jobID)
	return nil
}

// logTickInfo logs scheduling activity when it changes, with system memory
// alongside so an operator can spot a leaking capture tool from the journal
func (s *Scheduler) logTickInfo(now time.Time) {
	active := s.launcher.ActiveCount()

	s.mu.Lock()
	changed := active != s.lastActive
	s.lastActive = active
	s.mu.Unlock()

	if !changed {
		return
	}

	metrics := s.systemMetrics(active)

	jobID, nextAt := s.store.NextDue()
	if nextAt == nil {
		s.logger.Infow(fmt.Sprintf("Recorder - no scheduled runs, %d captures active │ Mem: %.1f/%.1fGB (%.0f%%)",
			active, metrics.MemoryUsedGB, metrics.MemoryTotalGB, metrics.MemoryPercent))
		return
	}

	until := nextAt.Sub(now)
	if until < 0 {
		until = 0
	}
	s.logger.Infow(fmt.Sprintf("Recorder - next run for job %d in %s, %d captures active │ Mem: %.1f/%.1fGB (%.0f%%)",
		jobID, until.Round(time.Second), active,
		metrics.MemoryUsedGB, metrics.MemoryTotalGB, metrics.MemoryPercent))
}

// TickStats returns tick loop statistics for diagnostics
func (s *Scheduler) TickStats() (lastTickAt time.Time, ticks int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTickAt, s.ticksSinceStart
}
