package recorder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kiwatt/recorderd/am"
	"github.com/kiwatt/recorderd/errors"
)

// OutcomeKind classifies how a capture run ended
type OutcomeKind string

const (
	// OutcomeSuccess means the capture tool exited zero
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeFailed means the tool exited non-zero or could not be spawned
	OutcomeFailed OutcomeKind = "failed"
	// OutcomeKilled means the run was stopped deliberately
	OutcomeKilled OutcomeKind = "killed"
)

// Outcome reports a finished run back to the scheduler
type Outcome struct {
	Kind     OutcomeKind
	ExitCode int
}

// ExitFunc receives a job's run outcome once its process has been reaped
type ExitFunc func(jobID int64, outcome Outcome)

// Supervisor launches and reaps capture processes. It owns every process
// handle exclusively; job records only ever learn about a process through
// log lines and outcomes delivered via Store.Update.
type Supervisor struct {
	store  *Store
	cfg    am.RecorderConfig
	logger *zap.SugaredLogger

	mu    sync.Mutex
	procs map[int64]*captureProc
}

type captureProc struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu     sync.Mutex
	killed bool
}

func (p *captureProc) markKilled() {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
}

func (p *captureProc) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// NewSupervisor creates a process supervisor backed by the given store
func NewSupervisor(store *Store, cfg am.RecorderConfig, logger *zap.SugaredLogger) *Supervisor {
	return &Supervisor{
		store:  store,
		cfg:    cfg,
		logger: logger,
		procs:  make(map[int64]*captureProc),
	}
}

// Launch starts the capture tool for a job and begins draining its output.
// onExit is invoked exactly once, after the process has been reaped, unless
// Launch itself returns an error (the caller then decides the outcome).
// A job with a live process cannot be launched a second time.
func (s *Supervisor) Launch(jobID int64, onExit ExitFunc) error {
	view, err := s.store.Snapshot(jobID)
	if err != nil {
		return err
	}

	settings := RecorderSettings{
		RecType:   view.Settings.RecType,
		Frequency: view.Settings.Frequency,
		Zoom:      view.Settings.Zoom,
		Duration:  view.Settings.Duration,
	}
	argv, err := BuildArgs(s.cfg, settings, view.JobUID, time.Now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.procs[jobID]; exists {
		return errors.Newf("job %d already has a live capture process", jobID)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = s.cfg.ScriptDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "failed to create stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "failed to create stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "failed to start capture process %q", argv[0])
	}

	proc := &captureProc{cmd: cmd, done: make(chan struct{})}
	s.procs[jobID] = proc

	s.logger.Infow("Capture process started",
		"job_id", jobID,
		"job_uid", view.JobUID,
		"pid", cmd.Process.Pid,
		"command", argv[0])

	go s.reap(jobID, proc, stdout, stderr, onExit)
	return nil
}

// reap drains both pipes, waits for the process, and reports the outcome
func (s *Supervisor) reap(jobID int64, proc *captureProc, stdout, stderr io.Reader, onExit ExitFunc) {
	var g errgroup.Group
	g.Go(func() error { return s.drain(jobID, stdout, "STDOUT") })
	g.Go(func() error { return s.drain(jobID, stderr, "STDERR") })
	_ = g.Wait()

	waitErr := proc.cmd.Wait()

	outcome := Outcome{Kind: OutcomeSuccess}
	switch {
	case proc.wasKilled():
		outcome.Kind = OutcomeKilled
	case waitErr != nil:
		outcome.Kind = OutcomeFailed
		outcome.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()
		}
	}

	now := time.Now()
	if err := s.store.Update(jobID, func(j *Job) {
		switch outcome.Kind {
		case OutcomeKilled:
			j.PushLog(now, "<Stopped manually>")
		case OutcomeFailed:
			j.PushLog(now, fmt.Sprintf("<Exited with code %d>", outcome.ExitCode))
		default:
			j.PushLog(now, "<Exited>")
		}
	}); err != nil && !errors.IsNotFoundError(err) {
		s.logger.Warnw("Failed to record capture exit", "job_id", jobID, "error", err)
	}

	s.mu.Lock()
	delete(s.procs, jobID)
	s.mu.Unlock()
	close(proc.done)

	s.logger.Infow("Capture process exited",
		"job_id", jobID,
		"outcome", outcome.Kind,
		"exit_code", outcome.ExitCode)

	if onExit != nil {
		onExit(jobID, outcome)
	}
}

// maxOutputLine caps a single capture-tool output line; anything longer
// aborts the drain with a truncation marker in the job log
const maxOutputLine = 1024 * 1024

// drain appends each output line to the job's log as it arrives. A missing
// job (removed mid-run) is not an error; the process is on its way down.
func (s *Supervisor) drain(jobID int64, pipe io.Reader, tag string) error {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
	for scanner.Scan() {
		line := scanner.Text()
		now := time.Now()
		err := s.store.Update(jobID, func(j *Job) {
			j.PushLog(now, "<"+tag+"> "+line)
		})
		if err != nil && !errors.IsNotFoundError(err) {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		// Keep consuming so the process never blocks on a full pipe
		_, _ = io.Copy(io.Discard, pipe)
		now := time.Now()
		if updateErr := s.store.Update(jobID, func(j *Job) {
			j.PushLog(now, "<"+tag+"> [output dropped: "+err.Error()+"]")
		}); updateErr != nil && !errors.IsNotFoundError(updateErr) {
			s.logger.Warnw("Failed to record drain error", "job_id", jobID, "error", updateErr)
		}
		return err
	}
	return nil
}

// Stop terminates a job's live process and waits for it to be reaped.
// SIGTERM first, then SIGKILL after the configured grace period. Idempotent
// when no process is running.
func (s *Supervisor) Stop(ctx context.Context, jobID int64) error {
	s.mu.Lock()
	proc, ok := s.procs[jobID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	proc.markKilled()
	if err := proc.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Process may have exited between lookup and signal
		s.logger.Debugw("SIGTERM failed", "job_id", jobID, "error", err)
	}

	grace := time.Duration(s.cfg.StopGraceSeconds) * time.Second
	if grace <= 0 {
		grace = 5 * time.Second
	}

	select {
	case <-proc.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(grace):
	}

	if err := proc.cmd.Process.Kill(); err != nil {
		s.logger.Warnw("SIGKILL failed", "job_id", jobID, "error", err)
	}

	select {
	case <-proc.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsActive reports whether a job has a live capture process
func (s *Supervisor) IsActive(jobID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.procs[jobID]
	return ok
}

// ActiveCount returns how many capture processes are currently live
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// StopAll terminates every live capture process, used at shutdown
func (s *Supervisor) StopAll(ctx context.Context) {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.procs))
	for id := range s.procs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.Stop(ctx, id); err != nil {
			s.logger.Warnw("Failed to stop capture process", "job_id", id, "error", err)
		}
	}
}
