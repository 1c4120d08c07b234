package recorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kiwatt/recorderd/am"
	"github.com/kiwatt/recorderd/errors"
)

// fakeLauncher stands in for the supervisor: Launch records the call and
// holds the run open until the test finishes it via finish()
type fakeLauncher struct {
	mu        sync.Mutex
	active    map[int64]ExitFunc
	launches  []int64
	stops     []int64
	launchErr error
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{active: map[int64]ExitFunc{}}
}

func (f *fakeLauncher) Launch(jobID int64, onExit ExitFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.launchErr != nil {
		return f.launchErr
	}
	f.launches = append(f.launches, jobID)
	f.active[jobID] = onExit
	return nil
}

func (f *fakeLauncher) Stop(_ context.Context, jobID int64) error {
	f.mu.Lock()
	onExit, ok := f.active[jobID]
	delete(f.active, jobID)
	f.stops = append(f.stops, jobID)
	f.mu.Unlock()
	if ok {
		onExit(jobID, Outcome{Kind: OutcomeKilled, ExitCode: -1})
	}
	return nil
}

func (f *fakeLauncher) IsActive(jobID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.active[jobID]
	return ok
}

func (f *fakeLauncher) ActiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

func (f *fakeLauncher) StopAll(ctx context.Context) {
	f.mu.Lock()
	ids := make([]int64, 0, len(f.active))
	for id := range f.active {
		ids = append(ids, id)
	}
	f.mu.Unlock()
	for _, id := range ids {
		_ = f.Stop(ctx, id)
	}
}

// finish completes a run as the supervisor would after process exit
func (f *fakeLauncher) finish(jobID int64, outcome Outcome) {
	f.mu.Lock()
	onExit, ok := f.active[jobID]
	delete(f.active, jobID)
	f.mu.Unlock()
	if ok {
		onExit(jobID, outcome)
	}
}

func (f *fakeLauncher) launchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launches)
}

func newTestScheduler(t *testing.T, launcher Launcher) (*Scheduler, *Store, *time.Time) {
	t.Helper()
	store := NewStore(0, 100)
	sched := NewScheduler(store, launcher, am.SchedulerConfig{TickIntervalSeconds: 1}, zap.NewNop().Sugar())

	clock := time.Unix(100_000, 0)
	sched.now = func() time.Time { return clock }
	return sched, store, &clock
}

func TestCreateJobStartsFirstRunImmediately(t *testing.T) {
	launcher := newFakeLauncher()
	sched, _, _ := newTestScheduler(t, launcher)

	view, err := sched.CreateJob(testSettings(), CapturePlan{})
	require.NoError(t, err)

	assert.True(t, view.Running)
	require.NotNil(t, view.StartedAt)
	assert.Equal(t, []int64{view.JobID}, launcher.launches)
	assert.Equal(t, "<Started>", view.Logs[0].Data)
}

func TestOneShotTerminatesAfterRun(t *testing.T) {
	launcher := newFakeLauncher()
	sched, store, _ := newTestScheduler(t, launcher)

	view, err := sched.CreateJob(testSettings(), CapturePlan{})
	require.NoError(t, err)

	launcher.finish(view.JobID, Outcome{Kind: OutcomeSuccess, ExitCode: 0})

	snap, err := store.Snapshot(view.JobID)
	require.NoError(t, err)
	assert.False(t, snap.Running)
	assert.Nil(t, snap.NextRunStart)

	// Finished one-shots never fire again
	assert.Empty(t, store.DueJobIDs(sched.now().Add(time.Hour)))
}

func TestRecurringJobReArmsAndFires(t *testing.T) {
	launcher := newFakeLauncher()
	sched, store, clock := newTestScheduler(t, launcher)

	settings := testSettings()
	settings.Duration = 30
	settings.Interval = 60
	view, err := sched.CreateJob(settings, CapturePlan{})
	require.NoError(t, err)

	started := *clock
	*clock = clock.Add(30 * time.Second)
	launcher.finish(view.JobID, Outcome{Kind: OutcomeSuccess, ExitCode: 0})

	snap, err := store.Snapshot(view.JobID)
	require.NoError(t, err)
	assert.False(t, snap.Running)
	require.NotNil(t, snap.NextRunStart)
	assert.Equal(t, started.Add(60*time.Second).Unix(), *snap.NextRunStart)

	// Not due before the interval elapses
	*clock = started.Add(59 * time.Second)
	sched.checkDueJobs(*clock)
	assert.Equal(t, 1, launcher.launchCount())

	// Overdue runs fire on the next tick, however late it is
	*clock = started.Add(5 * time.Minute)
	sched.checkDueJobs(*clock)
	assert.Equal(t, 2, launcher.launchCount())
}

func TestIntervalShorterThanDuration(t *testing.T) {
	launcher := newFakeLauncher()
	sched, store, clock := newTestScheduler(t, launcher)

	settings := testSettings()
	settings.Duration = 120
	settings.Interval = 10
	view, err := sched.CreateJob(settings, CapturePlan{})
	require.NoError(t, err)

	started := *clock
	*clock = clock.Add(120 * time.Second)
	launcher.finish(view.JobID, Outcome{Kind: OutcomeSuccess, ExitCode: 0})

	snap, _ := store.Snapshot(view.JobID)
	require.NotNil(t, snap.NextRunStart)
	assert.Equal(t, started.Add(120*time.Second).Unix(), *snap.NextRunStart)
}

func TestTickNeverDoubleLaunchesRunningJob(t *testing.T) {
	launcher := newFakeLauncher()
	sched, _, clock := newTestScheduler(t, launcher)

	view, err := sched.CreateJob(testSettings(), CapturePlan{})
	require.NoError(t, err)
	assert.True(t, launcher.IsActive(view.JobID))

	for i := 0; i < 5; i++ {
		*clock = clock.Add(time.Second)
		sched.checkDueJobs(*clock)
	}
	assert.Equal(t, 1, launcher.launchCount())
}

func TestJobsScheduleIndependently(t *testing.T) {
	launcher := newFakeLauncher()
	sched, store, clock := newTestScheduler(t, launcher)

	fast := testSettings()
	fast.Duration = 10
	fast.Interval = 20
	fastView, err := sched.CreateJob(fast, CapturePlan{})
	require.NoError(t, err)

	slow := testSettings()
	slow.Duration = 10
	slow.Interval = 600
	slowView, err := sched.CreateJob(slow, CapturePlan{})
	require.NoError(t, err)

	started := *clock
	*clock = clock.Add(10 * time.Second)
	launcher.finish(fastView.JobID, Outcome{Kind: OutcomeSuccess, ExitCode: 0})
	launcher.finish(slowView.JobID, Outcome{Kind: OutcomeSuccess, ExitCode: 0})

	// 30s later only the fast job is due again
	*clock = started.Add(30 * time.Second)
	sched.checkDueJobs(*clock)
	assert.True(t, launcher.IsActive(fastView.JobID))
	assert.False(t, launcher.IsActive(slowView.JobID))

	slowSnap, _ := store.Snapshot(slowView.JobID)
	require.NotNil(t, slowSnap.NextRunStart)
	assert.Equal(t, started.Add(600*time.Second).Unix(), *slowSnap.NextRunStart)
}

func TestSpawnFailureReArmsRecurringJob(t *testing.T) {
	launcher := newFakeLauncher()
	launcher.launchErr = errors.New("spawn failed")
	sched, store, _ := newTestScheduler(t, launcher)

	settings := testSettings()
	settings.Interval = 60
	view, err := sched.CreateJob(settings, CapturePlan{})
	require.NoError(t, err)

	snap, err := store.Snapshot(view.JobID)
	require.NoError(t, err)
	assert.False(t, snap.Running)
	require.NotNil(t, snap.NextRunStart)

	var sawSpawnLog bool
	for _, entry := range snap.Logs {
		if entry.Data == "<Spawn failed> spawn failed" {
			sawSpawnLog = true
		}
	}
	assert.True(t, sawSpawnLog)
}

func TestStopJobKeepsRecord(t *testing.T) {
	launcher := newFakeLauncher()
	sched, store, _ := newTestScheduler(t, launcher)

	view, err := sched.CreateJob(testSettings(), CapturePlan{})
	require.NoError(t, err)

	snap, err := sched.StopJob(context.Background(), view.JobID)
	require.NoError(t, err)
	assert.False(t, snap.Running)
	assert.Equal(t, []int64{view.JobID}, launcher.stops)
	assert.Equal(t, 1, store.Count())
}

func TestStopJobNotFound(t *testing.T) {
	sched, _, _ := newTestScheduler(t, newFakeLauncher())
	_, err := sched.StopJob(context.Background(), 99)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestRemoveJobStopsProcess(t *testing.T) {
	launcher := newFakeLauncher()
	sched, store, _ := newTestScheduler(t, launcher)

	view, err := sched.CreateJob(testSettings(), CapturePlan{})
	require.NoError(t, err)
	require.True(t, launcher.IsActive(view.JobID))

	require.NoError(t, sched.RemoveJob(context.Background(), view.JobID))
	assert.False(t, launcher.IsActive(view.JobID))
	assert.Equal(t, 0, store.Count())

	assert.True(t, errors.IsNotFoundError(sched.RemoveJob(context.Background(), view.JobID)))
}

func TestOutcomeAfterRemovalMarkCannotReArm(t *testing.T) {
	launcher := newFakeLauncher()
	sched, store, clock := newTestScheduler(t, launcher)

	settings := testSettings()
	settings.Interval = 60
	view, err := sched.CreateJob(settings, CapturePlan{})
	require.NoError(t, err)

	// Removal marks the job terminated first; the reap goroutine may still
	// deliver the run's outcome before the record is deleted
	require.NoError(t, store.Update(view.JobID, func(j *Job) {
		j.State = StateTerminated
		j.NextRunStart = nil
	}))
	sched.HandleOutcome(view.JobID, Outcome{Kind: OutcomeKilled, ExitCode: -1})

	snap, err := store.Snapshot(view.JobID)
	require.NoError(t, err)
	assert.False(t, snap.Running)
	assert.Nil(t, snap.NextRunStart)
	assert.Empty(t, store.DueJobIDs(clock.Add(2*time.Minute)))
}

func TestSchedulerTickLoop(t *testing.T) {
	launcher := newFakeLauncher()
	store := NewStore(0, 100)
	sched := NewScheduler(store, launcher, am.SchedulerConfig{TickIntervalSeconds: 1}, zap.NewNop().Sugar())
	sched.interval = 5 * time.Millisecond

	sched.Start()
	defer sched.Stop()

	_, err := store.Create(testSettings(), CapturePlan{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return launcher.launchCount() == 1
	}, time.Second, 5*time.Millisecond)

	_, ticks := sched.TickStats()
	assert.Greater(t, ticks, int64(0))
}
