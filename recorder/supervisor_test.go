package recorder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kiwatt/recorderd/am"
)

// shCommand builds a config whose "capture tool" is a shell one-liner. The
// extra recorder flags BuildArgs appends land in the script's positional
// parameters, which the script ignores.
func shCommand(script string) am.RecorderConfig {
	return am.RecorderConfig{
		Command:          "sh -c " + `"` + script + `"`,
		KiwiHost:         "127.0.0.1",
		KiwiPort:         8073,
		OutputDir:        "/tmp",
		StopGraceSeconds: 1,
	}
}

type exitRecord struct {
	jobID   int64
	outcome Outcome
}

func launchTestJob(t *testing.T, cfg am.RecorderConfig) (*Supervisor, *Store, int64, chan exitRecord) {
	t.Helper()
	store := NewStore(0, 100)
	view, err := store.Create(testSettings(), CapturePlan{})
	require.NoError(t, err)

	sup := NewSupervisor(store, cfg, zap.NewNop().Sugar())
	exited := make(chan exitRecord, 1)
	err = sup.Launch(view.JobID, func(jobID int64, outcome Outcome) {
		exited <- exitRecord{jobID: jobID, outcome: outcome}
	})
	require.NoError(t, err)
	return sup, store, view.JobID, exited
}

func waitExit(t *testing.T, exited chan exitRecord) exitRecord {
	t.Helper()
	select {
	case rec := <-exited:
		return rec
	case <-time.After(10 * time.Second):
		t.Fatal("capture process did not exit in time")
		return exitRecord{}
	}
}

func TestSupervisorCapturesOutputAndSuccess(t *testing.T) {
	cfg := shCommand("echo out-line; echo err-line >&2")
	sup, store, jobID, exited := launchTestJob(t, cfg)

	rec := waitExit(t, exited)
	assert.Equal(t, jobID, rec.jobID)
	assert.Equal(t, OutcomeSuccess, rec.outcome.Kind)
	assert.Equal(t, 0, rec.outcome.ExitCode)
	assert.False(t, sup.IsActive(jobID))

	snap, err := store.Snapshot(jobID)
	require.NoError(t, err)
	var lines []string
	for _, entry := range snap.Logs {
		lines = append(lines, entry.Data)
	}
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "<STDOUT> out-line")
	assert.Contains(t, joined, "<STDERR> err-line")
	assert.Contains(t, joined, "<Exited>")
}

func TestSupervisorReportsExitCode(t *testing.T) {
	cfg := shCommand("exit 3")
	_, store, jobID, exited := launchTestJob(t, cfg)

	rec := waitExit(t, exited)
	assert.Equal(t, OutcomeFailed, rec.outcome.Kind)
	assert.Equal(t, 3, rec.outcome.ExitCode)

	snap, err := store.Snapshot(jobID)
	require.NoError(t, err)
	last := snap.Logs[len(snap.Logs)-1]
	assert.Equal(t, "<Exited with code 3>", last.Data)
}

func TestSupervisorStopKillsProcess(t *testing.T) {
	cfg := shCommand("sleep 30")
	sup, store, jobID, exited := launchTestJob(t, cfg)
	require.True(t, sup.IsActive(jobID))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, sup.Stop(ctx, jobID))

	rec := waitExit(t, exited)
	assert.Equal(t, OutcomeKilled, rec.outcome.Kind)
	assert.False(t, sup.IsActive(jobID))

	snap, err := store.Snapshot(jobID)
	require.NoError(t, err)
	last := snap.Logs[len(snap.Logs)-1]
	assert.Equal(t, "<Stopped manually>", last.Data)
}

func TestSupervisorCapturesLongLine(t *testing.T) {
	// 100KB on one line: larger than bufio's default token limit, well
	// under the drain cap
	cfg := shCommand("head -c 100000 /dev/zero | tr -c x y")
	_, store, jobID, exited := launchTestJob(t, cfg)

	rec := waitExit(t, exited)
	assert.Equal(t, OutcomeSuccess, rec.outcome.Kind)

	snap, err := store.Snapshot(jobID)
	require.NoError(t, err)
	var found bool
	for _, entry := range snap.Logs {
		if entry.Data == "<STDOUT> "+strings.Repeat("y", 100_000) {
			found = true
		}
	}
	assert.True(t, found, "long output line should be captured whole")
}

func TestSupervisorMarksDroppedOutput(t *testing.T) {
	// A line over the drain cap aborts the scan; the job log says so and
	// the process still gets reaped
	cfg := shCommand("head -c 2000000 /dev/zero | tr -c x y")
	_, store, jobID, exited := launchTestJob(t, cfg)

	rec := waitExit(t, exited)
	assert.Equal(t, OutcomeSuccess, rec.outcome.Kind)

	snap, err := store.Snapshot(jobID)
	require.NoError(t, err)
	var found bool
	for _, entry := range snap.Logs {
		if strings.HasPrefix(entry.Data, "<STDOUT> [output dropped:") {
			found = true
		}
	}
	assert.True(t, found, "drain abort should leave a marker in the job log")
}

func TestSupervisorStopIdempotent(t *testing.T) {
	store := NewStore(0, 100)
	sup := NewSupervisor(store, shCommand("true"), zap.NewNop().Sugar())
	// No process for this job: Stop is a no-op
	assert.NoError(t, sup.Stop(context.Background(), 7))
}

func TestSupervisorSpawnFailure(t *testing.T) {
	store := NewStore(0, 100)
	view, err := store.Create(testSettings(), CapturePlan{})
	require.NoError(t, err)

	cfg := shCommand("true")
	cfg.Command = "/nonexistent/capture-tool"
	sup := NewSupervisor(store, cfg, zap.NewNop().Sugar())

	err = sup.Launch(view.JobID, nil)
	require.Error(t, err)
	assert.False(t, sup.IsActive(view.JobID))
	assert.Equal(t, 0, sup.ActiveCount())
}

func TestSupervisorRejectsDuplicateLaunch(t *testing.T) {
	cfg := shCommand("sleep 30")
	sup, _, jobID, exited := launchTestJob(t, cfg)

	err := sup.Launch(jobID, nil)
	assert.Error(t, err)

	require.NoError(t, sup.Stop(context.Background(), jobID))
	waitExit(t, exited)
}

func TestSupervisorLaunchUnknownJob(t *testing.T) {
	store := NewStore(0, 100)
	sup := NewSupervisor(store, shCommand("true"), zap.NewNop().Sugar())
	assert.Error(t, sup.Launch(99, nil))
}

func TestSupervisorStopAll(t *testing.T) {
	store := NewStore(0, 100)
	sup := NewSupervisor(store, shCommand("sleep 30"), zap.NewNop().Sugar())

	var ids []int64
	for i := 0; i < 2; i++ {
		view, err := store.Create(testSettings(), CapturePlan{})
		require.NoError(t, err)
		require.NoError(t, sup.Launch(view.JobID, nil))
		ids = append(ids, view.JobID)
	}
	require.Equal(t, 2, sup.ActiveCount())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sup.StopAll(ctx)

	for _, id := range ids {
		assert.False(t, sup.IsActive(id))
	}
	assert.Equal(t, 0, sup.ActiveCount())
}
