package recorder

import (
	"sync"
	"time"
)

// JobState tracks where a job is in its lifecycle
type JobState string

const (
	// StatePending means created but the first run has not started yet
	StatePending JobState = "pending"
	// StateRunning means a capture process is executing
	StateRunning JobState = "running"
	// StateWaiting means a recurring job is between runs
	StateWaiting JobState = "waiting"
	// StateTerminated means a one-shot job finished; the record stays
	// visible for its logs until explicitly removed
	StateTerminated JobState = "terminated"
)

// LogEntry is one timestamped line of capture-tool output
type LogEntry struct {
	Timestamp int64  `json:"timestamp"` // Unix seconds
	Data      string `json:"data"`
}

// List-view log truncation, matching what the polling client renders
const (
	listLogCount  = 20
	listLogLength = 200
)

// Job is the mutable record for one capture job. All mutation goes through
// Store.Update, which serializes access per job; nothing outside the store
// touches a Job directly.
type Job struct {
	ID       int64
	UID      string
	Settings RecorderSettings
	Plan     CapturePlan

	State        JobState
	StartedAt    *time.Time
	NextRunStart *time.Time
	Logs         []LogEntry

	mu          sync.Mutex
	maxLogLines int
}

// PushLog appends a timestamped line, evicting the oldest once the cap is hit
func (j *Job) PushLog(now time.Time, data string) {
	j.Logs = append(j.Logs, LogEntry{Timestamp: now.Unix(), Data: data})
	if over := len(j.Logs) - j.maxLogLines; over > 0 {
		j.Logs = j.Logs[over:]
	}
}

// MarkStarted records the beginning of a run. next_run_start is cleared
// until the run's outcome is known.
func (j *Job) MarkStarted(now time.Time) {
	started := now
	j.State = StateRunning
	j.StartedAt = &started
	j.NextRunStart = nil
	j.PushLog(now, "<Started>")
	j.PushLog(now, "<Settings>  "+j.Settings.String())
}

// MarkFinished records a run's outcome and arms the next run for
// recurring jobs. A terminated job stays terminated: removal marks the
// job before stopping its process, and the reap that follows must not
// re-arm it.
func (j *Job) MarkFinished(now time.Time) {
	if j.State == StateTerminated {
		return
	}
	if j.Settings.IsRecurring() && j.StartedAt != nil {
		next := NextRunStart(*j.StartedAt, j.Settings)
		j.State = StateWaiting
		j.NextRunStart = &next
		return
	}
	j.State = StateTerminated
	j.NextRunStart = nil
}

// DueAt reports whether the scheduler should start a run now
func (j *Job) DueAt(now time.Time) bool {
	switch j.State {
	case StatePending:
		return true
	case StateWaiting:
		return j.NextRunStart != nil && !j.NextRunStart.After(now)
	default:
		return false
	}
}

// NextRunStart computes when the next run of a recurring job may begin.
// Using max(interval, duration) guarantees the previous run's duration has
// elapsed, so runs of the same job never overlap.
func NextRunStart(startedAt time.Time, settings RecorderSettings) time.Time {
	gap := settings.Interval
	if settings.Duration > gap {
		gap = settings.Duration
	}
	return startedAt.Add(time.Duration(gap) * time.Second)
}

// JobView is a value copy of a Job in the wire representation consumed by
// the polling client. Holding a view never blocks a writer.
type JobView struct {
	JobID        int64        `json:"job_id"`
	JobUID       string       `json:"job_uid"`
	Running      bool         `json:"running"`
	StartedAt    *int64       `json:"started_at"`
	NextRunStart *int64       `json:"next_run_start"`
	Logs         []LogEntry   `json:"logs"`
	Settings     SettingsView `json:"settings"`
}

// SettingsView is the wire form of RecorderSettings
type SettingsView struct {
	RecType   RecordingType `json:"rec_type"`
	Frequency int64         `json:"frequency"`
	Zoom      int           `json:"zoom"`
	Duration  int           `json:"duration"`
	Interval  *int64        `json:"interval"`
}

// view builds a deep value copy; callers must hold j.mu (Store does)
func (j *Job) view() JobView {
	v := JobView{
		JobID:   j.ID,
		JobUID:  j.UID,
		Running: j.State == StateRunning,
		Settings: SettingsView{
			RecType:   j.Settings.RecType,
			Frequency: j.Settings.Frequency,
			Zoom:      j.Settings.Zoom,
			Duration:  j.Settings.Duration,
		},
	}
	if j.Settings.IsRecurring() {
		interval := int64(j.Settings.Interval)
		v.Settings.Interval = &interval
	}
	if j.StartedAt != nil {
		ts := j.StartedAt.Unix()
		v.StartedAt = &ts
	}
	if j.NextRunStart != nil {
		ts := j.NextRunStart.Unix()
		v.NextRunStart = &ts
	}
	v.Logs = make([]LogEntry, len(j.Logs))
	copy(v.Logs, j.Logs)
	return v
}

// WithTruncatedLogs returns a copy keeping only the newest lines, each
// clipped for display. The list endpoint uses this; the detail endpoint
// serves full logs.
func (v JobView) WithTruncatedLogs() JobView {
	count := len(v.Logs)
	if count > listLogCount {
		count = listLogCount
	}
	trimmed := make([]LogEntry, 0, count)
	// Newest first, the order the client's log panel renders
	for i := len(v.Logs) - 1; i >= len(v.Logs)-count; i-- {
		entry := v.Logs[i]
		if len(entry.Data) > listLogLength {
			entry.Data = entry.Data[:listLogLength] + "..."
		}
		trimmed = append(trimmed, entry)
	}
	v.Logs = trimmed
	return v
}
