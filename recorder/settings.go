// Package recorder implements capture job management for a KiwiSDR-style
// receiver: settings validation, the in-memory job store, the subprocess
// supervisor that runs the external capture tool, and the scheduler that
// re-arms recurring jobs.
package recorder

import (
	"fmt"
)

// RecordingType selects what the capture tool produces
type RecordingType string

const (
	// RecordingPNG captures a frequency-domain waterfall snapshot
	RecordingPNG RecordingType = "png"
	// RecordingIQ captures raw in-phase/quadrature samples
	RecordingIQ RecordingType = "iq"
)

// IsValid returns true if the recording type is known
func (t RecordingType) IsValid() bool {
	return t == RecordingPNG || t == RecordingIQ
}

// Display returns the human form used in job log lines
func (t RecordingType) Display() string {
	switch t {
	case RecordingPNG:
		return "Png"
	case RecordingIQ:
		return "Iq"
	default:
		return string(t)
	}
}

// RecorderSettings describes a single capture job. Immutable once attached
// to a Job; changing parameters means removing and recreating the job.
type RecorderSettings struct {
	RecType   RecordingType
	Frequency int64 // Hz, center frequency
	Zoom      int   // 0..14, spectrum mode only
	Duration  int   // seconds per run, > 0
	Interval  int   // seconds between run starts; 0 = one-shot
}

// IsRecurring reports whether the job repeats on an interval
func (s RecorderSettings) IsRecurring() bool {
	return s.Interval > 0
}

// String renders the settings the way they appear in job logs
func (s RecorderSettings) String() string {
	zoom := ""
	if s.RecType == RecordingPNG {
		zoom = fmt.Sprintf("Zoom: %d, ", s.Zoom)
	}
	cadence := "Once"
	if s.IsRecurring() {
		cadence = fmt.Sprintf("Every %d sec", s.Interval)
	}
	return fmt.Sprintf("Type: %s, Frequency: %d Hz, %s%s, for %d sec",
		s.RecType.Display(), s.Frequency, zoom, cadence, s.Duration)
}
