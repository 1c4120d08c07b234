package recorder

import (
	"fmt"
	"math"
)

// Receiver limits. The KiwiSDR front end covers 0-30 MHz.
const (
	MinFreqHz = 0
	MaxFreqHz = 30_000_000

	MinZoom = 0
	MaxZoom = 14

	// IQBandwidthHz is the fixed capture bandwidth in IQ mode
	IQBandwidthHz = 12_000
)

// CapturePlan is the hardware-safe result of validating a capture request
type CapturePlan struct {
	BandwidthHz float64
	RangeMinHz  float64
	RangeMaxHz  float64
}

// Validate turns a raw (frequency, zoom, mode) triple into a CapturePlan or a
// list of human-readable violations. Pure and deterministic; nil pointers mean
// the field was absent from the request.
//
// A non-numeric frequency or zoom masks the bandwidth-dependent range checks
// because no bandwidth can be computed; all other violations accumulate.
func Validate(frequency *float64, zoom *float64, mode RecordingType) (CapturePlan, []string) {
	var violations []string

	if frequency == nil || math.IsNaN(*frequency) || math.IsInf(*frequency, 0) {
		violations = append(violations, "Frequency is not a number")
		return CapturePlan{}, violations
	}
	freq := *frequency

	var bandwidth float64
	switch mode {
	case RecordingPNG:
		if zoom == nil || math.IsNaN(*zoom) || math.IsInf(*zoom, 0) {
			violations = append(violations, "Zoom is not a number")
			return CapturePlan{}, violations
		}
		if *zoom != math.Trunc(*zoom) {
			violations = append(violations, fmt.Sprintf("Zoom is not an integer: %g", *zoom))
			return CapturePlan{}, violations
		}
		z := *zoom
		if z < MinZoom {
			violations = append(violations, fmt.Sprintf("Zoom is too low: %g. Minimum is %d.", z, MinZoom))
		}
		if z > MaxZoom {
			violations = append(violations, fmt.Sprintf("Zoom is too high: %g. Maximum is %d.", z, MaxZoom))
		}
		if len(violations) > 0 {
			return CapturePlan{}, violations
		}
		bandwidth = float64(MaxFreqHz-MinFreqHz) / float64(int64(1)<<uint(z))
	case RecordingIQ:
		// Fixed narrow bandwidth; zoom is ignored
		bandwidth = IQBandwidthHz
	default:
		violations = append(violations, fmt.Sprintf("Invalid type: %s", mode))
		return CapturePlan{}, violations
	}

	rangeMax := freq + bandwidth/2
	rangeMin := freq - bandwidth/2

	// Independent checks: a wide-enough selection can violate both at once
	if rangeMax > MaxFreqHz {
		violations = append(violations, fmt.Sprintf(
			"The selected frequency range exceeds the maximum frequency: limit %d Hz, selection reaches %.0f Hz",
			MaxFreqHz, rangeMax))
	}
	if rangeMin < MinFreqHz {
		violations = append(violations, fmt.Sprintf(
			"The selected frequency range exceeds the minimum frequency: limit %d Hz, selection reaches %.0f Hz",
			MinFreqHz, rangeMin))
	}

	if len(violations) > 0 {
		return CapturePlan{}, violations
	}

	return CapturePlan{
		BandwidthHz: bandwidth,
		RangeMinHz:  rangeMin,
		RangeMaxHz:  rangeMax,
	}, nil
}
