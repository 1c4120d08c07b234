package recorder

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/kiwatt/recorderd/am"
	"github.com/kiwatt/recorderd/errors"
)

// BuildArgs maps a job's settings onto the kiwirecorder.py command line.
// cfg.Command supplies the interpreter and script ("python3 kiwirecorder.py"
// by default) and is parsed with shell quoting rules so paths with spaces
// work. The returned slice is argv including the program itself.
func BuildArgs(cfg am.RecorderConfig, settings RecorderSettings, uid string, now time.Time) ([]string, error) {
	argv, err := shellquote.Split(cfg.Command)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse recorder.command %q", cfg.Command)
	}
	if len(argv) == 0 {
		return nil, errors.New("recorder.command is empty")
	}

	argv = append(argv,
		"-s", cfg.KiwiHost,
		"-p", strconv.Itoa(cfg.KiwiPort),
		// kiwirecorder takes the center frequency in kHz
		fmt.Sprintf("--freq=%.3f", float64(settings.Frequency)/1000.0),
		"-d", cfg.OutputDir,
		"--filename=KiwiRec",
		"--station="+StationName(settings, uid, now),
	)

	switch settings.RecType {
	case RecordingPNG:
		argv = append(argv,
			"--wf",
			"--wf-png",
			"--speed=4",
			"--modulation=am",
			fmt.Sprintf("--zoom=%d", settings.Zoom),
		)
	case RecordingIQ:
		argv = append(argv,
			"--kiwi-wav",
			"--modulation=iq",
		)
	default:
		return nil, errors.Newf("unknown recording type %q", settings.RecType)
	}

	argv = append(argv, fmt.Sprintf("--time-limit=%d", settings.Duration))
	return argv, nil
}

// StationName derives the per-run artifact name embedded in recorded files:
// UID, UTC start time, frequency in compact scientific notation, then either
// the zoom level (spectrum) or the fixed 12 kHz IQ bandwidth.
func StationName(settings RecorderSettings, uid string, now time.Time) string {
	common := fmt.Sprintf("%s_%s_Fq%s",
		uid,
		now.UTC().Format("2006-01-02_15-04-05_UTC"),
		toScientific(settings.Frequency),
	)
	if settings.RecType == RecordingIQ {
		return common + "_Bw1d2e4"
	}
	return fmt.Sprintf("%s_Zm%d", common, settings.Zoom)
}

// toScientific renders a frequency as filename-safe scientific notation:
// 14_070_000 -> "1d407e7". The decimal point becomes 'd' because dots
// confuse downstream filename parsing.
func toScientific(num int64) string {
	if num == 0 {
		return "0e0"
	}
	exponent := int(math.Floor(math.Log10(float64(num))))
	mantissa := float64(num) / math.Pow(10, float64(exponent))

	mantissaStr := strconv.FormatFloat(mantissa, 'f', 3, 64)
	mantissaStr = strings.TrimRight(mantissaStr, "0")
	mantissaStr = strings.TrimRight(mantissaStr, ".")
	mantissaStr = strings.ReplaceAll(mantissaStr, ".", "d")

	return fmt.Sprintf("%se%d", mantissaStr, exponent)
}
