package am

import "github.com/kiwatt/recorderd/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.Newf("server.port must be positive, got %d", c.Server.Port)
	}

	if c.Recorder.Command == "" {
		return errors.New("recorder.command cannot be empty")
	}
	if c.Recorder.KiwiHost == "" {
		return errors.New("recorder.kiwi_host cannot be empty")
	}
	if c.Recorder.KiwiPort <= 0 {
		return errors.Newf("recorder.kiwi_port must be positive, got %d", c.Recorder.KiwiPort)
	}
	if c.Recorder.OutputDir == "" {
		return errors.New("recorder.output_dir cannot be empty")
	}
	if c.Recorder.MaxJobSlots < 0 {
		return errors.Newf("recorder.max_job_slots must be >= 0, got %d", c.Recorder.MaxJobSlots)
	}
	if c.Recorder.MaxLogLines < 0 {
		return errors.Newf("recorder.max_log_lines must be >= 0, got %d", c.Recorder.MaxLogLines)
	}
	if c.Recorder.StopGraceSeconds < 0 {
		return errors.Newf("recorder.stop_grace_seconds must be >= 0, got %d", c.Recorder.StopGraceSeconds)
	}

	if c.Scheduler.TickIntervalSeconds <= 0 {
		return errors.Newf("scheduler.tick_interval_seconds must be positive, got %d", c.Scheduler.TickIntervalSeconds)
	}

	return nil
}
