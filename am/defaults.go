package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})

	// Recorder defaults; paths match the appliance image layout
	v.SetDefault("recorder.command", "python3 kiwirecorder.py")
	v.SetDefault("recorder.script_dir", "/usr/local/src/kiwiclient/")
	v.SetDefault("recorder.kiwi_host", "127.0.0.1")
	v.SetDefault("recorder.kiwi_port", 8073)
	v.SetDefault("recorder.output_dir", "/var/recorder/recorded-files/")
	v.SetDefault("recorder.max_job_slots", 3)
	v.SetDefault("recorder.max_log_lines", 1000)
	v.SetDefault("recorder.stop_grace_seconds", 5)

	// Scheduler defaults
	v.SetDefault("scheduler.tick_interval_seconds", 1)
}
