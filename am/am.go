package am

// Config represents the recorderd configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig configures the recorderd HTTP API
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DefaultServerPort is the port the reverse proxy forwards /api/* to
const DefaultServerPort = 5004

// RecorderConfig configures the external capture tool and job limits
type RecorderConfig struct {
	// Command is the capture tool invocation, e.g. "python3 kiwirecorder.py".
	// Parsed with shell quoting rules, so quoted arguments are allowed.
	Command string `mapstructure:"command"`

	// ScriptDir is the working directory the capture tool runs in
	ScriptDir string `mapstructure:"script_dir"`

	// KiwiHost/KiwiPort locate the receiver the capture tool connects to
	KiwiHost string `mapstructure:"kiwi_host"`
	KiwiPort int    `mapstructure:"kiwi_port"`

	// OutputDir is where the capture tool writes recorded files
	OutputDir string `mapstructure:"output_dir"`

	// MaxJobSlots caps concurrently tracked jobs (0 = default)
	MaxJobSlots int `mapstructure:"max_job_slots"`

	// MaxLogLines caps the per-job log ring (0 = default)
	MaxLogLines int `mapstructure:"max_log_lines"`

	// StopGraceSeconds is how long a process gets to exit after SIGTERM
	// before it is killed
	StopGraceSeconds int `mapstructure:"stop_grace_seconds"`
}

// SchedulerConfig configures the periodic job scheduler
type SchedulerConfig struct {
	// TickIntervalSeconds is how often the scheduler checks for due jobs
	TickIntervalSeconds int `mapstructure:"tick_interval_seconds"`
}
