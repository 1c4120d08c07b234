package recorder

import (
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMetrics tracks resource usage shown alongside scheduler activity
type SystemMetrics struct {
	ActiveRuns    int     `json:"active_runs"`
	MemoryUsedGB  float64 `json:"memory_used_gb"`
	MemoryTotalGB float64 `json:"memory_total_gb"`
	MemoryPercent float64 `json:"memory_percent"`
}

// systemMetrics returns current memory usage. Metric errors are swallowed;
// the tick log is diagnostics, not a reason to fail a capture.
func (s *Scheduler) systemMetrics(activeRuns int) SystemMetrics {
	metrics := SystemMetrics{ActiveRuns: activeRuns}

	vm, err := mem.VirtualMemory()
	if err != nil || vm.Total == 0 {
		return metrics
	}

	metrics.MemoryTotalGB = float64(vm.Total) / 1024 / 1024 / 1024
	metrics.MemoryUsedGB = float64(vm.Used) / 1024 / 1024 / 1024
	metrics.MemoryPercent = vm.UsedPercent
	return metrics
}
