// File: internal/observability/system.go
package observability

import (
	"runtime"
	"time"
)

// SystemUsage is a point-in-time read of process resource usage.
type SystemUsage struct {
	MemoryAllocBytes   uint64        `json:"memory_alloc_bytes"`
	MemorySysBytes     uint64        `json:"memory_sys_bytes"`
	MemoryUsagePercent float64       `json:"memory_usage_percent"`
	Goroutines         int           `json:"goroutines"`
	Uptime             time.Duration `json:"uptime"`
}

// SystemReader reads process resource usage for rule evaluation and the
// metrics query surface.
type SystemReader struct {
	startTime time.Time
}

// NewSystemReader creates a system reader anchored at the current time.
func NewSystemReader() *SystemReader {
	return &SystemReader{startTime: time.Now()}
}

// Read returns current process resource usage.
func (s *SystemReader) Read() SystemUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	usage := SystemUsage{
		MemoryAllocBytes: m.Alloc,
		MemorySysBytes:   m.Sys,
		Goroutines:       runtime.NumGoroutine(),
		Uptime:           time.Since(s.startTime),
	}
	if m.Sys > 0 {
		usage.MemoryUsagePercent = float64(m.Alloc) / float64(m.Sys) * 100
	}
	return usage
}

// MemoryUsagePercent returns heap allocation as a percentage of memory
// obtained from the OS.
func (s *SystemReader) MemoryUsagePercent() float64 {
	return s.Read().MemoryUsagePercent
}

// Uptime returns how long the pipeline has been running.
func (s *SystemReader) Uptime() time.Duration {
	return time.Since(s.startTime)
}
