package store

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// opRecorder tracks per-adapter operation counts and a rolling average
// latency. Shared by every adapter so GetMetrics looks the same everywhere.
type opRecorder struct {
	mu         sync.Mutex
	total      int64
	successful int64
	failed     int64
	totalTime  time.Duration
}

// observe records one finished operation.
func (r *opRecorder) observe(start time.Time, err error) {
	elapsed := time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.total++
	r.totalTime += elapsed
	if err != nil {
		r.failed++
	} else {
		r.successful++
	}
}

// snapshot fills the count and latency fields of a metrics report.
func (r *opRecorder) snapshot() StoreMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := StoreMetrics{
		TotalOperations:      r.total,
		SuccessfulOperations: r.successful,
		FailedOperations:     r.failed,
		LastCheck:            time.Now().UTC(),
	}
	if r.total > 0 {
		m.AvgResponseTime = r.totalTime / time.Duration(r.total)
	}
	m.MemoryUsageBytes = processMemoryBytes()
	return m
}

// processMemoryBytes reports the resident set of this process; zero when
// the platform probe fails.
func processMemoryBytes() uint64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return info.RSS
}
