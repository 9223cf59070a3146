package generate

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/traitmint/errors"
)

// DefaultWorkers is one less than the hardware parallelism, at least 1.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	if n <= 1 {
		return 1
	}
	return n - 1
}

// ResolveWorkers applies the worker defaults: 1 when parallelism is
// disabled, DefaultWorkers when configured is 0, never more than amount.
func ResolveWorkers(configured int, parallel bool, amount int) int {
	workers := configured
	switch {
	case !parallel:
		workers = 1
	case workers <= 0:
		workers = DefaultWorkers()
	}
	if amount > 0 && workers > amount {
		workers = amount
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// getMemoryStats returns total and available memory in bytes.
func getMemoryStats() (total uint64, available uint64, err error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to get memory stats")
	}
	return v.Total, v.Available, nil
}

// workerFootprint estimates the peak bytes one worker holds: the RGBA
// canvas, the encoder's copy of it, and one decoded layer.
func workerFootprint(width, height int) uint64 {
	return uint64(width) * uint64(height) * 4 * 3
}

// calculateSafeWorkerCount recommends a worker count that keeps the working
// set of all workers within half of the available memory.
func calculateSafeWorkerCount(available, perWorker uint64) int {
	if perWorker == 0 {
		return 1 << 30
	}
	n := available / 2 / perWorker
	if n < 1 {
		return 1
	}
	if n > 1<<30 {
		return 1 << 30
	}
	return int(n)
}

// checkMemoryPressure returns a warning when workers exceed what the
// available memory comfortably holds, or "" when it is fine or unknown.
func checkMemoryPressure(workers, width, height int) string {
	total, available, err := getMemoryStats()
	if err != nil || total == 0 {
		return ""
	}
	return memoryPressureWarning(workers, width, height, total, available)
}

func memoryPressureWarning(workers, width, height int, total, available uint64) string {
	recommended := calculateSafeWorkerCount(available, workerFootprint(width, height))
	if workers <= recommended {
		return ""
	}
	const gb = 1024 * 1024 * 1024
	return fmt.Sprintf(
		"Worker count (%d) exceeds recommended (%d) for available memory (%.1f/%.1fGB) at %dx%d. "+
			"Consider reducing generate.workers.",
		workers, recommended, float64(total-available)/gb, float64(total)/gb, width, height)
}
