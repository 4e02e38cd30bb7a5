package workers

import (
	"runtime"
)

// Count returns the number of workers for a task type, sized from GOMAXPROCS
// so container CPU limits are respected.
//
// multiplier reflects the workload: 1.0 for CPU-bound work such as image
// decoding, 2.0 for I/O-bound work such as sidecar reads, 1.5 for mixed work
// such as thumbnail generation that alternates between ffmpeg and disk.
//
// limit caps the result; 0 means no cap. The result is never below 1.
func Count(multiplier float64, limit int) int {
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// Resolve returns override when it is positive, otherwise Count(multiplier, limit).
// Explicit configuration such as THUMBNAIL_WORKERS is passed as override and
// is still capped by limit.
func Resolve(override int, multiplier float64, limit int) int {
	if override > 0 {
		if limit > 0 && override > limit {
			return limit
		}
		return override
	}
	return Count(multiplier, limit)
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
