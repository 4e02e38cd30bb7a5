// Package memory configures the Go soft memory limit for containers and gates
// background thumbnail generation on heap usage.
//
// # Configuration
//
// Call [ConfigureFromEnv] first thing in main:
//
//   - GOMEMLIMIT: standard Go variable; when set it wins and nothing changes
//   - MEMORY_LIMIT: container limit in bytes, usually from the Downward API
//   - MEMORY_RATIO: heap share of MEMORY_LIMIT, default 0.85
//
// The remainder of the container limit is left for ffmpeg/ffprobe child
// processes and libvips allocations, which GOMEMLIMIT does not account for.
// Lower the ratio when many thumbnail workers run ffmpeg concurrently.
//
//	spec:
//	  containers:
//	  - name: media-catalog
//	    env:
//	    - name: MEMORY_LIMIT
//	      valueFrom:
//	        resourceFieldRef:
//	          resource: limits.memory
//	    - name: MEMORY_RATIO
//	      value: "0.75"
//
// # Backpressure
//
// A [Monitor] samples heap usage every CheckInterval. Above
// CriticalWaterMark it pauses; it resumes only once usage falls below
// HighWaterMark, so the state does not flap around a single threshold.
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	go monitor.Run(ctx)
//
//	// thumbnail worker loop
//	if !monitor.WaitIfPaused(ctx) {
//	    return
//	}
//
// Only the background worker consults the monitor. On-demand thumbnail
// requests are served regardless of memory state.
package memory
