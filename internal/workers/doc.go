/*
Package workers sizes worker pools from GOMAXPROCS.

runtime.NumCPU reports the host's CPUs, while GOMAXPROCS follows the
container's CPU limit, so pools sized from it do not oversubscribe a
throttled pod.

	workers.ForCPU(8)   // decode-heavy work, 1 per CPU, at most 8
	workers.ForMixed(4) // thumbnail workers, 1.5 per CPU, at most 4
	workers.ForIO(8)    // metadata extraction during sync, 2 per CPU

An explicit setting such as THUMBNAIL_WORKERS is applied through Resolve:

	n := workers.Resolve(cfg.ThumbnailWorkers, 1.5, 0)
*/
package workers
