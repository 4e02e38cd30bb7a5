/*
Package filesystem provides resilient filesystem operations for media roots
that may live on NFS.

# Retries

StatWithRetry, OpenWithRetry and RenameWithRetry wrap the os equivalents and
retry only on ESTALE (stale file handle), with exponential backoff driven by
cenkalti/backoff:

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Defaults are 3 retries starting at 50ms and capped at 500ms. Every other error
is returned on the first attempt.

# Moves

MoveFile is used by the trash manager. It creates the destination's parent
directory and renames; when the rename fails with EXDEV (trash directory on a
different device) it copies the file into place through natefinch/atomic,
preserves mode and mtime, then removes the source.

# Metrics

Retry outcomes are labelled with a volume name ("media", "cache",
"database") resolved by longest-prefix match through a VolumeResolver. The
metrics package supplies the Observer implementation:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "media": cfg.MediaDir,
	    "cache": cfg.CacheDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
*/
package filesystem
