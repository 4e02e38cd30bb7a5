package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/natefinch/atomic"

	"media-catalog/internal/logging"
)

// Exists reports whether path exists. Errors other than not-exist are treated
// as existing so callers never overwrite something they could not inspect.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// MoveFile moves src to dst, creating dst's parent directory. When src and
// dst live on different devices the file is copied into place atomically
// and the source removed afterwards.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	err := RenameWithRetry(src, dst, DefaultRetryConfig())
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	logging.Debug("Cross-device move %s -> %s, copying", src, dst)
	return copyAndRemove(src, dst)
}

func copyAndRemove(src, dst string) error {
	in, err := OpenWithRetry(src, DefaultRetryConfig())
	if err != nil {
		return err
	}

	info, err := in.Stat()
	if err != nil {
		in.Close()
		return err
	}

	if err := atomic.WriteFile(dst, in); err != nil {
		in.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	in.Close()

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		logging.Warn("Failed to preserve mode on %s: %v", dst, err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		logging.Warn("Failed to preserve mtime on %s: %v", dst, err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}
