package media

import (
	"errors"
)

// Generation failure classes. Callers classify with errors.Is.
var (
	// ErrSourceMissing means the source file no longer exists.
	ErrSourceMissing = errors.New("source file missing")
	// ErrCorrupt means the source exists but could not be decoded.
	ErrCorrupt = errors.New("source file corrupt or unreadable")
	// ErrUnsupported means no decoder handles the source.
	ErrUnsupported = errors.New("unsupported media format")
	// ErrTimeout means an external decode ran past its deadline.
	ErrTimeout = errors.New("thumbnail generation timed out")
)

// IsPermanent reports whether err will recur on retry without the source
// changing. Everything else (timeouts, cache write failures) is transient.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrSourceMissing) ||
		errors.Is(err, ErrCorrupt) ||
		errors.Is(err, ErrUnsupported)
}

// StatusLabel maps a generation result to its metrics label.
func StatusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSourceMissing):
		return "error_not_found"
	case errors.Is(err, ErrCorrupt):
		return "error_corrupt"
	case errors.Is(err, ErrUnsupported):
		return "error_unsupported"
	default:
		return "error_transient"
	}
}
