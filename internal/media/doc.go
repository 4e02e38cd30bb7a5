// Package media renders catalog thumbnails.
//
// A [Generator] turns one source file into a bounded JPEG in the thumbnail
// cache directory, named by the record's thumb hash:
//
//	<thumbDir>/<thumb_hash>.jpg
//
// Still images are decoded with libvips shrink-on-load when it is enabled
// and available, otherwise with imaging (plus x/image decoders), and as a
// last resort by asking ffmpeg for a single frame. Videos always go through
// ffmpeg. Any edit sidecar adjustments are applied before the result is fit
// into the configured bounding box and encoded.
//
// Output is written to a temporary file in the cache directory and renamed
// into place, so readers never observe a partial thumbnail and concurrent
// generation of the same target is harmless.
//
// Failures are classified with sentinel errors. [IsPermanent] separates
// content problems ([ErrSourceMissing], [ErrCorrupt], [ErrUnsupported]) from
// transient ones such as [ErrTimeout] or a cache write failure.
package media
