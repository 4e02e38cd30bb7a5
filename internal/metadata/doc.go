// Package metadata extracts catalog metadata from media files.
//
// [Extractor.Extract] is a pure function of the file system: given the
// absolute path of a media file it reports dimensions, an aspect ratio label,
// prompt and workflow text with their provenance, tags and whether an edit
// sidecar exists. Nothing is written and no catalog state is consulted.
//
// # Sources
//
// Sidecar files that share the media file's base name take precedence:
//
//	img.png             media file
//	img.txt             prompt      (source external_sidecar)
//	img.json            workflow    (must be valid JSON)
//	img.tags            tags        (comma or newline separated)
//	_edits/img.png.json edit sidecar, sets HasEdits
//
// For PNG files the tEXt, zTXt and iTXt chunks are consulted for anything
// the sidecars did not provide (source internal_embedded).
//
// # Dimensions
//
// Images are measured with image.DecodeConfig, which reads only the header.
// Videos are measured with ffprobe under a hard timeout; a probe that runs
// past it is killed and reported as [ErrProbeTimeout].
//
// # Errors
//
// A returned error means the file could not be examined at all and should
// be skipped. Content problems are carried in Metadata.Err so the record can
// still be stored with whatever fields were readable.
package metadata
