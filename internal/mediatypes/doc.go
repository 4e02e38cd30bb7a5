// Package mediatypes provides shared type definitions and naming rules for
// cataloged media files.
//
// This package is a dependency-free foundation that can be imported by the
// store, the synchronizer, the extractor and the trash manager without
// creating import cycles.
//
// # File Types
//
//	mediatypes.FileTypeImage // still images (jpg, png, webp, ...)
//	mediatypes.FileTypeVideo // video containers (mp4, mkv, webm, ...)
//	mediatypes.FileTypeOther // everything else, ignored by the catalog
//
// # Sidecars
//
// A media file may have companion files that share its base name:
//
//	img.png   media file
//	img.txt   prompt text
//	img.json  workflow JSON
//	img.tags  tag list
//
// and an edit sidecar stored in the folder's edits directory:
//
//	_edits/img.png.json
//
// SidecarNames and EditSidecarName compute those names; the trash manager
// relies on them to move companions together with the media file.
package mediatypes
