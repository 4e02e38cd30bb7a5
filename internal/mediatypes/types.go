package mediatypes

import (
	"path"
	"strings"
)

// FileType represents the kind of a cataloged file.
type FileType string

const (
	// FileTypeImage represents a still image.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video container.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// Sidecar extensions resolved by base filename (img.png -> img.txt).
const (
	PromptSidecarExt   = ".txt"
	WorkflowSidecarExt = ".json"
	TagsSidecarExt     = ".tags"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",

	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
func GetFileType(ext string) FileType {
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	return FileTypeOther
}

// GetMimeType returns the MIME type for a given file extension.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsMediaFile returns true if the extension represents a supported media file.
func IsMediaFile(ext string) bool {
	return GetFileType(ext) != FileTypeOther
}

// Ext returns the lower-cased extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(path.Ext(name))
}

// Format returns the catalog format label for a file name: its lower-cased
// extension without the leading dot ("photo.PNG" -> "png").
func Format(name string) string {
	return strings.TrimPrefix(Ext(name), ".")
}

// BaseName strips the final extension from name ("a.b.png" -> "a.b").
func BaseName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// SidecarNames returns the sibling sidecar file names for a media file name,
// in the order prompt, workflow, tags.
func SidecarNames(name string) []string {
	base := BaseName(name)
	return []string{
		base + PromptSidecarExt,
		base + WorkflowSidecarExt,
		base + TagsSidecarExt,
	}
}

// EditSidecarName returns the name of the edit sidecar for a media file, which
// lives inside the per-folder edits directory.
func EditSidecarName(name string) string {
	return name + ".json"
}
